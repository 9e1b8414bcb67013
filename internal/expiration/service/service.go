package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"carinsurance/internal/expiration/metrics"
	"carinsurance/internal/insurance/models"
	"carinsurance/internal/platform/config"
	"carinsurance/internal/platform/logger"
	"carinsurance/pkg/requestcontext"
)

const tracerName = "carinsurance/internal/expiration/service"

// Store is the data-access surface the reconciliation pass needs.
type Store interface {
	// ListUnprocessedExpiredPolicies returns policies with a non-null end
	// date on or before asOf and no expiration record.
	ListUnprocessedExpiredPolicies(ctx context.Context, asOf time.Time) ([]models.ExpiredPolicy, error)
	// AppendExpirationRecords inserts the batch atomically, skipping policies
	// that already have a record, and returns the inserted records.
	AppendExpirationRecords(ctx context.Context, records []models.ExpirationRecord) ([]models.ExpirationRecord, error)
}

// Transactor runs fn in one store transaction; Store calls made with the
// context handed to fn join it.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier publishes committed expirations to downstream consumers.
type Notifier interface {
	NotifyExpired(ctx context.Context, notices []models.ExpirationNotice) error
}

// PassResult summarizes one reconciliation pass.
type PassResult struct {
	Candidates    int
	OutsideWindow int
	Invalid       int
	Duplicates    int
	Records       []models.ExpirationRecord
}

// Recorded is the number of expiration records the pass committed.
func (r PassResult) Recorded() int {
	return len(r.Records)
}

// Service runs reconciliation passes: it records each freshly expired policy
// exactly once.
type Service struct {
	store    Store
	tx       Transactor
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	window   time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithWindow overrides the freshness window. Non-positive values are ignored.
func WithWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(store Store, tx Transactor, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("expiration store is required")
	}
	if tx == nil {
		return nil, errors.New("transactor is required")
	}
	s := &Service{
		store:  store,
		tx:     tx,
		logger: logger.Discard(),
		tracer: otel.Tracer(tracerName),
		window: config.DefaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunOnePass runs one reconciliation pass as of now. now is captured once,
// so every freshness comparison in the pass uses the same instant. On error
// nothing was committed and the error is a *PassFailedError.
func (s *Service) RunOnePass(ctx context.Context, now time.Time) (PassResult, error) {
	now = now.UTC()
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "expiration.RunOnePass",
		trace.WithAttributes(attribute.String("expiration.as_of", now.Format(time.RFC3339))))
	defer span.End()

	var (
		result  PassResult
		notices []models.ExpirationNotice
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		result = PassResult{}
		notices = nil

		candidates, err := s.store.ListUnprocessedExpiredPolicies(ctx, models.DateOf(now))
		if err != nil {
			return fmt.Errorf("%w: list expired policies: %w", ErrDataAccess, err)
		}
		result.Candidates = len(candidates)

		staged := make([]models.ExpirationRecord, 0, len(candidates))
		byPolicy := make(map[models.PolicyID]models.ExpiredPolicy, len(candidates))
		for _, c := range candidates {
			if err := c.Validate(); err != nil {
				result.Invalid++
				s.logger.ErrorContext(ctx, "skipping malformed expiration candidate",
					"pass_id", requestcontext.PassID(ctx),
					"policy_id", c.Policy.ID,
					"error", fmt.Errorf("%w: %w", ErrInvalidCandidate, err),
				)
				continue
			}
			if !InWindow(now, c.ExpiresAt(), s.window) {
				result.OutsideWindow++
				continue
			}

			s.logger.WarnContext(ctx, "policy expired",
				"pass_id", requestcontext.PassID(ctx),
				"policy_id", c.Policy.ID,
				"car_id", c.Car.ID,
				"car_vin", c.Car.VIN,
				"owner_name", c.Owner.Name,
				"expiration_date", models.FormatDate(*c.Policy.EndDate),
				"provider", c.Policy.Provider,
			)
			staged = append(staged, models.NewExpirationRecord(c.Policy, now))
			byPolicy[c.Policy.ID] = c
		}

		if len(staged) == 0 {
			return nil
		}

		inserted, err := s.store.AppendExpirationRecords(ctx, staged)
		if err != nil {
			return fmt.Errorf("%w: append expiration records: %w", ErrDataAccess, err)
		}
		result.Records = inserted

		committed := make(map[models.PolicyID]bool, len(inserted))
		for _, rec := range inserted {
			committed[rec.PolicyID] = true
			notices = append(notices, models.ExpirationNotice{Record: rec, Candidate: byPolicy[rec.PolicyID]})
		}
		for _, rec := range staged {
			if committed[rec.PolicyID] {
				continue
			}
			result.Duplicates++
			s.logger.InfoContext(ctx, "expiration already recorded by a concurrent writer",
				"pass_id", requestcontext.PassID(ctx),
				"policy_id", rec.PolicyID,
				"reason", ErrDuplicateRecord.Error(),
			)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrDataAccess) {
			err = fmt.Errorf("%w: %w", ErrDataAccess, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation pass failed")
		if s.metrics != nil {
			s.metrics.ObservePass(metrics.OutcomeFailure, start)
		}
		return PassResult{}, &PassFailedError{Cause: err}
	}

	span.SetAttributes(
		attribute.Int("expiration.candidates", result.Candidates),
		attribute.Int("expiration.recorded", result.Recorded()),
		attribute.Int("expiration.duplicates", result.Duplicates),
	)
	s.observe(result, start)
	s.logger.InfoContext(ctx, "expiration pass completed",
		"pass_id", requestcontext.PassID(ctx),
		"as_of", now,
		"candidates", result.Candidates,
		"recorded", result.Recorded(),
		"outside_window", result.OutsideWindow,
		"duplicates", result.Duplicates,
		"invalid", result.Invalid,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.notify(ctx, notices)
	return result, nil
}

func (s *Service) observe(result PassResult, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordsCreated.Add(float64(result.Recorded()))
	s.metrics.OutsideWindow.Add(float64(result.OutsideWindow))
	s.metrics.DuplicatesSkipped.Add(float64(result.Duplicates))
	s.metrics.InvalidCandidates.Add(float64(result.Invalid))
	s.metrics.ObservePass(metrics.OutcomeSuccess, start)
}

// notify is best-effort: the records are already durable, so a publish
// failure is logged and counted but never fails the pass.
func (s *Service) notify(ctx context.Context, notices []models.ExpirationNotice) {
	if s.notifier == nil || len(notices) == 0 {
		return
	}
	if err := s.notifier.NotifyExpired(ctx, notices); err != nil {
		if s.metrics != nil {
			s.metrics.NotificationsFailed.Add(float64(len(notices)))
		}
		s.logger.WarnContext(ctx, "failed to publish expiration notifications",
			"pass_id", requestcontext.PassID(ctx),
			"count", len(notices),
			"error", err,
		)
	}
}
