package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carinsurance/internal/insurance/models"
	"carinsurance/internal/platform/logger"
	dErrors "carinsurance/pkg/domain-errors"
	"carinsurance/pkg/platform/sentinel"
)

// Store is the persistence surface the car service reads and writes.
type Store interface {
	ListCars(ctx context.Context) ([]models.CarWithOwner, error)
	CarExists(ctx context.Context, carID models.CarID) (bool, error)
	HasPolicyCovering(ctx context.Context, carID models.CarID, day time.Time) (bool, error)
	CreatePolicy(ctx context.Context, policy *models.Policy) error
	ListPoliciesByCar(ctx context.Context, carID models.CarID) ([]models.Policy, error)
	CreateClaim(ctx context.Context, claim *models.Claim) error
	ListClaimsByCar(ctx context.Context, carID models.CarID) ([]models.Claim, error)
	ListExpirationRecords(ctx context.Context) ([]models.ExpirationRecord, error)
}

// CreateClaimCommand carries a new claim for a car.
type CreateClaimCommand struct {
	CarID       models.CarID
	ClaimDate   time.Time
	Description string
	AmountCents int64
}

// CreatePolicyCommand carries a new policy for a car. A nil EndDate is an
// open-ended policy.
type CreatePolicyCommand struct {
	CarID     models.CarID
	Provider  string
	StartDate time.Time
	EndDate   *time.Time
}

// Service answers questions about cars, their policies and claims.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("insurance store is required")
	}
	s := &Service{store: store, logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) ListCars(ctx context.Context) ([]models.CarWithOwner, error) {
	cars, err := s.store.ListCars(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cars")
	}
	return cars, nil
}

// IsInsuranceValid reports whether any policy of the car covers day.
func (s *Service) IsInsuranceValid(ctx context.Context, carID models.CarID, day time.Time) (bool, error) {
	if err := s.requireCar(ctx, carID); err != nil {
		return false, err
	}
	valid, err := s.store.HasPolicyCovering(ctx, carID, models.DateOf(day))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check coverage")
	}
	return valid, nil
}

func (s *Service) CreateClaim(ctx context.Context, cmd CreateClaimCommand) (*models.Claim, error) {
	claim, err := models.NewClaim(cmd.CarID, cmd.ClaimDate, cmd.Description, cmd.AmountCents)
	if err != nil {
		return nil, err
	}
	if err := s.requireCar(ctx, cmd.CarID); err != nil {
		return nil, err
	}
	if err := s.store.CreateClaim(ctx, claim); err != nil {
		return nil, translateWriteError(err, "failed to create claim")
	}
	s.logger.InfoContext(ctx, "claim created",
		"claim_id", claim.ID,
		"car_id", claim.CarID,
		"claim_date", models.FormatDate(claim.ClaimDate),
	)
	return claim, nil
}

func (s *Service) CreatePolicy(ctx context.Context, cmd CreatePolicyCommand) (*models.Policy, error) {
	policy, err := models.NewPolicy(cmd.CarID, cmd.Provider, cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}
	if err := s.requireCar(ctx, cmd.CarID); err != nil {
		return nil, err
	}
	if err := s.store.CreatePolicy(ctx, policy); err != nil {
		return nil, translateWriteError(err, "failed to create policy")
	}
	s.logger.InfoContext(ctx, "policy created",
		"policy_id", policy.ID,
		"car_id", policy.CarID,
		"provider", policy.Provider,
		"open_ended", policy.EndDate == nil,
	)
	return policy, nil
}

// History groups the car's claims under the policies in force on each
// claim date. A claim outside every policy appears in no period.
func (s *Service) History(ctx context.Context, carID models.CarID) (*models.CarHistory, error) {
	if err := s.requireCar(ctx, carID); err != nil {
		return nil, err
	}
	policies, err := s.store.ListPoliciesByCar(ctx, carID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policies")
	}
	claims, err := s.store.ListClaimsByCar(ctx, carID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claims")
	}

	history := &models.CarHistory{CarID: carID, Periods: make([]models.PolicyPeriod, 0, len(policies))}
	for _, p := range policies {
		period := models.PolicyPeriod{Policy: p, Claims: []models.Claim{}}
		for _, c := range claims {
			if p.CoversDate(c.ClaimDate) {
				period.Claims = append(period.Claims, c)
			}
		}
		history.Periods = append(history.Periods, period)
	}
	return history, nil
}

func (s *Service) ListExpirations(ctx context.Context) ([]models.ExpirationRecord, error) {
	records, err := s.store.ListExpirationRecords(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expiration records")
	}
	return records, nil
}

func (s *Service) requireCar(ctx context.Context, carID models.CarID) error {
	exists, err := s.store.CarExists(ctx, carID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up car")
	}
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "car not found")
	}
	return nil
}

// translateWriteError maps store sentinels to domain codes. A car removed
// between the existence check and the write surfaces as not found.
func translateWriteError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidReference):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "car not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
