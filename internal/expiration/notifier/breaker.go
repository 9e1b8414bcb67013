package notifier

import (
	"context"
	"errors"
	"log/slog"

	"carinsurance/internal/insurance/models"
	"carinsurance/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without contacting the broker while the
// breaker is open.
var ErrCircuitOpen = errors.New("notifier circuit open")

// Sink is anything that can publish expiration notices.
type Sink interface {
	NotifyExpired(ctx context.Context, notices []models.ExpirationNotice) error
}

// Guarded short-circuits a failing Sink so a down broker does not add its
// produce timeout to every pass.
type Guarded struct {
	next    Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next Sink, breaker *circuit.Breaker, logger *slog.Logger) (*Guarded, error) {
	if next == nil {
		return nil, errors.New("sink is required")
	}
	if breaker == nil {
		return nil, errors.New("breaker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}, nil
}

func (g *Guarded) NotifyExpired(ctx context.Context, notices []models.ExpirationNotice) error {
	if len(notices) == 0 {
		return nil
	}
	if !g.breaker.Allow() {
		return ErrCircuitOpen
	}
	if err := g.next.NotifyExpired(ctx, notices); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "notifier circuit opened",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "notifier circuit closed", "breaker", g.breaker.Name())
	}
	return nil
}
