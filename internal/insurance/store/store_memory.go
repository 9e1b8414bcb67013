package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"carinsurance/internal/insurance/models"
	"carinsurance/pkg/platform/sentinel"
)

// InMemory keeps owners, cars, policies, claims and expiration records in
// maps guarded by a mutex. Transactions serialize on txMu and stage expiration
// records until commit, matching the all-or-nothing behavior of PostgresStore.
type InMemory struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	owners      map[models.OwnerID]models.Owner
	cars        map[models.CarID]models.Car
	policies    map[models.PolicyID]models.Policy
	claims      map[models.ClaimID]models.Claim
	expirations map[models.PolicyID]models.ExpirationRecord
	nextID      int64
}

type memTxKey struct{}

type memTx struct {
	staged []models.ExpirationRecord
}

func NewInMemory() *InMemory {
	return &InMemory{
		owners:      make(map[models.OwnerID]models.Owner),
		cars:        make(map[models.CarID]models.Car),
		policies:    make(map[models.PolicyID]models.Policy),
		claims:      make(map[models.ClaimID]models.Claim),
		expirations: make(map[models.PolicyID]models.ExpirationRecord),
	}
}

func (s *InMemory) id() int64 {
	s.nextID++
	return s.nextID
}

// RunInTx runs fn with expiration writes staged in the context. Staged
// records become visible only if fn returns nil.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range tx.staged {
		if _, exists := s.expirations[rec.PolicyID]; exists {
			continue
		}
		s.expirations[rec.PolicyID] = rec
	}
	return nil
}

func (s *InMemory) CreateOwner(_ context.Context, owner *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner.ID = models.OwnerID(s.id())
	s.owners[owner.ID] = *owner
	return nil
}

func (s *InMemory) CreateCar(_ context.Context, car *models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[car.OwnerID]; !ok {
		return fmt.Errorf("owner %d: %w", car.OwnerID, sentinel.ErrInvalidReference)
	}
	for _, existing := range s.cars {
		if strings.EqualFold(existing.VIN, car.VIN) {
			return fmt.Errorf("vin %s: %w", car.VIN, sentinel.ErrAlreadyUsed)
		}
	}
	car.ID = models.CarID(s.id())
	s.cars[car.ID] = *car
	return nil
}

func (s *InMemory) CountCars(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cars), nil
}

func (s *InMemory) ListCars(_ context.Context) ([]models.CarWithOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cars := make([]models.CarWithOwner, 0, len(s.cars))
	for _, car := range s.cars {
		owner := s.owners[car.OwnerID]
		cars = append(cars, models.CarWithOwner{Car: car, OwnerName: owner.Name, OwnerEmail: owner.Email})
	}
	sort.Slice(cars, func(i, j int) bool { return cars[i].ID < cars[j].ID })
	return cars, nil
}

func (s *InMemory) CarExists(_ context.Context, carID models.CarID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cars[carID]
	return ok, nil
}

func (s *InMemory) HasPolicyCovering(_ context.Context, carID models.CarID, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.policies {
		if p.CarID == carID && p.CoversDate(day) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) CreatePolicy(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cars[policy.CarID]; !ok {
		return fmt.Errorf("car %d: %w", policy.CarID, sentinel.ErrInvalidReference)
	}
	policy.ID = models.PolicyID(s.id())
	s.policies[policy.ID] = *policy
	return nil
}

func (s *InMemory) ListPoliciesByCar(_ context.Context, carID models.CarID) ([]models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Policy
	for _, p := range s.policies {
		if p.CarID == carID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (s *InMemory) CreateClaim(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cars[claim.CarID]; !ok {
		return fmt.Errorf("car %d: %w", claim.CarID, sentinel.ErrInvalidReference)
	}
	claim.ID = models.ClaimID(s.id())
	s.claims[claim.ID] = *claim
	return nil
}

func (s *InMemory) ListClaimsByCar(_ context.Context, carID models.CarID) ([]models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Claim
	for _, c := range s.claims {
		if c.CarID == carID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClaimDate.Equal(out[j].ClaimDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ClaimDate.Before(out[j].ClaimDate)
	})
	return out, nil
}

// ListUnprocessedExpiredPolicies returns policies with an end date on or
// before asOf and no expiration record, ordered by policy ID.
func (s *InMemory) ListUnprocessedExpiredPolicies(_ context.Context, asOf time.Time) ([]models.ExpiredPolicy, error) {
	asOf = models.DateOf(asOf)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ExpiredPolicy
	for _, p := range s.policies {
		if p.EndDate == nil || p.EndDate.After(asOf) {
			continue
		}
		if _, recorded := s.expirations[p.ID]; recorded {
			continue
		}
		car := s.cars[p.CarID]
		out = append(out, models.ExpiredPolicy{
			Policy: p,
			Car:    car,
			Owner:  s.owners[car.OwnerID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Policy.ID < out[j].Policy.ID })
	return out, nil
}

// AppendExpirationRecords inserts records whose policy has none yet and
// returns the inserted ones. Inside RunInTx the writes are staged.
func (s *InMemory) AppendExpirationRecords(ctx context.Context, records []models.ExpirationRecord) ([]models.ExpirationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, inTx := ctx.Value(memTxKey{}).(*memTx)
	staged := make(map[models.PolicyID]bool)
	if inTx {
		for _, rec := range tx.staged {
			staged[rec.PolicyID] = true
		}
	}

	for _, rec := range records {
		if _, ok := s.policies[rec.PolicyID]; !ok {
			return nil, fmt.Errorf("policy %d: %w", rec.PolicyID, sentinel.ErrInvalidReference)
		}
	}

	inserted := make([]models.ExpirationRecord, 0, len(records))
	for _, rec := range records {
		if _, exists := s.expirations[rec.PolicyID]; exists || staged[rec.PolicyID] {
			continue
		}
		rec.ID = models.ExpirationRecordID(s.id())
		staged[rec.PolicyID] = true
		inserted = append(inserted, rec)
	}

	if inTx {
		tx.staged = append(tx.staged, inserted...)
		return inserted, nil
	}
	for _, rec := range inserted {
		s.expirations[rec.PolicyID] = rec
	}
	return inserted, nil
}

// ListExpirationRecords returns all records, newest first.
func (s *InMemory) ListExpirationRecords(_ context.Context) ([]models.ExpirationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ExpirationRecord, 0, len(s.expirations))
	for _, rec := range s.expirations {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProcessedAt.Equal(out[j].ProcessedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ProcessedAt.After(out[j].ProcessedAt)
	})
	return out, nil
}
