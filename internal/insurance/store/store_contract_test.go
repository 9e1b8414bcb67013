package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/suite"

	"carinsurance/internal/insurance/models"
	"carinsurance/internal/insurance/store"
	"carinsurance/pkg/platform/sentinel"
)

// insuranceStore is the full surface shared by InMemory and PostgresStore.
type insuranceStore interface {
	store.Seeder
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListCars(ctx context.Context) ([]models.CarWithOwner, error)
	CarExists(ctx context.Context, carID models.CarID) (bool, error)
	HasPolicyCovering(ctx context.Context, carID models.CarID, day time.Time) (bool, error)
	ListPoliciesByCar(ctx context.Context, carID models.CarID) ([]models.Policy, error)
	CreateClaim(ctx context.Context, claim *models.Claim) error
	ListClaimsByCar(ctx context.Context, carID models.CarID) ([]models.Claim, error)
	ListUnprocessedExpiredPolicies(ctx context.Context, asOf time.Time) ([]models.ExpiredPolicy, error)
	AppendExpirationRecords(ctx context.Context, records []models.ExpirationRecord) ([]models.ExpirationRecord, error)
	ListExpirationRecords(ctx context.Context) ([]models.ExpirationRecord, error)
}

var (
	_ insuranceStore = (*store.InMemory)(nil)
	_ insuranceStore = (*store.PostgresStore)(nil)
)

// StoreContractSuite holds behavior both stores must agree on. Concrete
// suites embed it and set newStore.
type StoreContractSuite struct {
	suite.Suite
	newStore func() insuranceStore
	store    insuranceStore
	ctx      context.Context
	today    time.Time
}

func (s *StoreContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
	s.today = time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
}

func (s *StoreContractSuite) day(offset int) time.Time {
	return s.today.AddDate(0, 0, offset)
}

func (s *StoreContractSuite) dayPtr(offset int) *time.Time {
	d := s.day(offset)
	return &d
}

func (s *StoreContractSuite) newCar(vin string) models.Car {
	owner := &models.Owner{Name: "Owner of " + vin, Email: vin + "@example.com"}
	s.Require().NoError(s.store.CreateOwner(s.ctx, owner))
	car := &models.Car{VIN: vin, Make: "Dacia", Model: "Logan", YearOfManufacture: 2019, OwnerID: owner.ID}
	s.Require().NoError(s.store.CreateCar(s.ctx, car))
	return *car
}

func (s *StoreContractSuite) newPolicy(carID models.CarID, start time.Time, end *time.Time) models.Policy {
	p := &models.Policy{CarID: carID, Provider: "Allianz", StartDate: start, EndDate: end}
	s.Require().NoError(s.store.CreatePolicy(s.ctx, p))
	return *p
}

func (s *StoreContractSuite) TestCreateCar() {
	car := s.newCar("VIN-1")
	s.NotZero(car.ID)

	s.Run("duplicate VIN differing in case is rejected", func() {
		dup := &models.Car{VIN: "vin-1", YearOfManufacture: 2020, OwnerID: car.OwnerID}
		err := s.store.CreateCar(s.ctx, dup)
		s.True(errors.Is(err, sentinel.ErrAlreadyUsed), "got %v", err)
	})

	s.Run("unknown owner is rejected", func() {
		err := s.store.CreateCar(s.ctx, &models.Car{VIN: "VIN-X", YearOfManufacture: 2020, OwnerID: 9999})
		s.True(errors.Is(err, sentinel.ErrInvalidReference), "got %v", err)
	})

	s.Run("listed with owner", func() {
		cars, err := s.store.ListCars(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(cars, 1)
		s.Equal("Owner of VIN-1", cars[0].OwnerName)
		s.Equal("VIN-1@example.com", cars[0].OwnerEmail)
	})

	s.Run("exists", func() {
		ok, err := s.store.CarExists(s.ctx, car.ID)
		s.Require().NoError(err)
		s.True(ok)
		ok, err = s.store.CarExists(s.ctx, 9999)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *StoreContractSuite) TestPolicyCoverage() {
	car := s.newCar("VIN-COV")
	s.newPolicy(car.ID, s.day(-10), s.dayPtr(0))
	s.newPolicy(car.ID, s.day(5), nil)

	cases := map[int]bool{-11: false, -10: true, 0: true, 1: false, 4: false, 5: true, 500: true}
	for offset, want := range cases {
		got, err := s.store.HasPolicyCovering(s.ctx, car.ID, s.day(offset))
		s.Require().NoError(err)
		s.Equal(want, got, "offset %d", offset)
	}

	err := s.store.CreatePolicy(s.ctx, &models.Policy{CarID: 9999, Provider: "X", StartDate: s.today})
	s.True(errors.Is(err, sentinel.ErrInvalidReference), "got %v", err)
}

func (s *StoreContractSuite) TestPoliciesAndClaimsAreOrdered() {
	car := s.newCar("VIN-ORD")
	later := s.newPolicy(car.ID, s.day(100), nil)
	earlier := s.newPolicy(car.ID, s.day(-100), s.dayPtr(99))

	policies, err := s.store.ListPoliciesByCar(s.ctx, car.ID)
	s.Require().NoError(err)
	s.Require().Len(policies, 2)
	s.Equal(earlier.ID, policies[0].ID)
	s.Equal(later.ID, policies[1].ID)
	s.Nil(policies[1].EndDate)
	s.True(policies[0].EndDate.Equal(s.day(99)))

	for _, offset := range []int{3, -3, 0} {
		s.Require().NoError(s.store.CreateClaim(s.ctx, &models.Claim{CarID: car.ID, ClaimDate: s.day(offset), Description: "c", AmountCents: 10}))
	}
	claims, err := s.store.ListClaimsByCar(s.ctx, car.ID)
	s.Require().NoError(err)
	s.Require().Len(claims, 3)
	s.True(claims[0].ClaimDate.Equal(s.day(-3)))
	s.True(claims[2].ClaimDate.Equal(s.day(3)))

	err = s.store.CreateClaim(s.ctx, &models.Claim{CarID: 9999, ClaimDate: s.today, Description: "c", AmountCents: 10})
	s.True(errors.Is(err, sentinel.ErrInvalidReference), "got %v", err)
}

func (s *StoreContractSuite) TestListUnprocessedExpiredPolicies() {
	car := s.newCar("VIN-EXP")
	today := s.newPolicy(car.ID, s.day(-30), s.dayPtr(0))
	past := s.newPolicy(car.ID, s.day(-60), s.dayPtr(-31))
	s.newPolicy(car.ID, s.day(-30), s.dayPtr(1))
	s.newPolicy(car.ID, s.day(-30), nil)
	recorded := s.newPolicy(car.ID, s.day(-30), s.dayPtr(-1))
	_, err := s.store.AppendExpirationRecords(s.ctx, []models.ExpirationRecord{
		models.NewExpirationRecord(recorded, s.today),
	})
	s.Require().NoError(err)

	candidates, err := s.store.ListUnprocessedExpiredPolicies(s.ctx, s.today)
	s.Require().NoError(err)
	s.Require().Len(candidates, 2)
	s.Equal(today.ID, candidates[0].Policy.ID)
	s.Equal(past.ID, candidates[1].Policy.ID)

	c := candidates[0]
	s.Require().NoError(c.Validate())
	s.Equal(car.VIN, c.Car.VIN)
	s.Equal("Owner of VIN-EXP", c.Owner.Name)
	s.True(c.ExpiresAt().Equal(s.today))
}

func (s *StoreContractSuite) TestAppendExpirationRecordsSkipsRecordedPolicies() {
	car := s.newCar("VIN-APP")
	a := s.newPolicy(car.ID, s.day(-30), s.dayPtr(0))
	b := s.newPolicy(car.ID, s.day(-30), s.dayPtr(0))
	processedAt := time.Date(2025, 8, 28, 9, 30, 0, 0, time.UTC)

	first, err := s.store.AppendExpirationRecords(s.ctx, []models.ExpirationRecord{models.NewExpirationRecord(a, processedAt)})
	s.Require().NoError(err)
	s.Require().Len(first, 1)
	s.NotZero(first[0].ID)

	second, err := s.store.AppendExpirationRecords(s.ctx, []models.ExpirationRecord{
		models.NewExpirationRecord(a, processedAt.Add(time.Hour)),
		models.NewExpirationRecord(b, processedAt.Add(time.Hour)),
	})
	s.Require().NoError(err)
	s.Require().Len(second, 1)
	s.Equal(b.ID, second[0].PolicyID)

	records, err := s.store.ListExpirationRecords(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(b.ID, records[0].PolicyID, "newest first")
	s.True(records[1].ProcessedAt.Equal(processedAt), "original record is never updated")
	s.True(records[1].ExpirationDate.Equal(s.today))

	_, err = s.store.AppendExpirationRecords(s.ctx, []models.ExpirationRecord{{PolicyID: 9999, ExpirationDate: s.today, ProcessedAt: processedAt}})
	s.True(errors.Is(err, sentinel.ErrInvalidReference), "got %v", err)
}

func (s *StoreContractSuite) TestRunInTxIsAllOrNothing() {
	car := s.newCar("VIN-TX")
	p := s.newPolicy(car.ID, s.day(-30), s.dayPtr(0))
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		inserted, err := s.store.AppendExpirationRecords(ctx, []models.ExpirationRecord{models.NewExpirationRecord(p, s.today)})
		s.Require().NoError(err)
		s.Require().Len(inserted, 1)
		return boom
	})
	s.ErrorIs(err, boom)

	records, err := s.store.ListExpirationRecords(s.ctx)
	s.Require().NoError(err)
	s.Empty(records, "rolled back")

	err = s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		_, err := s.store.AppendExpirationRecords(ctx, []models.ExpirationRecord{models.NewExpirationRecord(p, s.today)})
		return err
	})
	s.Require().NoError(err)

	records, err = s.store.ListExpirationRecords(s.ctx)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *StoreContractSuite) TestSeed() {
	seeded, err := store.Seed(s.ctx, s.store, time.Date(2025, 8, 28, 10, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.True(seeded)

	cars, err := s.store.ListCars(s.ctx)
	s.Require().NoError(err)
	s.Len(cars, 3)

	candidates, err := s.store.ListUnprocessedExpiredPolicies(s.ctx, s.today)
	s.Require().NoError(err)
	s.Len(candidates, 2, "one expiring today, one long expired")

	seeded, err = store.Seed(s.ctx, s.store, s.today)
	s.Require().NoError(err)
	s.False(seeded)
}
