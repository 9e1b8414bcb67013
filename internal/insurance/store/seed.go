package store

import (
	"context"
	"fmt"
	"time"

	"carinsurance/internal/insurance/models"
)

// Seeder is the write surface used to bootstrap demo data.
type Seeder interface {
	CountCars(ctx context.Context) (int, error)
	CreateOwner(ctx context.Context, owner *models.Owner) error
	CreateCar(ctx context.Context, car *models.Car) error
	CreatePolicy(ctx context.Context, policy *models.Policy) error
}

// Seed inserts a small fleet of owners, cars and policies when the store has
// no cars yet. Policy dates are relative to today so one policy expires today.
// Returns false when the store was already populated.
func Seed(ctx context.Context, s Seeder, now time.Time) (bool, error) {
	n, err := s.CountCars(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	today := models.DateOf(now)
	day := func(offset int) time.Time { return today.AddDate(0, 0, offset) }
	dayPtr := func(offset int) *time.Time { d := day(offset); return &d }

	owners := []*models.Owner{
		{Name: "Ana Pop", Email: "ana.pop@example.com"},
		{Name: "Bogdan Ionescu", Email: "bogdan.ionescu@example.com"},
	}
	for _, o := range owners {
		if err := s.CreateOwner(ctx, o); err != nil {
			return false, fmt.Errorf("seed owner %s: %w", o.Name, err)
		}
	}

	cars := []*models.Car{
		{VIN: "VIN12345", Make: "Dacia", Model: "Logan", YearOfManufacture: 2018, OwnerID: owners[0].ID},
		{VIN: "VIN67890", Make: "VW", Model: "Golf", YearOfManufacture: 2021, OwnerID: owners[1].ID},
		{VIN: "VIN24680", Make: "Skoda", Model: "Octavia", YearOfManufacture: 2019, OwnerID: owners[1].ID},
	}
	for _, c := range cars {
		if err := s.CreateCar(ctx, c); err != nil {
			return false, fmt.Errorf("seed car %s: %w", c.VIN, err)
		}
	}

	policies := []*models.Policy{
		{CarID: cars[0].ID, Provider: "Allianz", StartDate: day(-365), EndDate: dayPtr(0)},
		{CarID: cars[0].ID, Provider: "Groupama", StartDate: day(1), EndDate: dayPtr(366)},
		{CarID: cars[1].ID, Provider: "Generali", StartDate: day(-200), EndDate: nil},
		{CarID: cars[2].ID, Provider: "Omniasig", StartDate: day(-400), EndDate: dayPtr(-35)},
	}
	for _, p := range policies {
		if err := s.CreatePolicy(ctx, p); err != nil {
			return false, fmt.Errorf("seed policy for car %d: %w", p.CarID, err)
		}
	}
	return true, nil
}
