package models

import (
	"strings"
	"time"

	dErrors "carinsurance/pkg/domain-errors"
)

type (
	OwnerID            int64
	CarID              int64
	PolicyID           int64
	ClaimID            int64
	ExpirationRecordID int64
)

type Owner struct {
	ID    OwnerID
	Name  string
	Email string
}

type Car struct {
	ID                CarID
	VIN               string
	Make              string
	Model             string
	YearOfManufacture int
	OwnerID           OwnerID
}

// CarWithOwner is the listing view of a car.
type CarWithOwner struct {
	Car
	OwnerName  string
	OwnerEmail string
}

// Policy is an insurance coverage period for a car.
//
// Invariants:
//   - StartDate and EndDate are calendar days at midnight UTC
//   - EndDate is inclusive; nil means open-ended coverage
//   - StartDate <= EndDate when EndDate is set (checked by NewPolicy)
type Policy struct {
	ID        PolicyID
	CarID     CarID
	Provider  string
	StartDate time.Time
	EndDate   *time.Time
}

// NewPolicy validates and normalizes a policy before it is persisted.
func NewPolicy(carID CarID, provider string, start time.Time, end *time.Time) (*Policy, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "provider is required")
	}
	if start.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "start_date is required")
	}
	p := &Policy{CarID: carID, Provider: provider, StartDate: DateOf(start)}
	if end != nil {
		e := DateOf(*end)
		if e.Before(p.StartDate) {
			return nil, dErrors.New(dErrors.CodeValidation, "end_date must not be before start_date")
		}
		p.EndDate = &e
	}
	return p, nil
}

// CoversDate reports whether the policy is in force on the given day.
func (p Policy) CoversDate(day time.Time) bool {
	day = DateOf(day)
	if p.StartDate.After(day) {
		return false
	}
	return p.EndDate == nil || !p.EndDate.Before(day)
}

type Claim struct {
	ID          ClaimID
	CarID       CarID
	ClaimDate   time.Time
	Description string
	AmountCents int64
}

// NewClaim validates a claim before it is persisted.
func NewClaim(carID CarID, claimDate time.Time, description string, amountCents int64) (*Claim, error) {
	description = strings.TrimSpace(description)
	if claimDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim_date is required")
	}
	if description == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "description is required")
	}
	if amountCents <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount_cents must be positive")
	}
	return &Claim{
		CarID:       carID,
		ClaimDate:   DateOf(claimDate),
		Description: description,
		AmountCents: amountCents,
	}, nil
}

// PolicyPeriod is a policy together with the claims filed during it.
type PolicyPeriod struct {
	Policy Policy
	Claims []Claim
}

// CarHistory lists a car's coverage periods in start-date order.
type CarHistory struct {
	CarID   CarID
	Periods []PolicyPeriod
}
