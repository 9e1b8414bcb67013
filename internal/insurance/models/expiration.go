package models

import (
	"errors"
	"time"
)

// ExpirationRecord marks that a policy's expiration was detected.
// At most one exists per policy; it is never updated or deleted.
type ExpirationRecord struct {
	ID             ExpirationRecordID
	PolicyID       PolicyID
	ExpirationDate time.Time
	ProcessedAt    time.Time
}

// ExpiredPolicy is a candidate returned by the expiration query: a policy
// whose end date has passed and that has no ExpirationRecord yet, joined
// with the car and owner context used in the audit message.
type ExpiredPolicy struct {
	Policy Policy
	Car    Car
	Owner  Owner
}

var (
	errMissingPolicyID = errors.New("policy id is missing")
	errMissingEndDate  = errors.New("policy has no end date")
	errMissingCar      = errors.New("car context is missing")
	errMissingOwner    = errors.New("owner context is missing")
)

// Validate reports malformed candidate data that must not be recorded.
func (e ExpiredPolicy) Validate() error {
	switch {
	case e.Policy.ID == 0:
		return errMissingPolicyID
	case e.Policy.EndDate == nil || e.Policy.EndDate.IsZero():
		return errMissingEndDate
	case e.Car.ID == 0 || e.Car.ID != e.Policy.CarID:
		return errMissingCar
	case e.Owner.ID == 0 || e.Owner.ID != e.Car.OwnerID:
		return errMissingOwner
	}
	return nil
}

// ExpiresAt is the instant coverage ended: midnight UTC of the end date.
// Callers must Validate first.
func (e ExpiredPolicy) ExpiresAt() time.Time {
	return DateOf(*e.Policy.EndDate)
}

// NewExpirationRecord stages the record for a detected expiration.
func NewExpirationRecord(p Policy, processedAt time.Time) ExpirationRecord {
	return ExpirationRecord{
		PolicyID:       p.ID,
		ExpirationDate: DateOf(*p.EndDate),
		ProcessedAt:    processedAt.UTC(),
	}
}

// ExpirationNotice pairs a committed record with the context it was detected
// with, for post-commit notification.
type ExpirationNotice struct {
	Record    ExpirationRecord
	Candidate ExpiredPolicy
}
