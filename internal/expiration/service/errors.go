package service

import "errors"

var (
	// ErrDataAccess wraps store read or write failures. The pass aborts
	// without committing; the next pass retries the same candidates.
	ErrDataAccess = errors.New("expiration data access failed")

	// ErrDuplicateRecord marks a staged record dropped because a concurrent
	// writer recorded the policy first. It never fails a pass.
	ErrDuplicateRecord = errors.New("expiration record already exists")

	// ErrInvalidCandidate marks a candidate excluded for malformed data.
	ErrInvalidCandidate = errors.New("invalid expiration candidate")

	// ErrPassFailed is matched by every *PassFailedError.
	ErrPassFailed = errors.New("reconciliation pass failed")
)

// PassFailedError is returned by RunOnePass when the pass committed nothing.
type PassFailedError struct {
	Cause error
}

func (e *PassFailedError) Error() string {
	if e.Cause == nil {
		return ErrPassFailed.Error()
	}
	return ErrPassFailed.Error() + ": " + e.Cause.Error()
}

func (e *PassFailedError) Unwrap() error {
	return e.Cause
}

func (e *PassFailedError) Is(target error) bool {
	return target == ErrPassFailed
}
