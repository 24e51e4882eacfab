package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuth             = errors.New("upstream rejected credentials")
	ErrRenewalExhausted = errors.New("session ticket could not be renewed")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrUpstream         = errors.New("upstream error")
	ErrSchemaMismatch   = errors.New("unexpected stats schema")
	ErrFetch            = errors.New("stats fetch failed")
	ErrStore            = errors.New("identity store error")
)

type SchemaMismatchError struct {
	Variant  GameVariant
	Observed int
	Expected int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("unexpected stats schema for %s: got %d entries, expected %d", e.Variant, e.Observed, e.Expected)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// FetchError is the failure of a single profile slot within a batch.
type FetchError struct {
	ProfileID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch stats for profile %s: %v", e.ProfileID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
