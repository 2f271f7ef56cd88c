package temperrors

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyList = errors.New("empty list")
	// ErrNotFound means the season was never fetched. A fetched season
	// without races is a snapshot with zero races, not ErrNotFound.
	ErrNotFound      = errors.New("season not found")
	ErrPartialData   = errors.New("partial season data")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownRound  = errors.New("unknown round")
)

// NetworkError is returned when the statistics service cannot be reached or
// keeps rejecting requests after all retries.
type NetworkError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error: %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("network error: %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError describes a single record dropped from a batch.
type ValidationError struct {
	Season int
	Round  int
	Record string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Round > 0 {
		return fmt.Sprintf("invalid %s in %d round %d: %s %s", e.Record, e.Season, e.Round, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s in %d: %s %s", e.Record, e.Season, e.Field, e.Reason)
}

// PartialData flags a season with fewer stored races than its calendar has.
type PartialData struct {
	Season   int
	Stored   int
	Expected int
}

func (e *PartialData) Error() string {
	return fmt.Sprintf("season %d: %d of %d races stored", e.Season, e.Stored, e.Expected)
}

func (e *PartialData) Is(target error) bool { return target == ErrPartialData }

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
