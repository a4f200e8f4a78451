// Package provider defines the status provider capability and its adapters.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/saviobatista/flightwatch/internal/types"
)

// StatusProvider fetches the current status of one flight from an external API
type StatusProvider interface {
	// Name returns the provider name used for cache entries and block state
	Name() string

	// FetchStatus returns a normalized payload or a tagged *Error
	FetchStatus(ctx context.Context, flight *types.Flight) (*types.StatusPayload, error)
}

// PositionProvider fetches a live position for an airborne flight
type PositionProvider interface {
	Name() string
	FetchPosition(ctx context.Context, flight *types.Flight) (*types.Position, error)
}

// Kind classifies provider and caller failures
type Kind string

const (
	KindBadQuery       Kind = "bad_query"
	KindBadDate        Kind = "bad_date"
	KindNoProvider     Kind = "no_provider"
	KindNoMatch        Kind = "no_match"
	KindRateLimited    Kind = "rate_limited"
	KindQuotaExceeded  Kind = "quota_exceeded"
	KindProviderError  Kind = "provider_error"
	KindAuthError      Kind = "auth_error"
	KindBadRequest     Kind = "bad_request"
	KindPlanRestricted Kind = "plan_restricted"
)

// Error is the tagged failure returned by every provider
type Error struct {
	Provider   string
	Kind       Kind
	RetryAfter time.Duration
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Throttled reports whether the provider asked to be left alone for a while
func (e *Error) Throttled() bool {
	return e.Kind == KindRateLimited || e.Kind == KindQuotaExceeded
}

// NewError creates a tagged provider error
func NewError(provider string, kind Kind, message string) *Error {
	return &Error{Provider: provider, Kind: kind, Message: message}
}

// KindOf returns the tagged kind of err, or provider_error for untagged failures
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProviderError
}

// parseRetryAfter reads a Retry-After header holding a number of seconds
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// flightIATA joins airline and number the way most APIs expect (e.g. AI157)
func flightIATA(flight *types.Flight) string {
	return strings.ToUpper(strings.TrimSpace(flight.AirlineCode)) + strings.TrimSpace(flight.FlightNumber)
}
