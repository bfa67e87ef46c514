package models

import (
	"context"
	"errors"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInvalidBar          = errors.New("invalid bar")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConfiguration       = errors.New("configuration error")
	ErrSymbolNotFound      = errors.New("symbol not found")
)

// ErrorKind maps an error to a short label used in logs, metrics and skip reasons.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrInvalidBar):
		return "invalid_bar"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
