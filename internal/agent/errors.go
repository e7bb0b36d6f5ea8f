package agent

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a transport failure.
type Kind int

const (
	KindProvider Kind = iota
	KindUnauthorized
	KindRateLimited
	KindNetwork
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrNetwork      = errors.New("network failure")
	ErrProvider     = errors.New("provider error")
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	default:
		return "provider"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindRateLimited:
		return ErrRateLimited
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrProvider
	}
}

// TransportError is a failure talking to the model provider. It matches the
// Err* sentinel of its Kind with errors.Is.
type TransportError struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Retryable reports whether resending the same request may succeed.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindNetwork:
		return true
	case KindProvider:
		return e.StatusCode == 0 || e.StatusCode >= 500
	default:
		return false
	}
}

// StatusError maps an HTTP status to a TransportError.
func StatusError(provider string, code int, message string) *TransportError {
	kind := KindProvider
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	}
	return &TransportError{Provider: provider, Kind: kind, StatusCode: code, Message: truncate(message, 512)}
}

func NetworkError(provider string, err error) *TransportError {
	return &TransportError{Provider: provider, Kind: KindNetwork, Err: err}
}

// IsRetryable reports whether err is a transport failure worth resending.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable()
}

// KindOf returns the kind of the transport failure in err's chain.
func KindOf(err error) (Kind, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
