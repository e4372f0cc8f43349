package clients

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a provider error for retry decisions.
type ErrorKind string

const (
	// KindTransient errors are retried up to the integration's budget.
	KindTransient ErrorKind = "TRANSIENT"
	// KindAuthentication errors fail fast; retrying cannot help.
	KindAuthentication ErrorKind = "AUTHENTICATION"
	// KindRequest errors are malformed or rejected requests; also fail fast.
	KindRequest ErrorKind = "REQUEST"
)

// ProviderError is a typed error reported by an external platform.
type ProviderError struct {
	Kind        ErrorKind
	Code        string
	Description string
	StatusCode  int
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Transient reports whether the error is worth retrying.
func (e *ProviderError) Transient() bool {
	return e.Kind == KindTransient
}

// NewTransientError builds a retryable provider error.
func NewTransientError(code, description string) *ProviderError {
	return &ProviderError{Kind: KindTransient, Code: code, Description: description}
}

// NewAuthenticationError builds a fail-fast auth error.
func NewAuthenticationError(description string) *ProviderError {
	return &ProviderError{Kind: KindAuthentication, Code: "AUTH", Description: description}
}

// NewRequestError builds a fail-fast request error.
func NewRequestError(code, description string) *ProviderError {
	return &ProviderError{Kind: KindRequest, Code: code, Description: description}
}

// ClassifyStatus maps an HTTP status to a provider error. 429 and 5xx are
// transient; 401/403 are authentication; everything else 4xx is a request
// error.
func ClassifyStatus(status int, body string) *ProviderError {
	desc := strings.TrimSpace(body)
	if len(desc) > 500 {
		desc = desc[:500]
	}
	switch {
	case status == 429 || status >= 500:
		return &ProviderError{Kind: KindTransient, Code: fmt.Sprintf("HTTP_%d", status), Description: desc, StatusCode: status}
	case status == 401 || status == 403:
		return &ProviderError{Kind: KindAuthentication, Code: fmt.Sprintf("HTTP_%d", status), Description: desc, StatusCode: status}
	default:
		return &ProviderError{Kind: KindRequest, Code: fmt.Sprintf("HTTP_%d", status), Description: desc, StatusCode: status}
	}
}

// RetryExhaustedError is returned when every attempt of a call failed with a
// transient error. Failures carries one entry per distinct error code seen,
// so operators get the full picture from a single log line. The sync layer
// translates this into disabling the integration.
type RetryExhaustedError struct {
	Operation string
	Attempts  int
	Failures  []ProviderError
}

func (e *RetryExhaustedError) Error() string {
	kinds := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		kinds = append(kinds, fmt.Sprintf("%s: %s", f.Code, f.Description))
	}
	return fmt.Sprintf("%s failed after %d attempts: %s", e.Operation, e.Attempts, strings.Join(kinds, "; "))
}

// AsProviderError unwraps err into a ProviderError if possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
