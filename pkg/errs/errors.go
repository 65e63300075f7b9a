package errs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNormalization is returned for input that is not valid UTF-8 text.
	ErrNormalization = errors.New("normalization error: input is not valid utf-8 text")

	// ErrRetrievalUnavailable signals that retrieval degraded to an empty result.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrIngestion is matched by every *IngestionError.
	ErrIngestion = errors.New("ingestion error")

	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document contains no text")

	// ErrCompactionDeferred means the summary was not updated and the buffer
	// stays above its bound until the next overflow.
	ErrCompactionDeferred = errors.New("memory compaction deferred")
)

// Kind classifies failures of external services.
type Kind int

const (
	KindUnavailable Kind = iota
	KindRateLimited
	KindTimeout
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unavailable"
	}
}

// ServiceError is the typed failure of a completion, embedding or vector store call.
type ServiceError struct {
	Service    string // "completion" | "embedding" | "vectorstore"
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s service error (%s)", e.Service, e.Kind)
	}
	return fmt.Sprintf("%s service error (%s): %v", e.Service, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient reports whether a retry may succeed.
func (e *ServiceError) Transient() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTimeout
}

// NewServiceError builds a ServiceError, classifying context deadlines as timeouts.
func NewServiceError(service string, kind Kind, err error) *ServiceError {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &ServiceError{Service: service, Kind: kind, Err: err}
}

// FromStatus maps an HTTP status code of an upstream API to a ServiceError.
func FromStatus(service string, status int, err error) *ServiceError {
	kind := KindUnavailable
	switch {
	case status == 429:
		kind = KindRateLimited
	case status == 408 || status == 504:
		kind = KindTimeout
	case status >= 400 && status < 500:
		kind = KindInvalidRequest
	}
	return NewServiceError(service, kind, err)
}

// IsTransient reports whether err carries a retryable ServiceError.
func IsTransient(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}

// KindOf returns the kind of the first ServiceError in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IngestionError is the all-or-nothing failure of a document upload.
type IngestionError struct {
	Filename string
	Reason   error // ErrUnsupportedFormat, ErrEmptyDocument or nil
	Err      error
}

func (e *IngestionError) Error() string {
	msg := fmt.Sprintf("ingest %q", e.Filename)
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	if e.Err != nil && e.Err != e.Reason {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IngestionError) Is(target error) bool {
	return target == ErrIngestion
}

func (e *IngestionError) Unwrap() []error {
	var out []error
	if e.Reason != nil {
		out = append(out, e.Reason)
	}
	if e.Err != nil && e.Err != e.Reason {
		out = append(out, e.Err)
	}
	return out
}

// NewIngestionError wraps err, picking the validation reason out of its chain.
func NewIngestionError(filename string, err error) *IngestionError {
	var existing *IngestionError
	if errors.As(err, &existing) {
		return existing
	}
	ie := &IngestionError{Filename: filename, Err: err}
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		ie.Reason = ErrUnsupportedFormat
	case errors.Is(err, ErrEmptyDocument):
		ie.Reason = ErrEmptyDocument
	}
	return ie
}
