package cti

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Callers match on kind with errors.Is against
// the sentinel values below or with KindOf.
type Kind string

const (
	KindInvalidKeySize        Kind = "InvalidKeySize"
	KindMalformedEnvelope     Kind = "MalformedEnvelope"
	KindAuthenticationFailure Kind = "AuthenticationFailure"
	KindIntegrityViolation    Kind = "IntegrityViolation"
	KindNotFound              Kind = "NotFound"
	KindUnauthorized          Kind = "Unauthorized"
	KindTransient             Kind = "TransientError"
	KindResponseFormat        Kind = "ResponseFormatError"
	KindAlreadyExists         Kind = "AlreadyExists"
	KindInvalidRecord         Kind = "InvalidRecord"
)

// Known reports whether k is one of the kinds above.
func (k Kind) Known() bool {
	switch k {
	case KindInvalidKeySize, KindMalformedEnvelope, KindAuthenticationFailure,
		KindIntegrityViolation, KindNotFound, KindUnauthorized, KindTransient,
		KindResponseFormat, KindAlreadyExists, KindInvalidRecord:
		return true
	}
	return false
}

var (
	ErrInvalidKeySize        = &Error{Kind: KindInvalidKeySize}
	ErrMalformedEnvelope     = &Error{Kind: KindMalformedEnvelope}
	ErrAuthenticationFailure = &Error{Kind: KindAuthenticationFailure}
	ErrIntegrityViolation    = &Error{Kind: KindIntegrityViolation}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrTransient             = &Error{Kind: KindTransient}
	ErrResponseFormat        = &Error{Kind: KindResponseFormat}
	ErrAlreadyExists         = &Error{Kind: KindAlreadyExists}
	ErrInvalidRecord         = &Error{Kind: KindInvalidRecord}
)

// Error is a classified failure returned by every client boundary.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, string(e.Kind))
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports a match when target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E builds a classified error for op. A nil cause is allowed.
func E(kind Kind, op string, cause error) error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Classify keeps an already classified error as is. Context expiry and
// cancellation become TransientError; anything else gets fallback.
func Classify(op string, err error, fallback Kind) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return E(KindTransient, op, err)
	}
	return E(fallback, op, err)
}

// Step names a stage of the publish or retrieve pipeline.
type Step string

const (
	StepGenerateKey    Step = "generate_key"
	StepSeal           Step = "seal"
	StepBlobPut        Step = "blob_put"
	StepSecretPut      Step = "secret_put"
	StepLedgerSubmit   Step = "ledger_submit"
	StepLedgerEvaluate Step = "ledger_evaluate"
	StepBlobGet        Step = "blob_get"
	StepSecretGet      Step = "secret_get"
	StepOpen           Step = "open"
	StepVerify         Step = "verify"
)

// PipelineError reports the step at which a pipeline aborted. The cause keeps
// its kind so errors.Is(err, ErrAuthenticationFailure) still holds.
type PipelineError struct {
	Step  Step
	Cause error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline aborted at %s: %v", e.Step, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// StepOf returns the failed step if err carries a PipelineError.
func StepOf(err error) (Step, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Step, true
	}
	return "", false
}
