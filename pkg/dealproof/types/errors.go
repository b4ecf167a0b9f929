package types

import (
	"context"
	"errors"
	"fmt"
)

// Kind represents the category of error
type Kind int

const (
	KindOther Kind = iota
	KindInvalidInput
	KindInvalidSeek
	KindEmptyContent
	KindDivisionByZero
	KindShortRead
	KindTransientIO
	KindContentNotFound
	KindProofVerificationFailed
	KindOverflow
	KindAlreadyRecorded
	KindWindowExpired
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidSeek:
		return "InvalidSeek"
	case KindEmptyContent:
		return "EmptyContent"
	case KindDivisionByZero:
		return "DivisionByZero"
	case KindShortRead:
		return "ShortRead"
	case KindTransientIO:
		return "TransientIOError"
	case KindContentNotFound:
		return "ContentNotFound"
	case KindProofVerificationFailed:
		return "ProofVerificationFailed"
	case KindOverflow:
		return "OverflowError"
	case KindAlreadyRecorded:
		return "AlreadyRecorded"
	case KindWindowExpired:
		return "WindowExpired"
	case KindInternal:
		return "Internal"
	default:
		return "Other"
	}
}

// Error represents an engine error with a kind
type Error struct {
	kind Kind
	msg  string
	err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err.Error())
	}
	return e.msg
}

// Kind returns the error kind
func (e *Error) Kind() Kind {
	return e.kind
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is the sentinel for this error's kind, so
// errors.Is(err, ErrShortRead) matches every short read.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind && t == sentinels[t.kind]
}

// NewError creates a new error with the given kind and message
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func NewErrorf(kind Kind, msg string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(msg, args...)}
}

// WrapError wraps an existing error with a kind and message
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

var (
	ErrInvalidInput            = NewError(KindInvalidInput, "invalid input")
	ErrInvalidSeek             = NewError(KindInvalidSeek, "invalid seek to a negative position")
	ErrEmptyContent            = NewError(KindEmptyContent, "cannot challenge empty content")
	ErrDivisionByZero          = NewError(KindDivisionByZero, "cannot divide by zero")
	ErrShortRead               = NewError(KindShortRead, "short read")
	ErrTransientIO             = NewError(KindTransientIO, "transient i/o error")
	ErrContentNotFound         = NewError(KindContentNotFound, "content not found")
	ErrProofVerificationFailed = NewError(KindProofVerificationFailed, "proof verification failed")
	ErrOverflow                = NewError(KindOverflow, "block number arithmetic overflow")
	ErrAlreadyRecorded         = NewError(KindAlreadyRecorded, "proof already recorded")
	ErrWindowExpired           = NewError(KindWindowExpired, "proof window expired")
	ErrInternal                = NewError(KindInternal, "internal error")
)

var sentinels = map[Kind]*Error{
	KindInvalidInput:            ErrInvalidInput,
	KindInvalidSeek:             ErrInvalidSeek,
	KindEmptyContent:            ErrEmptyContent,
	KindDivisionByZero:          ErrDivisionByZero,
	KindShortRead:               ErrShortRead,
	KindTransientIO:             ErrTransientIO,
	KindContentNotFound:         ErrContentNotFound,
	KindProofVerificationFailed: ErrProofVerificationFailed,
	KindOverflow:                ErrOverflow,
	KindAlreadyRecorded:         ErrAlreadyRecorded,
	KindWindowExpired:           ErrWindowExpired,
	KindInternal:                ErrInternal,
}

// KindOf returns the kind of the first *Error in err's chain. Context
// deadline and cancellation errors not otherwise classified are transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransientIO
	}
	return KindOther
}

// IsRetryable reports whether err may succeed if the same call is repeated.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientIO
}

// Transient classifies err as a retryable i/o failure unless it already
// carries a kind.
func Transient(msg string, err error) error {
	if KindOf(err) != KindOther {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return WrapError(KindTransientIO, msg, err)
}

// DealFailure is the terminal error surfaced when a deal can never be proven,
// e.g. content is permanently unavailable or the outboard tree cannot be
// reconstructed.
type DealFailure struct {
	DealID DealID
	Window uint64
	Err    error
}

func (f *DealFailure) Error() string {
	return fmt.Sprintf("deal %s failed at window %d: %s", f.DealID, f.Window, f.Err)
}

func (f *DealFailure) Unwrap() error {
	return f.Err
}

// IsDealFailure reports whether err is a terminal deal failure.
func IsDealFailure(err error) bool {
	var f *DealFailure
	return errors.As(err, &f)
}
