package witerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds. Every error returned by the witness generator wraps exactly one of these.
var (
	ErrTraceInconsistency = errors.New("W1|TraceInconsistency: The trace and the witness generator disagree about VM semantics.")
	ErrCapacityExhaustion = errors.New("W2|CapacityExhaustion: A queue could not be drained within the configured geometry.")
)

// Reconciliation (R) Errors
var (
	ErrRReadMismatch         = errors.New("R1|ReadMismatch: A read or write pre-image differs from the slot's current value.")
	ErrRRollbackMismatch     = errors.New("R2|RollbackMismatch: A rollback does not undo the most recent write of its slot.")
	ErrRRollbackUnderflow    = errors.New("R3|RollbackUnderflow: A rollback was replayed against an empty change stack.")
	ErrRRollbackOnFirstTouch = errors.New("R4|RollbackOnFirstTouch: The first access of a slot is a rollback.")
)

// Queue (Q) Errors
var (
	ErrQQueueExhausted = errors.New("Q1|QueueExhausted: Pop called on a queue with no remaining items.")
	ErrQItemEncoding   = errors.New("Q2|ItemEncoding: A queue item could not be canonically encoded.")
)

// Demultiplexer (D) Errors
var (
	ErrDUnknownAuxByte     = errors.New("D1|UnknownAuxByte: An event carries an aux byte that maps to no channel.")
	ErrDPrecompileRollback = errors.New("D2|PrecompileRollback: A precompile call was marked as rolled back.")
	ErrDWorkWithoutRequest = errors.New("D3|WorkWithoutRequest: Precompile work was supplied for a call absent from the log.")
	ErrDRequestWithoutWork = errors.New("D4|RequestWithoutWork: A precompile call has no supplied memory work.")
)

// Chunker (C) Errors
var (
	ErrCRequestMismatch     = errors.New("C1|RequestMismatch: The supplied work belongs to a different request.")
	ErrCRoundCountMismatch  = errors.New("C2|RoundCountMismatch: The number of replayed rounds differs from the request metadata.")
	ErrCMemoryQueryMismatch = errors.New("C3|MemoryQueryMismatch: A memory query has the wrong count, flag, page, index or timestamp.")
	ErrCOutputMismatch      = errors.New("C4|OutputMismatch: A written value differs from the recomputed result.")
	ErrCInvalidHeader       = errors.New("C5|InvalidHeader: A request header is malformed.")
	ErrCOrderViolation      = errors.New("C6|OrderViolation: Queue items are not in the required order.")
	ErrCStaleDecommit       = errors.New("C7|StaleDecommit: A decommitment request was not the first for its code.")
)

// Geometry (G) Errors
var (
	ErrGInvalidCapacity = errors.New("G1|InvalidCapacity: A resource has a non-positive per-circuit capacity.")
	ErrGTooManyCircuits = errors.New("G2|TooManyCircuits: A resource needs more circuits than the configured limit.")
)

type kindError struct {
	kind   error
	cause  error
	detail string
}

func (e *kindError) Error() string {
	if e.detail == "" {
		return e.cause.Error()
	}
	return e.cause.Error() + " (" + e.detail + ")"
}

func (e *kindError) Unwrap() []error {
	return []error{e.cause, e.kind}
}

func wrap(kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		cause = kind
	}
	return &kindError{kind: kind, cause: cause, detail: fmt.Sprintf(format, args...)}
}

// Inconsistency returns a TraceInconsistency caused by cause.
func Inconsistency(cause error, format string, args ...interface{}) error {
	return wrap(ErrTraceInconsistency, cause, format, args...)
}

// Exhausted returns a CapacityExhaustion caused by cause.
func Exhausted(cause error, format string, args ...interface{}) error {
	return wrap(ErrCapacityExhaustion, cause, format, args...)
}

func IsTraceInconsistency(err error) bool {
	return errors.Is(err, ErrTraceInconsistency)
}

func IsCapacityExhaustion(err error) bool {
	return errors.Is(err, ErrCapacityExhaustion)
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorKind returns "TraceInconsistency", "CapacityExhaustion" or "".
func GetErrorKind(err error) string {
	switch {
	case IsTraceInconsistency(err):
		return GetErrorName(ErrTraceInconsistency)
	case IsCapacityExhaustion(err):
		return GetErrorName(ErrCapacityExhaustion)
	default:
		return ""
	}
}
