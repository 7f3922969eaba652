// Package laneerror provides the tagged error kinds raised by the mesh core
// (trace codec, resolver, balancer, registrar), with a bridge to gRPC status
// errors for the kinds that are user-visible.
package laneerror

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind identifies a specific failure mode raised by the mesh core.
type Kind string

const (
	// InvalidTraceparent is raised by the trace codec when a traceparent
	// header cannot be parsed. Recovery: the caller falls back to a root
	// TraceInfo with no parent.
	InvalidTraceparent Kind = "INVALID_TRACEPARENT"
	// InvalidTracestate is raised when a tracestate member is malformed.
	// Recovery: the member is ignored, others are preserved.
	InvalidTracestate Kind = "INVALID_TRACESTATE"
	// InvalidTarget is raised when a cloud:// target URI fails the
	// grammar in spec §6. Recovery: resolver construction fails fast.
	InvalidTarget Kind = "INVALID_TARGET"
	// RegistryUnavailable is raised when the registry client cannot be
	// reached by the resolver or the registrar.
	RegistryUnavailable Kind = "REGISTRY_UNAVAILABLE"
	// NoAvailableBackend is raised by the balancer's pick when neither
	// the requested lane nor the default lane has a ready subchannel.
	NoAvailableBackend Kind = "NO_AVAILABLE_BACKEND"
	// RegistrationExhausted is raised by the registrar after its retry
	// budget is spent without a successful registration.
	RegistrationExhausted Kind = "REGISTRATION_EXHAUSTED"
)

// Error is the concrete error type carrying a Kind, a human-readable
// message and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New builds an Error with no underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// GRPCStatus converts the error into a gRPC status, so that a
// NoAvailableBackend (for example) surfaces as codes.Unavailable to an RPC
// caller without any extra translation at the call site.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.grpcCode(), e.Message)
}

func (e *Error) grpcCode() codes.Code {
	switch e.Kind {
	case NoAvailableBackend:
		return codes.Unavailable
	case InvalidTarget:
		return codes.InvalidArgument
	case RegistryUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Is allows errors.Is(err, laneerror.New(kind, "")) style matching on Kind
// alone, ignoring Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
