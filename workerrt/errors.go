package workerrt

import (
	"fmt"

	"github.com/splicehq/splice/proto"
)

// Error is what a Handler/StreamHandler returns on failure; it maps
// directly onto InvokeError's wire fields (spec.md §7).
type Error struct {
	Code    uint16
	Kind    proto.ErrorKind
	Message string
	Details []byte
}

func (e *Error) Error() string { return e.Message }

// UserErrorf builds a business-logic failure (spec.md §7 "User"):
// invalid params, caller-rejected predicate, and the like. Code is used
// exactly as given: a client-error code, or an execution code such as
// 2000 for a rejected business rule that is User-kind but reported
// under an execution code.
func UserErrorf(code uint16, format string, a ...any) *Error {
	return &Error{Code: code, Kind: proto.KindUser, Message: fmt.Sprintf(format, a...)}
}

// FunctionNotFound builds the InvokeError for an unregistered export
// (spec.md scenario S3).
func FunctionNotFound(name string) *Error {
	return &Error{Code: proto.CodeFunctionNotFound, Kind: proto.KindUser, Message: fmt.Sprintf("function %q not found", name)}
}

// SystemErrorf builds a worker-side defect failure (panic, unhandled
// exception, serialization failure).
func SystemErrorf(format string, a ...any) *Error {
	return &Error{Code: proto.CodeExecutionFailed, Kind: proto.KindSystem, Message: fmt.Sprintf(format, a...)}
}

func panicError(r any) *Error {
	return &Error{Code: proto.CodePanic, Kind: proto.KindSystem, Message: fmt.Sprintf("panic: %v", r)}
}

func cancelledError() *Error {
	return &Error{Code: proto.CodeCancelled, Kind: proto.KindCancelled, Message: "cancelled"}
}
