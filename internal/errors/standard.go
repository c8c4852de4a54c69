// Package errors provides standardized error values for the iris back end.
//
// Two families exist. Invariant violations (unknown kinds, misplaced
// terminators, corrupted lists) are programmer bugs: they panic with a
// *StandardError carrying a stack trace and are only turned back into errors
// at a process boundary by Recover. Anticipated failures (no free register,
// unsupported target, oversized payload, unimplemented feature) are returned
// as error values that match the exported sentinels through Is.
package errors

import (
	"fmt"
	"runtime"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryInvariant     ErrorCategory = "INVARIANT"
	CategoryBounds        ErrorCategory = "BOUNDS"
	CategoryExhausted     ErrorCategory = "EXHAUSTED"
	CategoryUnsupported   ErrorCategory = "UNSUPPORTED"
	CategoryUnimplemented ErrorCategory = "UNIMPLEMENTED"
	CategorySystem        ErrorCategory = "SYSTEM"
	CategoryConfig        ErrorCategory = "CONFIG"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Caller == "" {
		return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
	}

	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// Is reports whether target is a StandardError of the same category and code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}

	return t.Category == e.Category && t.Code == e.Code
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   callerName(1),
	}
}

func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}

	if fn := runtime.FuncForPC(pc); fn != nil {
		return fn.Name()
	}

	return "unknown"
}

// Sentinels for errors.Is matching. Only Category and Code are compared.
var (
	ErrNoFreeRegister    = &StandardError{Category: CategoryExhausted, Code: "NO_FREE_REGISTER"}
	ErrPayloadTooLarge   = &StandardError{Category: CategoryExhausted, Code: "PAYLOAD_TOO_LARGE"}
	ErrUnsupportedTarget = &StandardError{Category: CategoryUnsupported, Code: "UNSUPPORTED_TARGET"}
	ErrUnimplemented     = &StandardError{Category: CategoryUnimplemented, Code: "UNIMPLEMENTED"}
	ErrInvalidConfig     = &StandardError{Category: CategoryConfig, Code: "INVALID_CONFIG"}
)

func newAt(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   callerName(2),
	}
}

// NoFreeRegister reports register exhaustion. Spilling is not implemented, so
// the caller has to reduce pressure or give up.
func NoFreeRegister(class string, vreg int, block int) error {
	return pkgerrors.WithStack(newAt(CategoryExhausted, ErrNoFreeRegister.Code,
		fmt.Sprintf("no free %s register for v%d in b%d", class, vreg, block),
		map[string]interface{}{"class": class, "vreg": vreg, "block": block}))
}

func PayloadTooLarge(size, limit int) error {
	return pkgerrors.WithStack(newAt(CategoryExhausted, ErrPayloadTooLarge.Code,
		fmt.Sprintf("payload of %d words exceeds the largest kind payload (%d words)", size, limit),
		map[string]interface{}{"size": size, "limit": limit}))
}

func UnsupportedTarget(arch, system, constraint string) error {
	msg := fmt.Sprintf("no backend registered for %s-%s", arch, system)
	if constraint != "" {
		msg += " matching " + constraint
	}

	return pkgerrors.WithStack(newAt(CategoryUnsupported, ErrUnsupportedTarget.Code, msg,
		map[string]interface{}{"arch": arch, "system": system, "constraint": constraint}))
}

func Unimplemented(feature string) error {
	return pkgerrors.WithStack(newAt(CategoryUnimplemented, ErrUnimplemented.Code,
		fmt.Sprintf("%s is not implemented", feature),
		map[string]interface{}{"feature": feature}))
}

// InvalidConfig reports a configuration value that cannot be used.
func InvalidConfig(key, format string, args ...interface{}) error {
	return pkgerrors.WithStack(newAt(CategoryConfig, ErrInvalidConfig.Code,
		key+": "+fmt.Sprintf(format, args...), map[string]interface{}{"key": key}))
}

// Invariant builds the error value used for internal corruption. It is meant
// to be panicked with, see Assert.
func Invariant(code, format string, args ...interface{}) error {
	return pkgerrors.WithStack(newAt(CategoryInvariant, code, fmt.Sprintf(format, args...), nil))
}

// IndexOutOfBounds is raised for fixed-capacity structures.
func IndexOutOfBounds(what string, index, length int) error {
	return pkgerrors.WithStack(newAt(CategoryBounds, "INDEX_OUT_OF_BOUNDS",
		fmt.Sprintf("%s index %d out of bounds for length %d", what, index, length),
		map[string]interface{}{"index": index, "length": length}))
}

// Assert panics with an invariant error when cond does not hold.
func Assert(cond bool, code, format string, args ...interface{}) {
	if !cond {
		panic(pkgerrors.WithStack(newAt(CategoryInvariant, code, fmt.Sprintf(format, args...), nil)))
	}
}

// Is, As, Wrap and Wrapf forward to github.com/pkg/errors so callers only
// import one errors package.
func Is(err, target error) bool { return pkgerrors.Is(err, target) }

func As(err error, target interface{}) bool { return pkgerrors.As(err, target) }

func Wrap(err error, message string) error { return pkgerrors.Wrap(err, message) }

func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

func New(message string) error { return pkgerrors.New(message) }

// Category returns the category of the first StandardError in err's chain.
func Category(err error) (ErrorCategory, bool) {
	var se *StandardError
	if pkgerrors.As(err, &se) {
		return se.Category, true
	}

	return "", false
}
