package coordinator

import (
	"fmt"
	"runtime/debug"

	"cosmossdk.io/log"

	"github.com/paw-chain/prover/x/prover/types"
)

const unknownPanic = "unknown panic"

// PanicError is a recovered panic. Error returns the extracted message so it
// can be stored verbatim as a task result.
type PanicError struct {
	Handler string
	Message string
}

func (e *PanicError) Error() string {
	return e.Message
}

// Is matches types.ErrTaskPanic.
func (e *PanicError) Is(target error) bool {
	return target == types.ErrTaskPanic
}

// PanicMessage extracts the message of a panic payload. Strings and errors
// keep their text, anything else is reported as an unknown panic.
func PanicMessage(r any) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return unknownPanic
	}
}

// RecoverPanic converts a recovered payload into a PanicError and logs it
// with the stack of the panicking goroutine. It must be called from the
// deferred function that recovered.
func RecoverPanic(logger log.Logger, handler string, r any) error {
	stackTrace := string(debug.Stack())

	logger.Error("PANIC RECOVERED",
		"handler", handler,
		"panic", fmt.Sprintf("%v", r),
		"stack_trace", stackTrace,
	)

	return &PanicError{Handler: handler, Message: PanicMessage(r)}
}

// SafeExecuteWithReturn runs fn in its own goroutine and waits for it. A panic
// inside fn is returned as a *PanicError instead of crashing the process.
func SafeExecuteWithReturn[T any](logger log.Logger, handler string, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				var zero T
				out = outcome{value: zero, err: RecoverPanic(logger, handler, r)}
			}
			done <- out
		}()

		out.value, out.err = fn()
	}()

	out := <-done
	return out.value, out.err
}
