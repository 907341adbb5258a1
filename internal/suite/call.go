package suite

import (
	"fmt"
	"runtime/debug"

	"harness/internal/check"
)

// PanicError reports a panic raised by a case body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Call runs the case body with r. A panic is recovered and returned as
// *PanicError; the caller keeps running.
func (c Case) Call(r *check.Recorder) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	c.Func(r)
	return nil
}
