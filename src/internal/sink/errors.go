package sink

import (
	"fmt"

	"github.com/pkg/errors"
)

// SinkIOError reports a failed write, sync or rotation inside a sink. It is
// handed to the diagnostics channel and never returned to callers of Accept.
type SinkIOError struct {
	Sink string
	Op   string
	Err  error
}

func (e *SinkIOError) Error() string {
	return fmt.Sprintf("%s sink %s: %v", e.Sink, e.Op, e.Err)
}

func (e *SinkIOError) Unwrap() error {
	return e.Err
}

// ioError wraps err with the call stack of the failing operation
func ioError(sink, op string, err error) error {
	if err == nil {
		return nil
	}
	return &SinkIOError{Sink: sink, Op: op, Err: errors.WithStack(err)}
}
