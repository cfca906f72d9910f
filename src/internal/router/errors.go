package router

import (
	"fmt"
	"strings"
)

// SinkFailure is one sink that could not be built or started
type SinkFailure struct {
	Sink string
	Err  error
}

// ReconfigureError reports that a new sink set was rejected. The router
// keeps serving the previous set.
type ReconfigureError struct {
	Failures []SinkFailure
}

func (e *ReconfigureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Sink, f.Err))
	}
	return fmt.Sprintf("reconfigure failed, previous sinks retained: %s", strings.Join(parts, "; "))
}

func (e *ReconfigureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
