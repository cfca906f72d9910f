package core

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

const maxCauseDepth = 32

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ErrorDetail is a captured error: its own message, origin and stack, and
// the chain of causes beneath it
type ErrorDetail struct {
	Message string       `json:"message"`
	Type    string       `json:"type,omitempty"`
	Origin  string       `json:"origin,omitempty"`
	Stack   string       `json:"stack,omitempty"`
	Cause   *ErrorDetail `json:"cause,omitempty"`
}

// CaptureError snapshots err and its cause chain. Layers that only annotate
// a stack (same text as the error they wrap) are folded into the wrapped error.
func CaptureError(err error) *ErrorDetail {
	return capture(err, 0)
}

func capture(err error, depth int) *ErrorDetail {
	if err == nil || depth > maxCauseDepth {
		return nil
	}

	next := errors.Unwrap(err)
	if next != nil && next.Error() == err.Error() {
		d := capture(next, depth+1)
		if d != nil && d.Stack == "" {
			if st, ok := err.(stackTracer); ok {
				d.setStack(st.StackTrace())
			}
		}
		return d
	}

	d := &ErrorDetail{
		Message: err.Error(),
		Type:    typeName(err),
	}
	if st, ok := err.(stackTracer); ok {
		d.setStack(st.StackTrace())
	}
	if next != nil {
		d.Cause = capture(next, depth+1)
		if d.Cause != nil {
			d.Message = strings.TrimSuffix(d.Message, ": "+next.Error())
		}
	}
	return d
}

func (d *ErrorDetail) setStack(st errors.StackTrace) {
	if len(st) == 0 {
		return
	}
	d.Stack = fmt.Sprintf("%+v", st)
	d.Origin = frameFunction(st[0])
}

// RootOrigin returns the origin of the deepest cause that recorded one
func (d *ErrorDetail) RootOrigin() string {
	origin := ""
	for cur := d; cur != nil; cur = cur.Cause {
		if cur.Origin != "" {
			origin = cur.Origin
		}
	}
	return origin
}

// Short renders the message chain on one line
func (d *ErrorDetail) Short() string {
	if d == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	for cur := d; cur != nil; cur = cur.Cause {
		parts = append(parts, cur.Message)
	}
	return strings.Join(parts, ": ")
}

// Full renders every cause with its type and stack
func (d *ErrorDetail) Full() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	for i, cur := 0, d; cur != nil; i, cur = i+1, cur.Cause {
		if i > 0 {
			b.WriteString("\n ---> caused by: ")
		}
		if cur.Type != "" {
			b.WriteString(cur.Type)
			b.WriteString(": ")
		}
		b.WriteString(cur.Message)
		if cur.Stack != "" {
			b.WriteString(cur.Stack)
		} else if cur.Origin != "" {
			b.WriteString("\n   at ")
			b.WriteString(cur.Origin)
		}
	}
	return b.String()
}

func (d *ErrorDetail) String() string {
	return d.Short()
}

// FunctionName trims the import path from a fully qualified function name,
// logsmith/src/internal/sink.(*FileSink).write becomes sink.(*FileSink).write
func FunctionName(qualified string) string {
	if i := strings.LastIndex(qualified, "/"); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// CallerName returns the function name skip frames above its caller
func CallerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	return FunctionName(fn.Name())
}

func frameFunction(f errors.Frame) string {
	fn := runtime.FuncForPC(uintptr(f) - 1)
	if fn == nil {
		return ""
	}
	return FunctionName(fn.Name())
}

// typeName hides the anonymous wrapper types of errors, fmt and pkg/errors
func typeName(err error) string {
	name := fmt.Sprintf("%T", err)
	trimmed := strings.TrimPrefix(name, "*")
	if strings.HasPrefix(trimmed, "errors.") || strings.HasPrefix(trimmed, "fmt.") {
		return ""
	}
	return name
}
