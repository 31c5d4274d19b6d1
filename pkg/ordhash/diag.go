package ordhash

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// maxStackFrames bounds the call-stack description attached to diagnostics.
const maxStackFrames = 12

// violation reports a contract violation on the diagnostic sink.
//
// It never fails and never panics: the caller returns a safe default right
// after. The stack attribute is only built when the logger would emit it.
func (t *Table) violation(op string, msg string, args ...any) {
	ctx := context.Background()
	if !t.log.Enabled(ctx, slog.LevelWarn) {
		return
	}

	attrs := make([]any, 0, len(args)+4)
	attrs = append(attrs, slog.String("op", op))
	attrs = append(attrs, args...)
	attrs = append(attrs, slog.String("stack", callerStack(3)))

	t.log.WarnContext(ctx, msg, attrs...)
}

// callerStack renders the calling frames as "func:line < func:line ...".
func callerStack(skip int) string {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder

	for {
		frame, more := frames.Next()

		if b.Len() > 0 {
			b.WriteString(" < ")
		}

		name := frame.Function
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}

		fmt.Fprintf(&b, "%s:%d", name, frame.Line)

		if !more {
			break
		}
	}

	return b.String()
}
