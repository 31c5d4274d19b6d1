package cli

import (
	"fmt"
	"io"
)

// IO is a command's view of stdout and stderr.
//
// Warnings collected with [IO.Warn] are printed to stderr before the first
// byte of stdout and again by [IO.Finish], so they survive piping through
// head or tail. Any warning makes the command exit 1 while its normal output
// is still printed.
type IO struct {
	out    io.Writer
	errOut io.Writer

	warnings []string
	flushed  bool
}

// NewIO creates an IO writing to out and errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records an issue and what the user can do about it.
func (o *IO) Warn(issue string, action string) {
	o.warnings = append(o.warnings, issue+": "+action)
}

// Write lets table dumps stream straight to stdout.
func (o *IO) Write(p []byte) (int, error) {
	o.beforeOutput()
	return o.out.Write(p)
}

func (o *IO) Println(a ...any) {
	o.beforeOutput()
	_, _ = fmt.Fprintln(o.out, a...)
}

func (o *IO) Printf(format string, a ...any) {
	o.beforeOutput()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// Field prints one key=value line, the format info and print-config use.
func (o *IO) Field(key string, value any) {
	o.Printf("%s=%v\n", key, value)
}

func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish repeats the warnings after the output and returns the exit code.
func (o *IO) Finish() int {
	if len(o.warnings) == 0 {
		return 0
	}

	o.beforeOutput()
	o.printWarnings()

	return 1
}

func (o *IO) beforeOutput() {
	if o.flushed || len(o.warnings) == 0 {
		return
	}

	o.flushed = true
	o.printWarnings()
}

func (o *IO) printWarnings() {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}
