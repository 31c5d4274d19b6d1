package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one shmt subcommand. The same value runs once per process from
// [Run] and any number of times from the shell, so Run resets the flags
// before parsing.
type Command struct {
	Flags *flag.FlagSet

	// Usage starts with the command name: "get <key> [flags]".
	Usage string
	Short string

	// Long defaults to Short.
	Long string

	// Examples are shown under "Examples:" in command help, one per line,
	// without the leading "shmt".
	Examples []string

	NoShell bool

	Exec func(ctx context.Context, io *IO, args []string) error
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// helpLine renders the command for a listing whose usage column is width
// wide.
func (c *Command) helpLine(width int) string {
	return fmt.Sprintf("  %-*s  %s", width, c.Usage, c.Short)
}

// usageWidth is the widest Usage among commands.
func usageWidth(commands []*Command) int {
	width := 0
	for _, c := range commands {
		width = max(width, len(c.Usage))
	}

	return width
}

// PrintHelp writes "shmt <cmd> --help" output.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: shmt", c.Usage)
	o.Println()

	if c.Long != "" {
		o.Println(c.Long)
	} else {
		o.Println(c.Short)
	}

	if c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")
		o.Printf("%s", c.Flags.FlagUsages())
	}

	if len(c.Examples) > 0 {
		o.Println()
		o.Println("Examples:")

		for _, ex := range c.Examples {
			o.Println("  shmt", ex)
		}
	}
}

// Run parses args into the command's flags and executes it, returning the
// exit code. Parse errors print the command help; Exec errors print only the
// error.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.resetFlags()

	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)
		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	return o.Finish()
}

func (c *Command) resetFlags() {
	c.Flags.SetOutput(&strings.Builder{})
	c.Flags.VisitAll(func(f *flag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}
