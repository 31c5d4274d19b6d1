package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"
)

const shellPrompt = "shmt> "

var errNoInput = errors.New("shell needs standard input")

// ShellCmd returns the shell command.
func ShellCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Run commands interactively",
		Long: `Open the segment once and read commands line by line. Every command of the
CLI except init and shell is available, plus help and exit. Each command takes
the segment lock for its own duration only.

On a terminal the prompt supports history (~/.shmt_history) and tab completion.
Piped input is read without prompts, one command per line.`,
		NoShell: true,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execShell(ctx, o, sess)
		},
	}
}

func execShell(ctx context.Context, o *IO, sess *session) (err error) {
	if sess.in == nil {
		return errNoInput
	}

	seg, err := sess.openSegment(ctx)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, seg.Close()) }()

	sess.seg = seg
	defer func() { sess.seg = nil }()

	var commands []*Command

	for _, c := range allCommands(sess) {
		if !c.NoShell {
			commands = append(commands, c)
		}
	}

	reader := sess.newLineReader(commands)
	defer func() { err = errors.Join(err, reader.Close()) }()

	failed := 0

	for ctx.Err() == nil {
		line, readErr := reader.Prompt(shellPrompt)
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return fmt.Errorf("reading input: %w", readErr)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		reader.AppendHistory(line)

		switch fields[0] {
		case "exit", "quit", "q":
			return shellResult(o, failed)
		case "help", "?":
			printShellHelp(o, commands)
			continue
		}

		cmd := findCommand(commands, fields[0])
		if cmd == nil {
			o.ErrPrintln("error:", fmt.Errorf("%w: %s", errUnknownCommand, fields[0]))

			failed++

			continue
		}

		if cmd.Run(ctx, NewIO(sess.out, sess.errOut), fields[1:]) != 0 {
			failed++
		}
	}

	return shellResult(o, failed)
}

func shellResult(o *IO, failed int) error {
	if failed > 0 {
		o.Warn(fmt.Sprintf("%d shell commands failed", failed), "see the errors above")
	}

	return nil
}

func printShellHelp(o *IO, commands []*Command) {
	builtins := []*Command{
		{Usage: "help", Short: "Show this help"},
		{Usage: "exit", Short: "Leave the shell"},
	}

	width := usageWidth(commands)

	o.Println("Commands:")

	for _, c := range append(slices.Clone(commands), builtins...) {
		o.Println(c.helpLine(width))
	}
}

// lineReader is where the shell gets its input.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// newLineReader returns a liner prompt when reading from an interactive
// stdin and a plain line scanner otherwise.
func (s *session) newLineReader(commands []*Command) lineReader {
	f, ok := s.in.(*os.File)
	if !ok || f != os.Stdin || !liner.TerminalSupported() {
		return &scanReader{scanner: bufio.NewScanner(s.in)}
	}

	names := []string{"help", "exit"}
	for _, c := range commands {
		names = append(names, c.Name())
	}

	sort.Strings(names)

	var history string
	if home := s.env["HOME"]; home != "" {
		history = filepath.Join(home, ".shmt_history")
	}

	return newLinerReader(history, names)
}

type linerReader struct {
	state   *liner.State
	history string
}

func newLinerReader(history string, names []string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(func(line string) []string {
		var out []string

		for _, n := range names {
			if strings.HasPrefix(n, line) {
				out = append(out, n)
			}
		}

		return out
	})

	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &linerReader{state: state, history: history}
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	return line, err
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

func (r *linerReader) Close() error {
	if r.history != "" {
		if f, err := os.Create(r.history); err == nil {
			_, _ = r.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return r.state.Close()
}

// scanReader reads piped input without echoing prompts.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return r.scanner.Text(), nil
}

func (r *scanReader) AppendHistory(string) {}

func (r *scanReader) Close() error { return nil }
