package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/calvinalkan/shmtable/internal/config"
	"github.com/calvinalkan/shmtable/internal/logging"

	flag "github.com/spf13/pflag"
)

var (
	errNoCommand      = errors.New("no command provided")
	errUnknownCommand = errors.New("unknown command")
)

// globalOptions holds the values bound to the global flags.
type globalOptions struct {
	help      bool
	cwd       string
	config    string
	segment   string
	keySize   int
	valueSize int
	capacity  int
	hash      string
	logLevel  string
	logFile   string
}

func newGlobalFlags() (*flag.FlagSet, *globalOptions) {
	g := &globalOptions{}

	fs := flag.NewFlagSet("shmt", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)

	fs.BoolVarP(&g.help, "help", "h", false, "Show help")
	fs.StringVarP(&g.cwd, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&g.config, "config", "c", "", "Use specified config `file`")
	fs.StringVar(&g.segment, "segment", "", "Segment file `path`")
	fs.IntVar(&g.keySize, "key-size", 0, "Key size in bytes (init)")
	fs.IntVar(&g.valueSize, "value-size", 0, "Value size in bytes (init)")
	fs.IntVar(&g.capacity, "capacity", 0, "Slot capacity (init)")
	fs.StringVar(&g.hash, "hash", "", "Bucket hash: fnv1a or xxh64 (init)")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&g.logFile, "log-file", "", "Append JSON logs to `file` instead of stderr")

	return fs, g
}

// overrides turns the flags the user actually passed into a config layer.
func (g *globalOptions) overrides(fs *flag.FlagSet) config.Layer {
	var layer config.Layer

	if fs.Changed("segment") {
		layer.Segment = &g.segment
	}

	if fs.Changed("key-size") {
		layer.KeySize = &g.keySize
	}

	if fs.Changed("value-size") {
		layer.ValueSize = &g.valueSize
	}

	if fs.Changed("capacity") {
		layer.Capacity = &g.capacity
	}

	if fs.Changed("hash") {
		layer.Hash = &g.hash
	}

	if fs.Changed("log-level") {
		layer.LogLevel = &g.logLevel
	}

	if fs.Changed("log-file") {
		layer.LogFile = &g.logFile
	}

	return layer
}

// Run is the main entry point. Returns exit code.
//
// The first value received on sigCh cancels the context handed to the
// command; lock waits and the shell stop at that point.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	sess := &session{in: in, out: out, errOut: errOut, env: env}
	commands := allCommands(sess)
	globalFlags, g := newGlobalFlags()

	if len(args) < 2 {
		printUsage(out, globalFlags, commands)
		return 0
	}

	err := globalFlags.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globalFlags, commands)

		return 1
	}

	if g.help {
		printUsage(out, globalFlags, commands)
		return 0
	}

	rest := globalFlags.Args()
	if len(rest) == 0 {
		fprintln(errOut, "error:", errNoCommand)
		fprintln(errOut)
		printUsage(errOut, globalFlags, commands)

		return 1
	}

	cmd := findCommand(commands, rest[0])
	if cmd == nil {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", errUnknownCommand, rest[0]))
		fprintln(errOut)
		printUsage(errOut, globalFlags, commands)

		return 1
	}

	cfg, err := config.Load(config.Input{
		WorkDirOverride: g.cwd,
		ConfigPath:      g.config,
		Overrides:       g.overrides(globalFlags),
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globalFlags, commands)

		return 1
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)

	log, closeLog, err := logging.New(logging.Options{Level: level, File: cfg.LogFileAbs, Stderr: errOut})
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	defer func() { _ = closeLog() }()

	sess.cfg = cfg
	sess.log = log

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	go func() {
		select {
		case sig := <-sigCh:
			cancel(fmt.Errorf("received %s", sig))
		case <-ctx.Done():
		}
	}()

	return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
}

func allCommands(sess *session) []*Command {
	return []*Command{
		InitCmd(sess),
		InfoCmd(sess),
		PutCmd(sess),
		GetCmd(sess),
		CountCmd(sess),
		DelCmd(sess),
		LsCmd(sess),
		LruCmd(sess),
		EvictCmd(sess),
		ClearCmd(sess),
		CheckCmd(sess),
		DumpCmd(sess),
		BucketsCmd(sess),
		ExportCmd(sess),
		ShellCmd(sess),
		PrintConfigCmd(sess),
	}
}

func findCommand(commands []*Command, name string) *Command {
	for _, c := range commands {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globalFlags *flag.FlagSet, commands []*Command) {
	fprintln(w, `shmt - ordered hash table in a shared memory segment

Usage: shmt [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder
	globalFlags.SetOutput(&buf)
	globalFlags.PrintDefaults()
	globalFlags.SetOutput(io.Discard)
	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	width := usageWidth(commands)
	for _, c := range commands {
		fprintln(w, c.helpLine(width))
	}

	fprintln(w)
	fprintln(w, `Run "shmt <command> --help" for command flags.`)
}
