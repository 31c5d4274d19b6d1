package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

// GetCmd returns the get command.
func GetCmd(sess *session) *Command {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.Bool("all", false, "Print every value stored under the key, newest first")

	return &Command{
		Flags:    fs,
		Usage:    "get <key> [flags]",
		Short:    "Print the value stored under a key",
		Long:     "Print the value stored under key. With duplicates the newest entry wins. With LRU enabled the entry is promoted.",
		Examples: []string{"get user42", "get job7 --all"},
		Exec: func(ctx context.Context, io *IO, args []string) error {
			all, _ := fs.GetBool("all")

			return sess.withTable(ctx, func(t *ordhash.Table) error {
				return execGet(io, t, args, all)
			})
		},
	}
}

func execGet(io *IO, t *ordhash.Table, args []string, all bool) error {
	key, err := keyArg(t, args)
	if err != nil {
		return err
	}

	if all {
		matches := t.EqualRange(key)
		if len(matches) == 0 {
			return fmt.Errorf("%w: %s", errKeyNotFound, args[0])
		}

		for _, it := range matches {
			io.Println(formatField(it.Value()))
		}

		return nil
	}

	it := t.Find(key)
	if !it.Valid() {
		return fmt.Errorf("%w: %s", errKeyNotFound, args[0])
	}

	io.Println(formatField(it.Value()))

	return nil
}

// CountCmd returns the count command.
func CountCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("count", flag.ContinueOnError),
		Usage: "count <key>",
		Short: "Print how many entries share a key",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return sess.withTable(ctx, func(t *ordhash.Table) error {
				key, err := keyArg(t, args)
				if err != nil {
					return err
				}

				io.Println(t.Count(key))

				return nil
			})
		},
	}
}
