package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

var errLruArg = errors.New("expected one of: on, off, status")

// LruCmd returns the lru command.
func LruCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("lru", flag.ContinueOnError),
		Usage: "lru on|off|status",
		Short: "Toggle or show LRU promotion",
		Long: `With LRU on, every successful lookup moves the entry to the newest end of the
list, so evict removes the least recently used entry. The setting is stored in
the segment and seen by every process.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) != 1 {
				return errLruArg
			}

			return sess.withTable(ctx, func(t *ordhash.Table) error {
				switch args[0] {
				case "on":
					t.EnableLRU()
				case "off":
					t.DisableLRU()
				case "status":
				default:
					return fmt.Errorf("%w: %q", errLruArg, args[0])
				}

				io.Println("lru=" + onOff(t.LRUEnabled()))

				return nil
			})
		},
	}
}

// EvictCmd returns the evict command.
func EvictCmd(sess *session) *Command {
	fs := flag.NewFlagSet("evict", flag.ContinueOnError)
	fs.IntP("count", "n", 1, "Number of entries to evict")

	return &Command{
		Flags: fs,
		Usage: "evict [flags]",
		Short: "Remove the oldest entries",
		Long:  "Remove entries from the oldest end of the list and print their keys. With LRU on these are the least recently used.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			n, _ := fs.GetInt("count")
			if n < 1 {
				return errors.New("--count must be at least 1")
			}

			return sess.withTable(ctx, func(t *ordhash.Table) error {
				it := t.ListBegin()
				for range n {
					if !it.Valid() {
						break
					}

					io.Println(formatField(it.Key()))

					it = t.EraseListAt(it)
				}

				return nil
			})
		},
	}
}

// ClearCmd returns the clear command.
func ClearCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("clear", flag.ContinueOnError),
		Usage: "clear",
		Short: "Remove every entry",
		Long:  "Remove every entry. Geometry, segment id and the LRU setting are kept.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return sess.withTable(ctx, func(t *ordhash.Table) error {
				n := t.Size()
				t.Clear()
				io.Printf("cleared %d\n", n)

				return nil
			})
		},
	}
}
