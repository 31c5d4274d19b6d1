package cli

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

var errReverseHashOrder = errors.New("--reverse requires --order=list")

// LsCmd returns the ls command.
func LsCmd(sess *session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.String("order", "list", "Iteration order: list (oldest first) or hash (bucket order)")
	fs.Bool("reverse", false, "Newest first (list order only)")
	fs.Int("limit", 0, "Maximum entries to show (0 = all)")

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List entries",
		Long: `List entries as key, or key<TAB>value when the table stores values.

List order is insertion order, or recency order when LRU is enabled.`,
		Examples: []string{"ls --limit 10", "ls --reverse", "ls --order hash"},
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execLs(ctx, io, sess, fs)
		},
	}
}

func execLs(ctx context.Context, io *IO, sess *session, fs *flag.FlagSet) error {
	order, _ := fs.GetString("order")
	reverse, _ := fs.GetBool("reverse")

	limit, _ := fs.GetInt("limit")
	if limit < 0 {
		return errors.New("--limit must be non-negative")
	}

	switch order {
	case "list":
	case "hash":
		if reverse {
			return errReverseHashOrder
		}
	default:
		return fmt.Errorf("invalid --order %q (want list or hash)", order)
	}

	return sess.withTable(ctx, func(t *ordhash.Table) error {
		var entries iter.Seq2[[]byte, []byte]

		switch {
		case order == "hash":
			entries = t.All()
		case reverse:
			entries = t.Backward()
		default:
			entries = t.Ordered()
		}

		withValues := t.Config().ValueSize > 0
		shown := 0

		for k, v := range entries {
			if limit > 0 && shown == limit {
				break
			}

			if withValues {
				io.Printf("%s\t%s\n", formatField(k), formatField(v))
			} else {
				io.Println(formatField(k))
			}

			shown++
		}

		return nil
	})
}
