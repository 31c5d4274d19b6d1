package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

// PutCmd returns the put command.
func PutCmd(sess *session) *Command {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.Bool("dup", false, "Insert even if the key exists (newest duplicate is found first)")

	return &Command{
		Flags: fs,
		Usage: "put <key> [value] [flags]",
		Short: "Insert or update an entry",
		Long: `Store value under key. An existing key is updated in place. It keeps its list
position while LRU is off; with LRU on the update counts as a use and moves it
to the newest end. With --dup a new entry is always added.

Keys and values are text (NFC-normalized, zero-padded to the configured size)
or hex when prefixed with 0x. A missing value stores zero bytes.`,
		Examples: []string{"put user42 online", "put 0x00000000000000ff 0x01", "put job7 queued --dup"},
		Exec: func(ctx context.Context, io *IO, args []string) error {
			dup, _ := fs.GetBool("dup")

			return sess.withTable(ctx, func(t *ordhash.Table) error {
				return execPut(io, t, args, dup)
			})
		},
	}
}

func execPut(io *IO, t *ordhash.Table, args []string, dup bool) error {
	if len(args) > 2 {
		return fmt.Errorf("%w: expected <key> [value], got %d", errTooManyArgs, len(args))
	}

	key, err := keyArg(t, args)
	if err != nil {
		return err
	}

	valueArg := ""
	if len(args) == 2 {
		valueArg = args[1]
	}

	value, err := parseField("value", valueArg, t.Config().ValueSize)
	if err != nil {
		return err
	}

	if !dup {
		if it := t.Find(key); it.Valid() {
			copy(it.Value(), value)
			io.Println("updated")

			return nil
		}
	}

	var it ordhash.Iter
	if dup {
		it, _ = t.InsertEqual(key, value)
	} else {
		it, _ = t.InsertUnique(key, value)
	}

	if !it.Valid() {
		return fmt.Errorf("%w: %d of %d slots used", errTableFull, t.Size(), t.MaxSize())
	}

	io.Println("inserted")

	return nil
}
