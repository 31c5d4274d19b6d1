package cli

import (
	"context"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

// DelCmd returns the del command.
func DelCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("del", flag.ContinueOnError),
		Usage: "del <key>",
		Short: "Delete every entry with a key",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return sess.withTable(ctx, func(t *ordhash.Table) error {
				key, err := keyArg(t, args)
				if err != nil {
					return err
				}

				n := t.Erase(key)
				if n == 0 {
					io.Warn("key not found: "+args[0], "nothing was deleted")
				}

				io.Printf("deleted %d\n", n)

				return nil
			})
		},
	}
}
