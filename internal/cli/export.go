package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

// ExportCmd returns the export command.
func ExportCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("export", flag.ContinueOnError),
		Usage: "export <file>",
		Short: "Write a snapshot of the segment to a file",
		Long: `Copy the table region to file while holding the segment lock. The file is
replaced atomically and can be opened with --segment like any other segment.`,
		Examples: []string{"export backup.shm", "--segment backup.shm ls"},
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) != 1 {
				return errors.New("export requires exactly one <file>")
			}

			dst := args[0]
			if !filepath.IsAbs(dst) {
				dst = filepath.Join(sess.cfg.EffectiveCwd, dst)
			}

			return sess.withTable(ctx, func(t *ordhash.Table) error {
				region := t.Region()

				err := atomic.WriteFile(dst, bytes.NewReader(region))
				if err != nil {
					return fmt.Errorf("writing snapshot: %w", err)
				}

				io.Printf("exported %d bytes to %s\n", len(region), dst)

				return nil
			})
		},
	}
}
