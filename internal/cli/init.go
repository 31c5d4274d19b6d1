package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/calvinalkan/shmtable/pkg/shm"

	flag "github.com/spf13/pflag"
)

// InitCmd returns the init command.
func InitCmd(sess *session) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.Bool("force", false, "Replace an existing segment")
	fs.Bool("lru", false, "Enable LRU promotion (default from config)")

	return &Command{
		Flags:   fs,
		Usage:   "init [flags]",
		Short:   "Create and format the segment",
		Long:    "Create the segment file sized for the configured geometry and format an empty table in it.",
		NoShell: true,
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execInit(ctx, io, sess, fs)
		},
	}
}

func execInit(ctx context.Context, io *IO, sess *session, fs *flag.FlagSet) (err error) {
	path := sess.cfg.SegmentAbs

	lru := sess.cfg.LRU
	if fs.Changed("lru") {
		lru, _ = fs.GetBool("lru")
	}

	if force, _ := fs.GetBool("force"); force {
		removeErr := shm.Remove(path)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return removeErr
		}
	}

	seg, err := shm.Open(ctx, shm.Options{
		Path:        path,
		Table:       sess.cfg.TableOptions(),
		Create:      shm.MustCreate,
		SyncOnClose: true,
		Logger:      sess.log,
	})
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("segment already exists: %s (use --force to replace it)", path)
	}

	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, seg.Close()) }()

	t := seg.Table()
	if lru {
		t.EnableLRU()
	}

	io.Println("created", path)
	printInfo(io, path, t)

	return nil
}
