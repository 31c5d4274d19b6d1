package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/calvinalkan/shmtable/internal/config"
	"github.com/calvinalkan/shmtable/pkg/ordhash"
	"github.com/calvinalkan/shmtable/pkg/shm"
	"github.com/calvinalkan/shmtable/pkg/shmcoll"
)

// lockWait bounds how long a command waits for another process to release
// the segment.
const lockWait = 10 * time.Second

var (
	errNoSegment   = errors.New("segment not found")
	errKeyRequired = errors.New("key is required")
	errKeyNotFound = errors.New("key not found")
	errTableFull   = errors.New("table is full")
	errTooManyArgs = errors.New("too many arguments")
)

// session is the state shared by all commands of one invocation.
type session struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	env    map[string]string
	cfg    config.Config
	log    *slog.Logger

	// seg is the shell's long-lived segment. Nil outside the shell, where
	// each command opens and closes the segment itself.
	seg *shm.Segment
}

// openSegment attaches to the configured segment, taking the geometry from
// its header. A missing file is an error; use init to create one.
func (s *session) openSegment(ctx context.Context) (*shm.Segment, error) {
	opts := s.cfg.TableOptions()
	opts.Adopt = true

	seg, err := shm.Open(ctx, shm.Options{
		Path:        s.cfg.SegmentAbs,
		Table:       opts,
		Create:      shm.MustExist,
		SyncOnClose: true,
		Logger:      s.log,
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (run 'shmt init' first)", errNoSegment, s.cfg.SegmentAbs)
	}

	if err != nil {
		return nil, err
	}

	return seg, nil
}

// withTable runs fn against the segment's table while holding the segment
// lock.
func (s *session) withTable(ctx context.Context, fn func(t *ordhash.Table) error) (err error) {
	seg := s.seg
	if seg == nil {
		seg, err = s.openSegment(ctx)
		if err != nil {
			return err
		}

		defer func() { err = errors.Join(err, seg.Close()) }()
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	err = seg.Lock(lockCtx)
	if err != nil {
		return fmt.Errorf("locking segment: %w", err)
	}

	defer func() { err = errors.Join(err, seg.Unlock()) }()

	return fn(seg.Table())
}

// parseField encodes a key or value argument into exactly width bytes.
// Arguments starting with "0x" are hex and must fill the width. Anything
// else is text, NFC-normalized and zero-padded.
func parseField(name, arg string, width int) ([]byte, error) {
	buf := make([]byte, width)

	if digits, ok := strings.CutPrefix(arg, "0x"); ok {
		raw, err := hex.DecodeString(digits)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid hex: %w", name, err)
		}

		if err := shmcoll.Bytes(width).Encode(buf, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		return buf, nil
	}

	if err := shmcoll.String(width).Encode(buf, arg); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return buf, nil
}

// formatField renders stored bytes the way parseField accepts them: as text
// when they hold printable text followed by zero padding, as hex otherwise.
func formatField(b []byte) string {
	text := shmcoll.String(len(b)).Decode(b)

	if len(text) == len(bytes.TrimRight(b, "\x00")) && !strings.HasPrefix(text, "0x") && isPrintable(text) {
		return text
	}

	return "0x" + hex.EncodeToString(b)
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return false
		}
	}

	return true
}

// keyArg returns the encoded key from the first argument.
func keyArg(t *ordhash.Table, args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errKeyRequired
	}

	return parseField("key", args[0], t.Config().KeySize)
}
