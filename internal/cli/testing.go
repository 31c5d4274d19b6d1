package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI runs shmt in-process against a private working directory.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI returns a CLI rooted in a fresh temp directory with an empty
// environment, so no global config is picked up.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{t: t, Dir: t.TempDir(), Env: map[string]string{}}
}

func (r *CLI) run(in io.Reader, args []string) (string, string, int) {
	var stdout, stderr bytes.Buffer

	argv := append([]string{"shmt", "--cwd", r.Dir}, args...)
	code := Run(in, &stdout, &stderr, argv, r.Env, nil)

	return stdout.String(), stderr.String(), code
}

// Run returns stdout, stderr and the exit code. "shmt --cwd Dir" is
// prepended to args.
func (r *CLI) Run(args ...string) (string, string, int) {
	return r.run(nil, args)
}

// RunWithInput is Run with stdin, for the shell.
func (r *CLI) RunWithInput(stdin string, args ...string) (string, string, int) {
	return r.run(strings.NewReader(stdin), args)
}

// MustRun fails the test on a non-zero exit and returns trimmed stdout.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("shmt %s: exit %d\nstderr: %s", strings.Join(args, " "), code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail fails the test unless the command exits non-zero with nothing on
// stdout. Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 || stdout != "" {
		r.t.Fatalf("shmt %s: want failure with empty stdout, got exit %d\nstdout: %s", strings.Join(args, " "), code, stdout)
	}

	return strings.TrimSpace(stderr)
}

// SegmentPath is the default segment location under Dir.
func (r *CLI) SegmentPath() string {
	return filepath.Join(r.Dir, ".shmt", "table.shm")
}

// Init runs "shmt [flags] init".
func (r *CLI) Init(flags ...string) {
	r.t.Helper()

	r.MustRun(append(append([]string{}, flags...), "init")...)
}

// PatchSegment overwrites bytes of the segment file at off, simulating damage
// done by a misbehaving writer.
func (r *CLI) PatchSegment(off int64, b []byte) {
	r.t.Helper()

	f, err := os.OpenFile(r.SegmentPath(), os.O_WRONLY, 0)
	if err != nil {
		r.t.Fatalf("open segment: %v", err)
	}

	defer func() { _ = f.Close() }()

	if _, err := f.WriteAt(b, off); err != nil {
		r.t.Fatalf("patch segment at %d: %v", off, err)
	}
}

// AssertContains fails the test if content does not contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("missing %q in:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("unexpected %q in:\n%s", substr, content)
	}
}
