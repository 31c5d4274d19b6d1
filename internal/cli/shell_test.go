package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calvinalkan/shmtable/internal/cli"
)

func Test_Shell_Runs_Piped_Commands_When_Input_Given(t *testing.T) {
	t.Parallel()

	c := newSmallCLI(t)

	script := `put a 1
put b 2

# comments and blank lines are skipped
get a
ls --reverse
lru on
exit
put never-run
`

	stdout, stderr, exitCode := c.RunWithInput(script, "shell")

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	assert.Equal(t, "inserted\ninserted\n1\nb\t2\na\t1\nlru=on\n", stdout)
	assert.Equal(t, "lru=on", c.MustRun("lru", "status"), "shell writes reach the segment")
}

func Test_Shell_Reuses_Flags_Defaults_When_Command_Repeats(t *testing.T) {
	t.Parallel()

	c := newSmallCLI(t)

	stdout, _, exitCode := c.RunWithInput("put k x\nput k y --dup\ncount k\nls --limit 1\nls\n", "shell")

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	assert.Equal(t, "inserted\ninserted\n2\nk\tx\nk\tx\nk\ty\n", stdout)
}

func Test_Shell_Reports_Failures_When_Commands_Fail(t *testing.T) {
	t.Parallel()

	c := newSmallCLI(t)

	stdout, stderr, exitCode := c.RunWithInput("get missing\ninit\nfrobnicate\nput a\n", "shell")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	assert.Equal(t, "inserted\n", stdout)
	cli.AssertContains(t, stderr, "key not found: missing")
	cli.AssertContains(t, stderr, "unknown command: init")
	cli.AssertContains(t, stderr, "unknown command: frobnicate")
	cli.AssertContains(t, stderr, "warning: 3 shell commands failed")
}

func Test_Shell_Help_Lists_Commands_When_Asked(t *testing.T) {
	t.Parallel()

	c := newSmallCLI(t)

	stdout, _, exitCode := c.RunWithInput("help\n", "shell")

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	cli.AssertContains(t, stdout, "put <key> [value] [flags]")
	cli.AssertContains(t, stdout, "exit")
	cli.AssertNotContains(t, stdout, "init [flags]")
}

func Test_Shell_Fails_When_No_Input(t *testing.T) {
	t.Parallel()

	c := newSmallCLI(t)

	stderr := c.MustFail("shell")
	cli.AssertContains(t, stderr, "shell needs standard input")
}
