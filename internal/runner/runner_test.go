package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mailbridge/internal/mailapp"
)

// The tests use /bin/sh as the interpreter: like osascript it reads the
// program from stdin when invoked with "-".

func TestRun_CapturesStdout(t *testing.T) {
	r := New("/bin/sh", 10*time.Second, nil)

	res, err := r.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.Greater(t, res.Elapsed, time.Duration(0))
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	r := New("/bin/sh", 10*time.Second, nil)

	res, err := r.Run(context.Background(), "echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops", res.Stderr)
}

func TestRun_Timeout(t *testing.T) {
	r := New("/bin/sh", 100*time.Millisecond, nil)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 5")
	elapsed := time.Since(start)

	var terr *mailapp.TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 100*time.Millisecond, terr.Timeout)
	assert.Less(t, elapsed, 3*time.Second, "child must be killed at the deadline")
}

// A background child of the interpreter inherits the output pipes and can
// outlive the deadline kill; Run must still return promptly instead of
// waiting for the pipes to drain.
func TestRun_TimeoutWithSurvivingGrandchild(t *testing.T) {
	r := New("/bin/sh", 100*time.Millisecond, nil)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 5 & wait")
	elapsed := time.Since(start)

	var terr *mailapp.TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Less(t, elapsed, 3*time.Second, "run must not block on the orphaned pipe")
}

func TestRun_MissingInterpreter(t *testing.T) {
	r := New("/nonexistent/interpreter", time.Second, nil)

	_, err := r.Run(context.Background(), "echo hi")
	var serr *mailapp.ScriptError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "failed to launch interpreter")
}

func TestRun_TrimsOutput(t *testing.T) {
	r := New("/bin/sh", 10*time.Second, nil)

	res, err := r.Run(context.Background(), `printf '  padded  \n\n'`)
	require.NoError(t, err)
	assert.Equal(t, "padded", res.Stdout)
}

func TestRun_CancelledContext(t *testing.T) {
	r := New("/bin/sh", 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, "echo hi")
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	r := New("", time.Second, nil)
	assert.Equal(t, DefaultInterpreter, r.interpreter)
}
