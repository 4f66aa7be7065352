// Package runner executes generated script text through the host's script
// interpreter as a child process. It is the only place this program touches
// the outside world.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/felo/mailbridge/internal/mailapp"
)

// DefaultInterpreter is where macOS installs the AppleScript interpreter.
const DefaultInterpreter = "/usr/bin/osascript"

// waitDelay bounds how long Wait lingers on the output pipes after the
// deadline kill. A descendant of the interpreter can survive the kill and
// hold the pipe write ends open; without this bound the run would block
// until that process exits on its own.
const waitDelay = time.Second

// Result captures one script run. It is consumed within a single operation
// call and discarded; nothing here is persisted.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// Runner launches the interpreter with the script on stdin and a bounded
// wall-clock timeout.
type Runner struct {
	interpreter string
	timeout     time.Duration
	log         *zap.Logger
}

// New returns a Runner using the given interpreter binary and timeout.
// A zero timeout disables the bound (useful only in tests).
func New(interpreter string, timeout time.Duration, log *zap.Logger) *Runner {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{interpreter: interpreter, timeout: timeout, log: log}
}

// Run executes the script and returns the captured output. The script is
// fed on stdin ("-" tells osascript to read it there). On expiry the child
// is killed and a TimeoutError is returned; any other launch failure
// becomes a ScriptError. A non-zero exit is not an error at this layer —
// callers classify the captured stderr.
func (r *Runner) Run(ctx context.Context, script string) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.log.Debug("executing script", zap.String("script", prefix(script, 200)))

	cmd := exec.CommandContext(ctx, r.interpreter, "-")
	cmd.Stdin = strings.NewReader(script)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:  strings.TrimSpace(stdout.String()),
		Stderr:  strings.TrimSpace(stderr.String()),
		Elapsed: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		r.log.Error("script timed out", zap.Duration("timeout", r.timeout))
		return res, &mailapp.TimeoutError{Timeout: r.timeout}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, &mailapp.ScriptError{Detail: "failed to launch interpreter", Err: err}
	}

	r.log.Debug("script output", zap.String("stdout", prefix(res.Stdout, 200)))
	return res, nil
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
