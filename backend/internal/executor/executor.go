// Package executor runs submitted code and shell commands as host processes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/maruel/ksid"
)

// ErrTimeout is returned when an execution runs past its deadline.
var ErrTimeout = errors.New("execution timed out")

// Ops abstracts code and command execution for testability.
type Ops interface {
	RunCode(ctx context.Context, dir string, code []string) (*Result, error)
	RunCommand(ctx context.Context, dir, command string) (*Result, error)
}

// Result holds the outcome of one execution. A non-zero ExitCode is a normal
// result, not an error.
type Result struct {
	ID        ksid.ID
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool // Stdout or Stderr hit MaxOutputBytes.
}

// Local implements Ops by spawning processes on the host.
type Local struct {
	// Interpreter receives the code on stdin. Defaults to python3 reading
	// from stdin.
	Interpreter []string
	// Shell is prefixed to the command string. Defaults to sh -c.
	Shell []string
	// Timeout bounds each execution; defaults to 30 seconds.
	Timeout time.Duration
	// MaxOutputBytes caps each of stdout and stderr; defaults to 1 MiB.
	MaxOutputBytes int

	initOnce sync.Once
}

func (l *Local) initDefaults() {
	l.initOnce.Do(func() {
		if len(l.Interpreter) == 0 {
			l.Interpreter = []string{"python3", "-"}
		}
		if len(l.Shell) == 0 {
			l.Shell = []string{"sh", "-c"}
		}
		if l.Timeout == 0 {
			l.Timeout = 30 * time.Second
		}
		if l.MaxOutputBytes == 0 {
			l.MaxOutputBytes = 1 << 20
		}
	})
}

// RunCode feeds the code lines, joined by newlines, to the interpreter.
func (l *Local) RunCode(ctx context.Context, dir string, code []string) (*Result, error) {
	l.initDefaults()
	src := strings.Join(code, "\n") + "\n"
	return l.run(ctx, dir, strings.NewReader(src), l.Interpreter)
}

// RunCommand runs command through the shell.
func (l *Local) RunCommand(ctx context.Context, dir, command string) (*Result, error) {
	l.initDefaults()
	argv := append(append([]string(nil), l.Shell...), command)
	return l.run(ctx, dir, nil, argv)
}

func (l *Local) run(ctx context.Context, dir string, stdin io.Reader, argv []string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	id := ksid.NewID()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // executing caller-supplied programs is what this package does.
	cmd.Dir = dir
	cmd.Stdin = stdin
	// Children that inherit the pipes must not keep Wait blocked after a kill.
	cmd.WaitDelay = 500 * time.Millisecond
	stdout := &cappedBuffer{max: l.MaxOutputBytes}
	stderr := &cappedBuffer{max: l.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.Debug("exec", "id", id, "argv0", argv[0], "dir", dir)
	start := time.Now()
	err := cmd.Run()
	res := &Result{
		ID:        id,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%w after %s", ErrTimeout, l.Timeout)
		}
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	return res, nil
}

// cappedBuffer keeps the first max bytes written to it and silently drops
// the rest so the child never sees a write error.
type cappedBuffer struct {
	max       int
	buf       strings.Builder
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.max - c.buf.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}
