// Code and command execution endpoints.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fuxialexander/codesherpa/backend/internal/events"
	"github.com/fuxialexander/codesherpa/backend/internal/executor"
	"github.com/fuxialexander/codesherpa/backend/internal/server/dto"
	v1 "github.com/fuxialexander/codesherpa/backend/internal/server/dto/v1"
)

const publishTimeout = 5 * time.Second

func (s *Server) runCode(ctx context.Context, req *v1.CodeExecutionRequest) (*v1.ExecResp, error) {
	res, err := s.exec.RunCode(ctx, s.ws.Root(), req.Code)
	return s.finish(ctx, "code", res, err)
}

func (s *Server) runCommand(ctx context.Context, req *v1.CommandExecutionRequest) (*v1.ExecResp, error) {
	res, err := s.exec.RunCommand(ctx, s.ws.Root(), req.Command)
	return s.finish(ctx, "command", res, err)
}

// finish converts the executor outcome into a response. It also records
// metrics and publishes the execution event.
func (s *Server) finish(ctx context.Context, kind string, res *executor.Result, err error) (*v1.ExecResp, error) {
	// The process may have written files, even when it failed. Don't wait
	// for the watcher, which may be lagging or not running at all.
	s.ws.Invalidate()
	timedOut := errors.Is(err, executor.ErrTimeout)
	outcome := "ok"
	switch {
	case timedOut:
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case res.ExitCode != 0:
		outcome = "exit"
	}
	if res != nil {
		s.metrics.RecordExecution(kind, outcome, res.Duration, res.Truncated)
		s.publish(ctx, kind, res, timedOut)
	} else {
		s.metrics.RecordExecution(kind, outcome, 0, false)
	}

	switch {
	case timedOut:
		return nil, dto.GatewayTimeout(err.Error()).WithDetail("timeoutMs", s.cfg.Timeout.Milliseconds())
	case errors.Is(err, context.Canceled):
		return nil, dto.InternalError("execution cancelled").Wrap(err)
	case err != nil:
		return nil, dto.InternalError("failed to start " + kind).Wrap(err)
	}
	return &v1.ExecResp{
		ID:         res.ID.String(),
		Result:     combinedOutput(res.Stdout, res.Stderr),
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
		Truncated:  res.Truncated,
	}, nil
}

// combinedOutput appends stderr to stdout, starting it on its own line.
func combinedOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	if stdout != "" && !strings.HasSuffix(stdout, "\n") {
		stdout += "\n"
	}
	return stdout + stderr
}

// publish sends the execution event. It outlives request cancellation and
// never fails the request.
func (s *Server) publish(ctx context.Context, kind string, res *executor.Result, timedOut bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	_ = s.events.Publish(ctx, &events.ExecutionEvent{
		ID:         res.ID.String(),
		Kind:       kind,
		ExitCode:   res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
		TimedOut:   timedOut,
		Truncated:  res.Truncated,
		RequestID:  requestIDFromContext(ctx),
		StartedAt:  time.Now().Add(-res.Duration).UTC(),
	})
}
