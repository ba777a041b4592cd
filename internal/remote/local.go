package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"bluegreen-server/internal/domain"
)

const localWaitDelay = 5 * time.Second

// LocalRunner executes commands on the orchestrator host. The process is
// killed when ctx is done.
type LocalRunner struct{}

func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

func (l *LocalRunner) Run(ctx context.Context, cmd domain.Command) (*domain.CommandResult, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = localWaitDelay
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	out := newOutput(cmd.OnLine)
	stdout, stderr, wait := out.pipes()
	c.Stdout = stdout
	c.Stderr = stderr

	fail := func(res *domain.CommandResult, err error) *domain.RemoteError {
		return &domain.RemoteError{
			Target:   domain.TargetLocal,
			Command:  Render(cmd),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}

	if err := c.Start(); err != nil {
		wait()
		res := out.result(-1)
		return res, fail(res, fmt.Errorf("failed to start command: %w", err))
	}

	cmdErr := c.Wait()
	streamErr := wait()

	if cmdErr != nil {
		var exitErr *exec.ExitError
		if ctx.Err() == nil && errors.As(cmdErr, &exitErr) && exitErr.ExitCode() > 0 {
			res := out.result(exitErr.ExitCode())
			return res, fail(res, nil)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			cmdErr = ctxErr
		}
		res := out.result(-1)
		return res, fail(res, cmdErr)
	}

	res := out.result(0)
	if streamErr != nil {
		return res, fail(res, streamErr)
	}

	return res, nil
}
