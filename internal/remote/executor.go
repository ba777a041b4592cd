package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

// Executor dispatches commands to the local runner or to a registered SSH host
// by target name.
type Executor struct {
	hosts map[string]domain.Host
	local *LocalRunner
	ssh   *SSHRunner
	log   logger.Logger
}

func NewExecutor(hosts map[string]domain.Host, dialTimeout time.Duration, log logger.Logger) *Executor {
	return &Executor{
		hosts: hosts,
		local: NewLocalRunner(),
		ssh:   NewSSHRunner(dialTimeout, log),
		log:   log,
	}
}

func (e *Executor) Run(ctx context.Context, target string, cmd domain.Command) (*domain.CommandResult, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: empty command for target %q", domain.ErrConfiguration, target)
	}

	start := time.Now()
	e.log.Debug("remote: running command", "target", target, "command", Render(cmd))

	var (
		res *domain.CommandResult
		err error
	)

	if target == domain.TargetLocal {
		res, err = e.local.Run(ctx, cmd)
	} else {
		host, ok := e.hosts[target]
		if !ok {
			return nil, fmt.Errorf("%w: unknown execution target %q", domain.ErrConfiguration, target)
		}
		res, err = e.ssh.Run(ctx, host, cmd)
	}

	if err != nil {
		var re *domain.RemoteError
		if errors.As(err, &re) {
			e.log.Warn("remote: command failed", "target", target, "exit_code", re.ExitCode, "duration", time.Since(start), "error", err)
		}
		return res, err
	}

	e.log.Debug("remote: command finished", "target", target, "duration", time.Since(start))
	return res, nil
}
