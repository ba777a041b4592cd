package deployment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

const maxStepOutput = 4096

type pipeline struct {
	svc  *Service
	app  *domain.AppDefinition
	slot domain.Slot
	run  *domain.DeploymentRun
	log  logger.Logger

	current domain.StepName

	mu     sync.Mutex
	output strings.Builder
}

type stepFunc func(ctx context.Context) error

func (p *pipeline) execute(ctx context.Context) error {
	opts := p.run.Options

	steps := []struct {
		name    domain.StepName
		title   string
		enabled bool
		fn      stepFunc
	}{
		{domain.StepBackup, "Creating backup", opts.CreateBackup, p.backup},
		{domain.StepSourceSync, "Syncing source from " + p.target().Branch, opts.PullLatest, p.sourceSync},
		{domain.StepInstall, "Installing dependencies", true, p.install},
		{domain.StepMigration, "Running database migrations", opts.RunMigrations, p.migrate},
		{domain.StepBuild, "Building application", true, p.build},
		{domain.StepRestart, "Restarting " + p.target().Process, true, p.restart},
		{domain.StepHealthCheck, "Verifying health of " + p.target().Address, true, p.healthCheck},
	}

	for i, st := range steps {
		if !st.enabled {
			p.record(domain.StepResult{Name: st.name, Status: domain.StepSkipped, StartedAt: p.svc.now()})
			p.logf("Step %d: %s skipped", i+1, st.title)
			continue
		}

		p.logf("Step %d: %s...", i+1, st.title)
		if err := p.runStep(ctx, st.name, st.fn); err != nil {
			p.logf("❌ %s failed: %v", st.title, err)
			return &domain.StepError{Step: st.name, Err: err}
		}
		p.logf("✓ %s", st.title)
	}

	p.logf("✓ %s is ready at %s", p.slot, p.run.AccessURL)
	return nil
}

func (p *pipeline) runStep(ctx context.Context, name domain.StepName, fn stepFunc) error {
	if err := ctx.Err(); err != nil {
		p.record(domain.StepResult{Name: name, Status: domain.StepFailed, Error: err.Error(), StartedAt: p.svc.now()})
		return err
	}

	stepCtx := ctx
	if p.svc.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, p.svc.stepTimeout)
		defer cancel()
	}

	p.current = name
	p.mu.Lock()
	p.output.Reset()
	p.mu.Unlock()
	started := p.svc.now()
	p.log.Debug("deploy: step started", "step", name)

	err := fn(stepCtx)

	p.mu.Lock()
	output := tail(p.output.String(), maxStepOutput)
	p.mu.Unlock()

	res := domain.StepResult{
		Name:      name,
		Status:    domain.StepSucceeded,
		Output:    output,
		StartedAt: started,
		Duration:  p.svc.now().Sub(started),
	}
	if err != nil {
		res.Status = domain.StepFailed
		res.Error = err.Error()
	}
	p.record(res)

	p.log.Info("deploy: step finished", "step", name, "status", res.Status, "duration", res.Duration)
	return err
}

func (p *pipeline) record(res domain.StepResult) {
	p.run.Steps = append(p.run.Steps, res)
	p.svc.bus.Publish(domain.EventDeploymentStepFinished, domain.DeploymentStepFinishedEvent{
		RunID: p.run.ID,
		App:   p.app.Name,
		Step:  res,
	})
}

func (p *pipeline) logf(format string, args ...any) {
	p.run.Log = append(p.run.Log, fmt.Sprintf(format, args...))
}

func (p *pipeline) target() domain.SlotTarget {
	return p.app.Slot(p.slot)
}

func (p *pipeline) onLine(line string, stream domain.LogStream) {
	p.appendOutput(line)

	p.svc.bus.Publish(domain.EventDeploymentLog, domain.DeploymentLogEvent{
		RunID:  p.run.ID,
		App:    p.app.Name,
		Step:   p.current,
		Stream: stream,
		Line:   line,
	})
}

func (p *pipeline) appendOutput(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.output.Len() < 4*maxStepOutput {
		p.output.WriteString(line)
		p.output.WriteByte('\n')
	}
}

// exec runs cmd on target with output streaming into the current step.
func (p *pipeline) exec(ctx context.Context, target string, cmd domain.Command) (*domain.CommandResult, error) {
	cmd.OnLine = p.onLine
	return p.svc.exec.Run(ctx, target, cmd)
}

func (p *pipeline) onStandby(ctx context.Context, cmd domain.Command) (*domain.CommandResult, error) {
	return p.exec(ctx, p.target().Target, cmd)
}

func (p *pipeline) backup(ctx context.Context) error {
	if len(p.app.Backup) == 0 {
		_, err := p.onStandby(ctx, snapshotCommand(p.app, p.slot, p.svc.now()))
		return err
	}

	for _, hook := range p.app.Backup {
		target := p.app.ResolveTarget(hook.Target, p.slot)
		if _, err := p.exec(ctx, target, argv(hook.Dir, hook.Run)); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) sourceSync(ctx context.Context) error {
	dir := p.app.WorkDirFor(p.slot)
	branch := p.target().Branch

	for _, args := range [][]string{
		{"fetch", "origin", branch},
		{"checkout", branch},
		{"pull", "origin", branch},
	} {
		if _, err := p.onStandby(ctx, gitCommand(dir, args...)); err != nil {
			return fmt.Errorf("git %s failed: %w", args[0], err)
		}
	}

	p.run.Commit = p.readCommit(ctx, dir)
	if p.run.Commit != nil {
		p.logf("  commit %s %s", shortHash(p.run.Commit.Hash), firstLine(p.run.Commit.Message))
	}
	return nil
}

// readCommit is best effort; a failure is logged, never fatal.
func (p *pipeline) readCommit(ctx context.Context, dir string) *domain.CommitInfo {
	hash, err := p.svc.exec.Run(ctx, p.target().Target, gitCommand(dir, "rev-parse", "HEAD"))
	if err != nil {
		p.log.Warn("deploy: failed to read commit hash", "error", err)
		return nil
	}

	info := &domain.CommitInfo{Hash: strings.TrimSpace(hash.Stdout)}

	msg, err := p.svc.exec.Run(ctx, p.target().Target, gitCommand(dir, "log", "-1", "--pretty=%B"))
	if err != nil {
		p.log.Warn("deploy: failed to read commit message", "error", err)
		return info
	}
	info.Message = strings.TrimSpace(msg.Stdout)

	return info
}

func (p *pipeline) install(ctx context.Context) error {
	_, err := p.onStandby(ctx, argv(p.app.WorkDirFor(p.slot), p.app.Commands.Install))
	return err
}

// migrate always takes its own backup first, independent of CreateBackup.
func (p *pipeline) migrate(ctx context.Context) error {
	if b := p.app.PreMigrationBackup; b != nil {
		target := p.app.ResolveTarget(b.Target, p.slot)
		for _, cmd := range databaseDumpCommands(b, p.app, p.svc.now()) {
			if _, err := p.exec(ctx, target, cmd); err != nil {
				return fmt.Errorf("pre-migration backup failed: %w", err)
			}
		}
	} else if err := p.backup(ctx); err != nil {
		return fmt.Errorf("pre-migration backup failed: %w", err)
	}
	p.logf("  pre-migration backup created")

	_, err := p.onStandby(ctx, argv(p.app.WorkDirFor(p.slot), p.app.Commands.Migrate))
	return err
}

func (p *pipeline) build(ctx context.Context) error {
	_, err := p.onStandby(ctx, argv(p.app.WorkDirFor(p.slot), p.app.Commands.Build))
	return err
}

func (p *pipeline) restart(ctx context.Context) error {
	_, err := p.onStandby(ctx, restartCommand(p.app, p.slot))
	return err
}

func (p *pipeline) healthCheck(ctx context.Context) error {
	if err := p.svc.sleep(ctx, p.app.SettleDelay); err != nil {
		return err
	}

	res := p.svc.health.Check(ctx, p.app, p.slot)
	if !res.Healthy {
		reason := res.Error
		if reason == "" {
			reason = "not healthy"
		}
		return fmt.Errorf("%w: %s at %s: %s", domain.ErrHealthGate, p.slot, p.app.HealthURL(p.slot), reason)
	}

	p.appendOutput(fmt.Sprintf("%s %d in %s", p.app.HealthURL(p.slot), res.StatusCode, res.Latency.Round(time.Millisecond)))
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
