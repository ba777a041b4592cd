package deployment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bluegreen-server/internal/application/guard"
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
	"bluegreen-server/internal/logger"
	"bluegreen-server/internal/remote/remotetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	app *domain.AppDefinition
}

func (f *fakeRegistry) Lookup(name string) (*domain.AppDefinition, error) {
	if name != f.app.Name {
		return nil, domain.ErrApplicationNotFound
	}
	return f.app, nil
}

func (f *fakeRegistry) List() []*domain.AppDefinition { return []*domain.AppDefinition{f.app} }

type fakeTopology struct {
	app      *domain.AppDefinition
	live     domain.Slot
	observed domain.Observation
	stateErr error
}

func (f *fakeTopology) Resolve(_ context.Context, name string) (*domain.Topology, error) {
	if name != f.app.Name {
		return nil, domain.ErrApplicationNotFound
	}
	t := domain.Reconcile(f.app, domain.DeploymentState{Live: f.live, Standby: f.live.Complement()}, f.observed)
	t.StateErr = f.stateErr
	return &t, nil
}

type fakeHealth struct {
	mu      sync.Mutex
	healthy map[domain.Slot]bool
	checks  []domain.Slot
}

func (f *fakeHealth) Check(_ context.Context, _ *domain.AppDefinition, slot domain.Slot) domain.HealthResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.checks = append(f.checks, slot)
	if f.healthy[slot] {
		return domain.HealthResult{Healthy: true, StatusCode: 200}
	}
	return domain.HealthResult{Error: "context deadline exceeded"}
}

func sampleApp() *domain.AppDefinition {
	return &domain.AppDefinition{
		Name:           "sample",
		WorkDir:        "/opt/sample",
		BackendPrefix:  "sample",
		HealthPath:     "/api/health",
		HealthScheme:   "http",
		SettleDelay:    5 * time.Second,
		ProcessManager: domain.ProcessManagerPM2,
		Commands: domain.PipelineCommands{
			Install: []string{"npm", "install"},
			Migrate: []string{"npx", "prisma", "migrate", "deploy"},
			Build:   []string{"npm", "run", "build"},
		},
		Backup: []domain.RemoteCommand{
			{Target: "db", Run: []string{"/root/backup-db.sh"}},
			{Target: domain.TargetStandby, Run: []string{"/root/backup-source.sh"}},
		},
		Slots: map[domain.Slot]domain.SlotTarget{
			domain.SlotBlue:  {Address: "10.0.0.11:3001", Target: "ct-blue", Process: "sample-blue", Branch: "main"},
			domain.SlotGreen: {Address: "10.0.0.12:3001", Target: "ct-green", Process: "sample-green", Branch: "main"},
		},
	}
}

type harness struct {
	svc    *Service
	exec   *remotetest.Executor
	health *fakeHealth
	guard  *guard.Guard
	bus    *event.Bus
	slept  []time.Duration
}

func newHarness(app *domain.AppDefinition, live domain.Slot) *harness {
	h := &harness{
		exec:   remotetest.NewExecutor(),
		health: &fakeHealth{healthy: map[domain.Slot]bool{domain.SlotBlue: true, domain.SlotGreen: true}},
		guard:  guard.New(0),
		bus:    event.New(),
	}
	h.exec.Handler = func(target string, cmd domain.Command) (*domain.CommandResult, error) {
		if cmd.Name == "git" && len(cmd.Args) > 0 {
			switch cmd.Args[0] {
			case "rev-parse":
				return &domain.CommandResult{Stdout: "0123456789abcdef\n"}, nil
			case "log":
				return &domain.CommandResult{Stdout: "feat: attendance export\n\nbody\n"}, nil
			}
		}
		return &domain.CommandResult{Stdout: "ok\n"}, nil
	}

	h.svc = NewService(&fakeRegistry{app: app}, &fakeTopology{app: app, live: live}, h.exec, h.health, h.guard, h.bus, time.Minute, logger.Nop())
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return ctx.Err()
	}
	return h
}

func stepStatuses(run *domain.DeploymentRun) map[domain.StepName]domain.StepStatus {
	out := make(map[domain.StepName]domain.StepStatus, len(run.Steps))
	for _, s := range run.Steps {
		out[s.Name] = s.Status
	}
	return out
}

func TestDeploy_TargetsStandbyAndReportsReady(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DefaultDeployOptions(), "ops")
	require.NoError(t, err)

	assert.True(t, run.Ready)
	assert.Equal(t, domain.SlotGreen, run.Target)
	assert.Equal(t, "10.0.0.12:3001", run.Address)
	assert.Equal(t, "http://10.0.0.12:3001", run.AccessURL)
	assert.Equal(t, "ops", run.Actor)
	assert.Empty(t, run.Error)

	assert.Equal(t, []domain.StepName{
		domain.StepBackup,
		domain.StepSourceSync,
		domain.StepInstall,
		domain.StepBuild,
		domain.StepRestart,
		domain.StepHealthCheck,
	}, run.Completed())
	assert.Equal(t, domain.StepSkipped, stepStatuses(run)[domain.StepMigration])
	require.Len(t, run.Steps, len(domain.PipelineSteps))

	require.NotNil(t, run.Commit)
	assert.Equal(t, "0123456789abcdef", run.Commit.Hash)
	assert.Equal(t, "feat: attendance export\n\nbody", run.Commit.Message)

	assert.Equal(t, []string{
		"/root/backup-db.sh",
		"/root/backup-source.sh",
		"cd /opt/sample && git fetch origin main",
		"cd /opt/sample && git checkout main",
		"cd /opt/sample && git pull origin main",
		"cd /opt/sample && git rev-parse HEAD",
		"cd /opt/sample && git log -1 --pretty=%B",
		"cd /opt/sample && npm install",
		"cd /opt/sample && npm run build",
		"pm2 restart sample-green --update-env",
	}, h.exec.Lines())

	for _, c := range h.exec.Calls() {
		assert.NotEqual(t, "ct-blue", c.Target, "live slot touched by %q", c.Line)
	}
	assert.Equal(t, "db", h.exec.Calls()[0].Target)
	assert.Equal(t, "ct-green", h.exec.Calls()[1].Target)

	assert.Equal(t, []time.Duration{5 * time.Second}, h.slept)
	assert.Equal(t, []domain.Slot{domain.SlotGreen}, h.health.checks)

	assert.Contains(t, run.Log, "✓ GREEN is ready at http://10.0.0.12:3001")
}

func TestDeploy_GreenLiveTargetsBlue(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotGreen)

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{}, "")
	require.NoError(t, err)

	assert.Equal(t, domain.SlotBlue, run.Target)
	for _, c := range h.exec.Calls() {
		assert.Equal(t, "ct-blue", c.Target)
	}
	assert.Contains(t, h.exec.Lines(), "pm2 restart sample-blue --update-env")
}

func TestDeploy_HealthTimeoutFailsLastStep(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)
	h.health.healthy[domain.SlotGreen] = false

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DefaultDeployOptions(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHealthGate)
	require.NotNil(t, run)

	assert.False(t, run.Ready)
	assert.Equal(t, "health_gate", run.ErrorKind)

	failed, ok := run.FailedStep()
	require.True(t, ok)
	assert.Equal(t, domain.StepHealthCheck, failed.Name)
	assert.Contains(t, failed.Error, "deadline exceeded")

	statuses := stepStatuses(run)
	for _, s := range []domain.StepName{domain.StepBackup, domain.StepSourceSync, domain.StepInstall, domain.StepBuild, domain.StepRestart} {
		assert.Equal(t, domain.StepSucceeded, statuses[s], "step %s", s)
	}

	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.StepHealthCheck, stepErr.Step)
}

func TestDeploy_StopsAtFirstFailure(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)
	h.exec.Handler = func(target string, cmd domain.Command) (*domain.CommandResult, error) {
		if cmd.Name == "npm" && cmd.Args[0] == "install" {
			return remotetest.Fail(target, cmd, 1, "npm ERR! code ERESOLVE")
		}
		return nil, nil
	}

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{PullLatest: true}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteExecution)
	assert.Equal(t, "remote_execution", run.ErrorKind)

	assert.Equal(t, []domain.StepName{domain.StepSourceSync}, run.Completed())
	failed, ok := run.FailedStep()
	require.True(t, ok)
	assert.Equal(t, domain.StepInstall, failed.Name)
	assert.Contains(t, failed.Error, "ERESOLVE")

	require.Len(t, run.Steps, 3)
	for _, l := range h.exec.Lines() {
		assert.NotContains(t, l, "npm run build")
		assert.NotContains(t, l, "pm2")
	}
	assert.Empty(t, h.health.checks)
}

func TestDeploy_MigrationTakesItsOwnBackup(t *testing.T) {
	app := sampleApp()
	app.PreMigrationBackup = &domain.DatabaseBackup{Target: "db", Database: "sample", Dir: "/var/backups/sample", User: "postgres"}
	h := newHarness(app, domain.SlotBlue)

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{RunMigrations: true}, "")
	require.NoError(t, err)

	assert.Equal(t, domain.StepSkipped, stepStatuses(run)[domain.StepBackup])
	assert.Equal(t, domain.StepSucceeded, stepStatuses(run)[domain.StepMigration])

	lines := h.exec.Lines()
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "cd /opt/sample && npm install", lines[0])
	assert.Equal(t, "mkdir -p -- /var/backups/sample", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "pg_dump --format=custom --file=/var/backups/sample/sample-pre-migration-"), lines[2])
	assert.True(t, strings.HasSuffix(lines[2], "--username=postgres sample"), lines[2])
	assert.Equal(t, "cd /opt/sample && npx prisma migrate deploy", lines[3])
	assert.Equal(t, "db", h.exec.Calls()[2].Target)
}

func TestDeploy_MigrationWithoutDatabaseBackupRunsBackupHooks(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)

	_, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{RunMigrations: true}, "")
	require.NoError(t, err)

	lines := h.exec.Lines()
	assert.Equal(t, []string{
		"cd /opt/sample && npm install",
		"/root/backup-db.sh",
		"/root/backup-source.sh",
		"cd /opt/sample && npx prisma migrate deploy",
	}, lines[:4])
}

func TestDeploy_FailedPreMigrationBackupSkipsMigration(t *testing.T) {
	app := sampleApp()
	app.PreMigrationBackup = &domain.DatabaseBackup{Target: "db", Database: "sample", Dir: "/var/backups/sample"}
	h := newHarness(app, domain.SlotBlue)
	h.exec.Handler = func(target string, cmd domain.Command) (*domain.CommandResult, error) {
		if cmd.Name == "pg_dump" {
			return remotetest.Fail(target, cmd, 1, "connection refused")
		}
		return nil, nil
	}

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{RunMigrations: true}, "")
	require.ErrorIs(t, err, domain.ErrRemoteExecution)

	failed, ok := run.FailedStep()
	require.True(t, ok)
	assert.Equal(t, domain.StepMigration, failed.Name)
	for _, l := range h.exec.Lines() {
		assert.NotContains(t, l, "prisma")
	}
}

func TestDeploy_DefaultSnapshotWithoutHooks(t *testing.T) {
	app := sampleApp()
	app.Backup = nil
	h := newHarness(app, domain.SlotBlue)

	_, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{CreateBackup: true}, "")
	require.NoError(t, err)

	first := h.exec.Calls()[0]
	assert.Equal(t, "ct-green", first.Target)
	assert.Equal(t, "sh", first.Cmd.Name)
	require.Len(t, first.Cmd.Args, 6)
	assert.Equal(t, "/opt/backups", first.Cmd.Args[3])
	assert.True(t, strings.HasPrefix(first.Cmd.Args[4], "sample-green-"))
	assert.Equal(t, "/opt/sample", first.Cmd.Args[5])
}

func TestDeploy_RestartByProcessManager(t *testing.T) {
	tests := map[domain.ProcessManager]string{
		domain.ProcessManagerSystemd:       "systemctl restart sample-green",
		domain.ProcessManagerDockerCompose: "cd /opt/sample && docker compose up -d --force-recreate sample-green",
	}

	for pm, want := range tests {
		t.Run(string(pm), func(t *testing.T) {
			app := sampleApp()
			app.ProcessManager = pm
			h := newHarness(app, domain.SlotBlue)

			_, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{}, "")
			require.NoError(t, err)
			assert.Contains(t, h.exec.Lines(), want)
		})
	}
}

func TestDeploy_RejectedWhileAnotherOperationRuns(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)

	lease, err := h.guard.TryAcquire("sample", domain.OperationSwitch)
	require.NoError(t, err)
	defer lease.Release()

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DefaultDeployOptions(), "")
	require.ErrorIs(t, err, domain.ErrOperationInProgress)
	assert.Nil(t, run)
	assert.Empty(t, h.exec.Calls())
}

func TestDeploy_UnknownApp(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)

	_, err := h.svc.Deploy(context.Background(), "nope", domain.DefaultDeployOptions(), "")
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestDeploy_PublishesEvents(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)

	var (
		names []string
		lines []domain.DeploymentLogEvent
	)
	for _, name := range []string{domain.EventDeploymentStarted, domain.EventDeploymentStepFinished, domain.EventDeploymentFinished} {
		name := name
		h.bus.Subscribe(name, func(any) { names = append(names, name) })
	}
	h.bus.Subscribe(domain.EventDeploymentLog, func(e any) {
		lines = append(lines, e.(domain.DeploymentLogEvent))
	})

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DeployOptions{}, "")
	require.NoError(t, err)

	require.NotEmpty(t, names)
	assert.Equal(t, domain.EventDeploymentStarted, names[0])
	assert.Equal(t, domain.EventDeploymentFinished, names[len(names)-1])
	assert.Len(t, names, 2+len(domain.PipelineSteps))

	require.NotEmpty(t, lines)
	assert.Equal(t, run.ID, lines[0].RunID)
	assert.Equal(t, domain.StepInstall, lines[0].Step)
	assert.Equal(t, "ok", lines[0].Line)
}

func TestDeploy_CancelledContext(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := h.svc.Deploy(ctx, "sample", domain.DeployOptions{}, "")
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.False(t, run.Ready)
	assert.Empty(t, h.exec.Calls())
}

func TestDeploy_RefusedWhenLiveSlotUnknown(t *testing.T) {
	h := newHarness(sampleApp(), domain.SlotBlue)
	topo := h.svc.topology.(*fakeTopology)
	topo.stateErr = &domain.RemoteError{Target: "lb", Err: errors.New("i/o timeout")}

	run, err := h.svc.Deploy(context.Background(), "sample", domain.DefaultDeployOptions(), "ops")
	require.ErrorIs(t, err, domain.ErrRemoteExecution)
	assert.Nil(t, run)
	assert.Empty(t, h.exec.Calls())

	// observed routing still identifies the standby
	topo.observed = domain.Observation{Slot: domain.SlotGreen, Known: true}
	run, err = h.svc.Deploy(context.Background(), "sample", domain.DefaultDeployOptions(), "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.SlotBlue, run.Target)
}
