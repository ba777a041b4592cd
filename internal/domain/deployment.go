package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeploymentState is the durable per-application record kept on the control
// host. It is always replaced as a whole.
type DeploymentState struct {
	Live        Slot       `json:"prod"`
	Standby     Slot       `json:"standby"`
	LastSwitch  *time.Time `json:"lastSwitch"`
	SwitchCount int64      `json:"switchCount"`
	Version     int64      `json:"version"`
}

func DefaultDeploymentState() DeploymentState {
	return DeploymentState{
		Live:    SlotBlue,
		Standby: SlotGreen,
	}
}

func (s DeploymentState) Validate() error {
	if !s.Live.Valid() || !s.Standby.Valid() {
		return fmt.Errorf("invalid slots live=%q standby=%q", s.Live, s.Standby)
	}
	if s.Live == s.Standby {
		return fmt.Errorf("live and standby are both %s", s.Live)
	}
	if s.SwitchCount < 0 {
		return fmt.Errorf("negative switch count %d", s.SwitchCount)
	}
	return nil
}

type StateStore interface {
	// Read always returns a usable state: the default when the record is
	// missing, invalid or unreachable. err is set only in the last case.
	Read(ctx context.Context, app *AppDefinition) (DeploymentState, error)
	Write(ctx context.Context, app *AppDefinition, expectedVersion int64, state DeploymentState) (DeploymentState, error)
}

type DeployOptions struct {
	PullLatest    bool `json:"pull_github"`
	RunMigrations bool `json:"run_migrations"`
	CreateBackup  bool `json:"create_backup"`
}

func DefaultDeployOptions() DeployOptions {
	return DeployOptions{
		PullLatest:    true,
		RunMigrations: false,
		CreateBackup:  true,
	}
}

type StepName string

const (
	StepBackup      StepName = "backup"
	StepSourceSync  StepName = "source_sync"
	StepInstall     StepName = "install"
	StepMigration   StepName = "migration"
	StepBuild       StepName = "build"
	StepRestart     StepName = "restart"
	StepHealthCheck StepName = "health_check"
)

var PipelineSteps = []StepName{
	StepBackup,
	StepSourceSync,
	StepInstall,
	StepMigration,
	StepBuild,
	StepRestart,
	StepHealthCheck,
}

type StepStatus string

const (
	StepSucceeded StepStatus = "success"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

type StepResult struct {
	Name      StepName      `json:"name"`
	Status    StepStatus    `json:"status"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type CommitInfo struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

// DeploymentRun is the outcome of one pipeline execution. It lives only for
// the duration of the call that produced it.
type DeploymentRun struct {
	ID         uuid.UUID     `json:"id"`
	App        string        `json:"app"`
	Target     Slot          `json:"target"`
	Address    string        `json:"address"`
	AccessURL  string        `json:"access_url"`
	Options    DeployOptions `json:"options"`
	Steps      []StepResult  `json:"steps"`
	Log        []string      `json:"log"`
	Commit     *CommitInfo   `json:"commit,omitempty"`
	Ready      bool          `json:"ready"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Actor      string        `json:"actor,omitempty"`
}

// Completed lists the names of the steps that finished successfully.
func (r *DeploymentRun) Completed() []StepName {
	var out []StepName
	for _, s := range r.Steps {
		if s.Status == StepSucceeded {
			out = append(out, s.Name)
		}
	}
	return out
}

// FailedStep returns the failing step, if any.
func (r *DeploymentRun) FailedStep() (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return s, true
		}
	}
	return StepResult{}, false
}

type DeploymentService interface {
	Deploy(ctx context.Context, app string, opts DeployOptions, actor string) (*DeploymentRun, error)
}
