package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventDeploymentStarted      = "deployment_started"
	EventDeploymentStepFinished = "deployment_step_finished"
	EventDeploymentLog          = "deployment_log"
	EventDeploymentFinished     = "deployment_finished"

	EventSwitchApprovalRequired = "switch_approval_required"
	EventSwitchRejected         = "switch_rejected"
	EventTrafficSwitched        = "traffic_switched"
	EventSwitchFailed           = "switch_failed"

	EventStatusObserved = "status_observed"
)

type DeploymentStartedEvent struct {
	RunID     uuid.UUID     `json:"run_id"`
	App       string        `json:"app"`
	Target    Slot          `json:"target"`
	Options   DeployOptions `json:"options"`
	Actor     string        `json:"actor,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}

type DeploymentStepFinishedEvent struct {
	RunID uuid.UUID  `json:"run_id"`
	App   string     `json:"app"`
	Step  StepResult `json:"step"`
}

type DeploymentLogEvent struct {
	RunID  uuid.UUID `json:"run_id"`
	App    string    `json:"app"`
	Step   StepName  `json:"step"`
	Stream LogStream `json:"stream"`
	Line   string    `json:"line"`
}

type DeploymentFinishedEvent struct {
	Run *DeploymentRun `json:"run"`
}

// SwitchEvent is published for every switch attempt that reached a decision:
// approval required, rejected by the health gate, switched or failed.
type SwitchEvent struct {
	TraceID   uuid.UUID     `json:"trace_id"`
	App       string        `json:"app"`
	Actor     string        `json:"actor,omitempty"`
	Options   SwitchOptions `json:"options"`
	From      Slot          `json:"from"`
	To        Slot          `json:"to"`
	Result    *SwitchResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	At        time.Time     `json:"at"`
}

type StatusObservedEvent struct {
	Status *DeploymentStatus `json:"status"`
}
