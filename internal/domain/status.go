package domain

import (
	"context"
	"time"
)

type HealthResult struct {
	Healthy    bool          `json:"healthy"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	CheckedAt  time.Time     `json:"checked_at"`
	Error      string        `json:"error,omitempty"`
}

type HealthChecker interface {
	Check(ctx context.Context, app *AppDefinition, slot Slot) HealthResult
}

type SlotStatus struct {
	SlotView
	Healthy bool         `json:"healthy"`
	Status  string       `json:"status"`
	Health  HealthResult `json:"health"`
}

type LoadBalancerStatus struct {
	Backend     string     `json:"backend"`
	Operational bool       `json:"operational"`
	Status      string     `json:"status"`
	Source      LiveSource `json:"source"`
}

type SwitchHistory struct {
	LastSwitch    *time.Time `json:"lastSwitch"`
	TotalSwitches int64      `json:"totalSwitches"`
}

type DeploymentStatus struct {
	App          string             `json:"app"`
	DisplayName  string             `json:"display_name,omitempty"`
	Live         SlotStatus         `json:"prod"`
	Standby      SlotStatus         `json:"standby"`
	LoadBalancer LoadBalancerStatus `json:"haproxy"`
	History      SwitchHistory      `json:"history"`
	CheckedAt    time.Time          `json:"checked_at"`
}

type StatusService interface {
	Status(ctx context.Context, app string) (*DeploymentStatus, error)
	List(ctx context.Context) ([]*DeploymentStatus, error)
}
