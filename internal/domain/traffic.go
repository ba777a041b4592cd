package domain

import (
	"context"
	"time"
)

type SwitchOptions struct {
	RequireApproval bool `json:"require_approval"`
	Emergency       bool `json:"emergency"`
}

func DefaultSwitchOptions() SwitchOptions {
	return SwitchOptions{RequireApproval: true}
}

type SwitchStatus string

const (
	SwitchCompleted        SwitchStatus = "switched"
	SwitchApprovalRequired SwitchStatus = "approval_required"
)

type SlotView struct {
	Slot      Slot   `json:"server"`
	Address   string `json:"ip"`
	Container string `json:"container,omitempty"`
}

type SwitchResult struct {
	Status         SwitchStatus `json:"status"`
	App            string       `json:"app"`
	PreviousLive   SlotView     `json:"previous_live"`
	Live           SlotView     `json:"live"`
	Standby        SlotView     `json:"standby"`
	SwitchCount    int64        `json:"switch_count"`
	LastSwitch     *time.Time   `json:"last_switch,omitempty"`
	SwitchedAt     *time.Time   `json:"switched_at,omitempty"`
	Emergency      bool         `json:"emergency"`
	StandbyHealthy *bool        `json:"standby_healthy,omitempty"`
	Plan           []string     `json:"plan,omitempty"`
	ProductionURL  string       `json:"production_url,omitempty"`
	StatsURL       string       `json:"stats_url,omitempty"`
}

type TrafficController interface {
	Switch(ctx context.Context, app string, opts SwitchOptions, actor string) (*SwitchResult, error)
}

func ViewOf(app *AppDefinition, s Slot) SlotView {
	t := app.Slot(s)
	return SlotView{Slot: s, Address: t.Address, Container: t.Container}
}
