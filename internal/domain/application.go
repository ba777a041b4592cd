package domain

import (
	"net/url"
	"time"
)

type ProcessManager string

const (
	ProcessManagerPM2           ProcessManager = "pm2"
	ProcessManagerSystemd       ProcessManager = "systemd"
	ProcessManagerDockerCompose ProcessManager = "docker-compose"
)

// TargetStandby can be used as RemoteCommand.Target to run a hook on the
// execution target of whichever slot is standby at deploy time.
const TargetStandby = "@standby"

// AppDefinition is the static, per-application configuration loaded by the
// registry. It is never mutated after load.
type AppDefinition struct {
	Name        string              `yaml:"-" json:"name"`
	DisplayName string              `yaml:"display_name" json:"display_name"`
	Slots       map[Slot]SlotTarget `yaml:"-" json:"slots"`

	WorkDir       string `yaml:"work_dir" json:"work_dir"`
	BackendPrefix string `yaml:"backend_prefix" json:"backend_prefix" validate:"required,excludesall= /'\""`

	HealthPath   string        `yaml:"health_path" json:"health_path" validate:"required,startswith=/"`
	HealthScheme string        `yaml:"health_scheme" json:"health_scheme" validate:"oneof=http https"`
	SettleDelay  time.Duration `yaml:"-" json:"settle_delay" validate:"gte=0"`

	ProcessManager     ProcessManager   `yaml:"process_manager" json:"process_manager" validate:"oneof=pm2 systemd docker-compose"`
	Commands           PipelineCommands `yaml:"commands" json:"commands"`
	Backup             []RemoteCommand  `yaml:"backup" json:"backup,omitempty" validate:"dive"`
	PreMigrationBackup *DatabaseBackup  `yaml:"pre_migration_backup" json:"pre_migration_backup,omitempty"`

	Control ControlPlane `yaml:"control" json:"control"`

	ProductionURL string `yaml:"production_url" json:"production_url,omitempty" validate:"omitempty,url"`
	StatsURL      string `yaml:"stats_url" json:"stats_url,omitempty" validate:"omitempty,url"`
}

type SlotTarget struct {
	Address   string `yaml:"address" json:"address" validate:"required,hostname_port"`
	Target    string `yaml:"target" json:"target" validate:"required"`
	Container string `yaml:"container" json:"container,omitempty"`
	Process   string `yaml:"process" json:"process" validate:"required"`
	Branch    string `yaml:"branch" json:"branch" validate:"required"`
	WorkDir   string `yaml:"work_dir" json:"work_dir,omitempty"`
}

type PipelineCommands struct {
	Install []string `yaml:"install" json:"install"`
	Migrate []string `yaml:"migrate" json:"migrate"`
	Build   []string `yaml:"build" json:"build"`
}

// RemoteCommand is an operator supplied hook, expressed as argv.
type RemoteCommand struct {
	Target string   `yaml:"target" json:"target" validate:"required"`
	Run    []string `yaml:"run" json:"run" validate:"min=1,dive,required"`
	Dir    string   `yaml:"dir" json:"dir,omitempty"`
}

type DatabaseBackup struct {
	Target   string `yaml:"target" json:"target" validate:"required"`
	Database string `yaml:"database" json:"database" validate:"required"`
	Dir      string `yaml:"dir" json:"dir" validate:"required"`
	User     string `yaml:"user" json:"user,omitempty"`
}

type ControlPlane struct {
	Target        string   `yaml:"target" json:"target" validate:"required"`
	HAProxyConfig string   `yaml:"haproxy_config" json:"haproxy_config" validate:"required"`
	Directive     string   `yaml:"directive" json:"directive" validate:"required"`
	ReloadCommand []string `yaml:"reload_command" json:"reload_command" validate:"min=1"`
	CheckConfig   bool     `yaml:"check_config" json:"check_config"`
	StateDir      string   `yaml:"state_dir" json:"state_dir" validate:"required"`
}

type ApplicationRegistry interface {
	Lookup(name string) (*AppDefinition, error)
	List() []*AppDefinition
}

func (a *AppDefinition) Slot(s Slot) SlotTarget {
	return a.Slots[s]
}

func (a *AppDefinition) WorkDirFor(s Slot) string {
	if wd := a.Slots[s].WorkDir; wd != "" {
		return wd
	}
	return a.WorkDir
}

func (a *AppDefinition) HealthURL(s Slot) string {
	u := url.URL{
		Scheme: a.HealthScheme,
		Host:   a.Slots[s].Address,
		Path:   a.HealthPath,
	}
	return u.String()
}

// AccessURL is the address an operator can open to verify a slot by hand.
func (a *AppDefinition) AccessURL(s Slot) string {
	u := url.URL{Scheme: a.HealthScheme, Host: a.Slots[s].Address}
	return u.String()
}

// BackendName renders the load balancer backend that serves slot s.
func (a *AppDefinition) BackendName(s Slot) string {
	return a.BackendPrefix + "_" + s.Lower()
}

func (a *AppDefinition) ResolveTarget(target string, standby Slot) string {
	if target == TargetStandby {
		return a.Slots[standby].Target
	}
	return target
}
