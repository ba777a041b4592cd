// Package registry
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"bluegreen-server/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

const (
	defaultHealthScheme = "http"
	defaultSettleDelay  = 5 * time.Second
	defaultDirective    = "default_backend"
	defaultStateDir     = "/var/lib/bluegreen"
)

var (
	defaultInstall = []string{"npm", "install"}
	defaultMigrate = []string{"npx", "prisma", "migrate", "deploy"}
	defaultBuild   = []string{"npm", "run", "build"}
	defaultReload  = []string{"systemctl", "reload", "haproxy"}
)

type fileModel struct {
	Hosts        map[string]*domain.Host `yaml:"hosts"`
	Defaults     defaultsModel           `yaml:"defaults"`
	Applications map[string]*appModel    `yaml:"applications"`
}

type defaultsModel struct {
	HealthPath     string                  `yaml:"health_path"`
	HealthScheme   string                  `yaml:"health_scheme"`
	SettleDelay    *time.Duration          `yaml:"settle_delay"`
	ProcessManager domain.ProcessManager   `yaml:"process_manager"`
	Commands       domain.PipelineCommands `yaml:"commands"`
	Control        domain.ControlPlane     `yaml:"control"`
}

type appModel struct {
	domain.AppDefinition `yaml:",inline"`
	SettleDelay          *time.Duration               `yaml:"settle_delay"`
	RawSlots             map[string]domain.SlotTarget `yaml:"slots"`
}

// Registry holds the application definitions and execution hosts loaded at
// start-up. It is read-only afterwards and safe for concurrent use.
type Registry struct {
	apps  map[string]*domain.AppDefinition
	hosts map[string]domain.Host
}

func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open registry: %v", domain.ErrConfiguration, err)
	}
	defer f.Close()

	return Parse(f)
}

func Parse(r io.Reader) (*Registry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read registry: %v", domain.ErrConfiguration, err)
	}

	var fm fileModel
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fm); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode registry: %v", domain.ErrConfiguration, err)
	}

	reg := &Registry{
		apps:  make(map[string]*domain.AppDefinition, len(fm.Applications)),
		hosts: make(map[string]domain.Host, len(fm.Hosts)),
	}

	for name, h := range fm.Hosts {
		if h == nil {
			return nil, fmt.Errorf("%w: host %q is empty", domain.ErrConfiguration, name)
		}
		if name == domain.TargetLocal || name == domain.TargetStandby {
			return nil, fmt.Errorf("%w: host name %q is reserved", domain.ErrConfiguration, name)
		}
		host := *h
		host.Name = name
		if host.Port == 0 {
			host.Port = 22
		}
		if err := validate.Struct(host); err != nil {
			return nil, fmt.Errorf("%w: host %q: %v", domain.ErrConfiguration, name, err)
		}
		reg.hosts[name] = host
	}

	for name, am := range fm.Applications {
		if am == nil {
			return nil, fmt.Errorf("%w: application %q is empty", domain.ErrConfiguration, name)
		}
		app, err := buildApp(name, am, fm.Defaults)
		if err != nil {
			return nil, err
		}
		if err := reg.validateApp(app); err != nil {
			return nil, err
		}
		reg.apps[name] = app
	}

	return reg, nil
}

func buildApp(name string, am *appModel, d defaultsModel) (*domain.AppDefinition, error) {
	app := am.AppDefinition
	app.Name = name

	if app.DisplayName == "" {
		app.DisplayName = name
	}
	if app.HealthPath == "" {
		app.HealthPath = d.HealthPath
	}
	if app.HealthScheme == "" {
		app.HealthScheme = firstNonEmpty(d.HealthScheme, defaultHealthScheme)
	}

	switch {
	case am.SettleDelay != nil:
		app.SettleDelay = *am.SettleDelay
	case d.SettleDelay != nil:
		app.SettleDelay = *d.SettleDelay
	default:
		app.SettleDelay = defaultSettleDelay
	}

	if app.ProcessManager == "" {
		app.ProcessManager = d.ProcessManager
	}
	if app.ProcessManager == "" {
		app.ProcessManager = domain.ProcessManagerPM2
	}

	app.Commands.Install = firstNonEmptyArgv(app.Commands.Install, d.Commands.Install, defaultInstall)
	app.Commands.Migrate = firstNonEmptyArgv(app.Commands.Migrate, d.Commands.Migrate, defaultMigrate)
	app.Commands.Build = firstNonEmptyArgv(app.Commands.Build, d.Commands.Build, defaultBuild)

	c := &app.Control
	c.Target = firstNonEmpty(c.Target, d.Control.Target)
	c.HAProxyConfig = firstNonEmpty(c.HAProxyConfig, d.Control.HAProxyConfig)
	c.Directive = firstNonEmpty(c.Directive, d.Control.Directive, defaultDirective)
	c.StateDir = firstNonEmpty(c.StateDir, d.Control.StateDir, defaultStateDir)
	c.ReloadCommand = firstNonEmptyArgv(c.ReloadCommand, d.Control.ReloadCommand, defaultReload)
	if !c.CheckConfig {
		c.CheckConfig = d.Control.CheckConfig
	}

	if len(am.RawSlots) != 2 {
		return nil, fmt.Errorf("%w: application %q must define exactly two slots, got %d", domain.ErrConfiguration, name, len(am.RawSlots))
	}

	app.Slots = make(map[domain.Slot]domain.SlotTarget, 2)
	for key, st := range am.RawSlots {
		slot, err := domain.ParseSlot(key)
		if err != nil {
			return nil, fmt.Errorf("%w: application %q: %v", domain.ErrConfiguration, name, err)
		}
		if _, dup := app.Slots[slot]; dup {
			return nil, fmt.Errorf("%w: application %q: slot %s defined twice", domain.ErrConfiguration, name, slot)
		}
		app.Slots[slot] = st
	}

	return &app, nil
}

func (r *Registry) validateApp(app *domain.AppDefinition) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: application %q: %s", domain.ErrConfiguration, app.Name, fmt.Sprintf(format, args...))
	}

	if err := validate.Struct(app); err != nil {
		return fail("%v", err)
	}

	for _, s := range domain.Slots {
		st, ok := app.Slots[s]
		if !ok {
			return fail("slot %s is missing", s)
		}
		if err := validate.Struct(st); err != nil {
			return fail("slot %s: %v", s, err)
		}
		if err := r.checkTarget(st.Target, false); err != nil {
			return fail("slot %s: %v", s, err)
		}
		if app.WorkDirFor(s) == "" {
			return fail("slot %s has no work_dir", s)
		}
	}

	blue, green := app.Slots[domain.SlotBlue], app.Slots[domain.SlotGreen]
	if blue.Address == green.Address {
		return fail("slots share address %s", blue.Address)
	}
	if blue.Target == green.Target && blue.Process == green.Process {
		return fail("slots share process %q on target %s", blue.Process, blue.Target)
	}

	if err := r.checkTarget(app.Control.Target, false); err != nil {
		return fail("control: %v", err)
	}
	for i, b := range app.Backup {
		if err := r.checkTarget(b.Target, true); err != nil {
			return fail("backup[%d]: %v", i, err)
		}
	}
	if b := app.PreMigrationBackup; b != nil {
		if err := validate.Struct(b); err != nil {
			return fail("pre_migration_backup: %v", err)
		}
		if err := r.checkTarget(b.Target, true); err != nil {
			return fail("pre_migration_backup: %v", err)
		}
	}

	return nil
}

func (r *Registry) checkTarget(target string, allowStandby bool) error {
	switch target {
	case domain.TargetLocal:
		return nil
	case domain.TargetStandby:
		if allowStandby {
			return nil
		}
		return fmt.Errorf("target %s is not allowed here", target)
	}
	if _, ok := r.hosts[target]; !ok {
		return fmt.Errorf("unknown target %q", target)
	}
	return nil
}

func (r *Registry) Lookup(name string) (*domain.AppDefinition, error) {
	app, ok := r.apps[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrApplicationNotFound, name)
	}
	return app, nil
}

func (r *Registry) List() []*domain.AppDefinition {
	out := make([]*domain.AppDefinition, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Hosts() map[string]domain.Host {
	out := make(map[string]domain.Host, len(r.hosts))
	for k, v := range r.hosts {
		out[k] = v
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyArgv(vals ...[]string) []string {
	for _, v := range vals {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
