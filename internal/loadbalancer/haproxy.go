// Package loadbalancer
package loadbalancer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

const tmpSuffix = ".bluegreen.tmp"

// HAProxy inspects and rewrites the routing directive of an application in an
// HAProxy configuration file on the control target.
type HAProxy struct {
	exec    domain.RemoteExecutor
	files   domain.RemoteFiles
	timeout time.Duration
	log     logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewHAProxy(exec domain.RemoteExecutor, files domain.RemoteFiles, timeout time.Duration, log logger.Logger) *HAProxy {
	return &HAProxy{
		exec:    exec,
		files:   files,
		timeout: timeout,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Observe never fails: an unreadable config or an ambiguous rule yields an
// observation with Known=false.
func (h *HAProxy) Observe(ctx context.Context, app *domain.AppDefinition) domain.Observation {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	data, err := h.files.Read(ctx, app.Control.Target, app.Control.HAProxyConfig)
	if err != nil {
		h.log.Warn("haproxy: inspection failed, deferring to persisted state", "app", app.Name, "error", err)
		return domain.Observation{Error: err.Error()}
	}

	obs := ParseRouting(data, app)
	if !obs.Known {
		h.log.Warn("haproxy: routing rule not determinable", "app", app.Name, "directive", app.Control.Directive, "error", obs.Error)
	}
	return obs
}

// Route points the application's directive at slot and reloads HAProxy. A
// reload failure after the new file was moved into place is reported as
// domain.ErrPartialRoute together with the remote error.
func (h *HAProxy) Route(ctx context.Context, app *domain.AppDefinition, slot domain.Slot) error {
	c := app.Control
	unlock := h.lock(c.Target + ":" + c.HAProxyConfig)
	defer unlock()

	data, err := h.files.Read(ctx, c.Target, c.HAProxyConfig)
	if err != nil {
		return asRemote(c.Target, "read "+c.HAProxyConfig, err)
	}

	updated, n := Rewrite(data, app, slot)
	if n == 0 {
		return &domain.RemoteError{
			Target:  c.Target,
			Command: "rewrite " + c.HAProxyConfig,
			Err:     fmt.Errorf("no %q line for backend %s_* found", c.Directive, app.BackendPrefix),
		}
	}

	tmp := c.HAProxyConfig + tmpSuffix
	if err := h.files.Write(ctx, c.Target, tmp, updated); err != nil {
		return asRemote(c.Target, "write "+tmp, err)
	}

	if c.CheckConfig {
		if _, err := h.exec.Run(ctx, c.Target, domain.Command{Name: "haproxy", Args: []string{"-c", "-f", tmp}}); err != nil {
			h.exec.Run(context.WithoutCancel(ctx), c.Target, domain.Command{Name: "rm", Args: []string{"-f", "--", tmp}})
			return err
		}
	}

	if _, err := h.exec.Run(ctx, c.Target, domain.Command{Name: "mv", Args: []string{"-f", "--", tmp, c.HAProxyConfig}}); err != nil {
		return err
	}

	reload := domain.Command{Name: c.ReloadCommand[0], Args: c.ReloadCommand[1:]}
	if _, err := h.exec.Run(ctx, c.Target, reload); err != nil {
		h.log.Error("haproxy: config replaced but reload failed", "app", app.Name, "slot", slot, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPartialRoute, err)
	}

	h.log.Info("haproxy: routing updated", "app", app.Name, "backend", app.BackendName(slot), "lines", n)
	return nil
}

func (h *HAProxy) lock(key string) func() {
	h.mu.Lock()
	m, ok := h.locks[key]
	if !ok {
		m = &sync.Mutex{}
		h.locks[key] = m
	}
	h.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func asRemote(target, command string, err error) error {
	var re *domain.RemoteError
	if errors.As(err, &re) || errors.Is(err, domain.ErrConfiguration) {
		return err
	}
	return &domain.RemoteError{Target: target, Command: command, Err: err}
}

type directiveLine struct {
	backendStart int
	backendEnd   int
	slot         domain.Slot
}

// parseLine finds "<directive> <prefix>_blue|green" in the non-comment part
// of line.
func parseLine(line string, app *domain.AppDefinition) (directiveLine, bool) {
	code := line
	if i := strings.IndexByte(code, '#'); i >= 0 {
		code = code[:i]
	}

	fields := strings.Fields(code)
	if len(fields) < 2 || fields[0] != app.Control.Directive {
		return directiveLine{}, false
	}

	var slot domain.Slot
	switch fields[1] {
	case app.BackendName(domain.SlotBlue):
		slot = domain.SlotBlue
	case app.BackendName(domain.SlotGreen):
		slot = domain.SlotGreen
	default:
		return directiveLine{}, false
	}

	dirEnd := strings.Index(code, fields[0]) + len(fields[0])
	start := dirEnd + strings.Index(code[dirEnd:], fields[1])

	return directiveLine{backendStart: start, backendEnd: start + len(fields[1]), slot: slot}, true
}

// ParseRouting reports the slot referenced by the application's directive.
// No matching line, or lines naming both slots, give an unknown observation.
func ParseRouting(config []byte, app *domain.AppDefinition) domain.Observation {
	seen := map[domain.Slot]string{}

	scanner := bufio.NewScanner(bytes.NewReader(config))
	for scanner.Scan() {
		line := scanner.Text()
		if dl, ok := parseLine(line, app); ok {
			if _, dup := seen[dl.slot]; !dup {
				seen[dl.slot] = strings.TrimSpace(line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Observation{Error: err.Error()}
	}

	switch len(seen) {
	case 0:
		return domain.Observation{Error: fmt.Sprintf("no %q line for %s", app.Control.Directive, app.BackendPrefix)}
	case 1:
		for slot, line := range seen {
			return domain.Observation{Slot: slot, Known: true, Line: line}
		}
	}

	return domain.Observation{Error: "routing rule references both slots"}
}

// Rewrite points every directive line of the application at slot, leaving all
// other bytes untouched. It returns the new config and the number of matching
// lines.
func Rewrite(config []byte, app *domain.AppDefinition, slot domain.Slot) ([]byte, int) {
	lines := strings.SplitAfter(string(config), "\n")
	target := app.BackendName(slot)

	n := 0
	for i, line := range lines {
		dl, ok := parseLine(line, app)
		if !ok {
			continue
		}
		lines[i] = line[:dl.backendStart] + target + line[dl.backendEnd:]
		n++
	}

	return []byte(strings.Join(lines, "")), n
}
