// Package remotetest provides in-memory remote execution for tests.
package remotetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/remote"
)

// Call is one command seen by Executor.
type Call struct {
	Target string
	Line   string
	Cmd    domain.Command
}

// Handler scripts the outcome of a command. Returning a nil result means
// success with empty output.
type Handler func(target string, cmd domain.Command) (*domain.CommandResult, error)

// Executor records every command and answers through Handler.
type Executor struct {
	mu      sync.Mutex
	calls   []Call
	Handler Handler
}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Run(ctx context.Context, target string, cmd domain.Command) (*domain.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.RemoteError{Target: target, Command: remote.Render(cmd), ExitCode: -1, Err: err}
	}

	e.mu.Lock()
	e.calls = append(e.calls, Call{Target: target, Line: remote.Render(cmd), Cmd: cmd})
	h := e.Handler
	e.mu.Unlock()

	if h == nil {
		return &domain.CommandResult{}, nil
	}

	res, err := h(target, cmd)
	if res == nil {
		res = &domain.CommandResult{}
	}
	if cmd.OnLine != nil {
		for _, l := range strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n") {
			if l != "" {
				cmd.OnLine(l, domain.StreamStdout)
			}
		}
	}
	return res, err
}

func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// Lines returns the rendered command lines in call order.
func (e *Executor) Lines() []string {
	var out []string
	for _, c := range e.Calls() {
		out = append(out, c.Line)
	}
	return out
}

// Fail builds a non-zero exit error the way real runners report it.
func Fail(target string, cmd domain.Command, exitCode int, stderr string) (*domain.CommandResult, error) {
	res := &domain.CommandResult{Stderr: stderr, ExitCode: exitCode}
	return res, &domain.RemoteError{Target: target, Command: remote.Render(cmd), ExitCode: exitCode, Stderr: stderr}
}

// Files is an in-memory domain.RemoteFiles. ReadErr and WriteErr, when set,
// are consulted before touching the store.
type Files struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int

	ReadErr  func(target, path string) error
	WriteErr func(target, path string, data []byte) error
}

func NewFiles() *Files {
	return &Files{data: make(map[string][]byte)}
}

func key(target, path string) string {
	return target + ":" + path
}

func (f *Files) Read(ctx context.Context, target, path string) ([]byte, error) {
	if f.ReadErr != nil {
		if err := f.ReadErr(target, path); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.data[key(target, path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", domain.ErrFileNotFound, path, target)
	}
	return append([]byte(nil), b...), nil
}

func (f *Files) Write(ctx context.Context, target, path string, data []byte) error {
	if f.WriteErr != nil {
		if err := f.WriteErr(target, path, data); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.data[key(target, path)] = append([]byte(nil), data...)
	f.writes++
	return nil
}

// Put seeds a file without counting it as a write.
func (f *Files) Put(target, path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.data[key(target, path)] = append([]byte(nil), data...)
}

func (f *Files) Get(target, path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.data[key(target, path)]
	return b, ok
}

func (f *Files) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.writes
}
