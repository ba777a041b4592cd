package domain

import "context"

// TargetLocal runs commands on the orchestrator host itself.
const TargetLocal = "local"

type LogStream string

const (
	StreamStdout LogStream = "stdout"
	StreamStderr LogStream = "stderr"
)

type LineHandler func(line string, stream LogStream)

// Command is a structured remote command. Values are never interpolated into
// a shell string by callers; executors quote Name and Args themselves.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Stdin []byte

	OnLine LineHandler
}

type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Host is a named SSH execution target from the registry.
type Host struct {
	Name                  string `yaml:"-" json:"name"`
	Address               string `yaml:"address" json:"address" validate:"required,hostname|ip"`
	Port                  int    `yaml:"port" json:"port" validate:"gte=0,lte=65535"`
	User                  string `yaml:"user" json:"user" validate:"required"`
	KeyFile               string `yaml:"key_file" json:"-"`
	KnownHostsFile        string `yaml:"known_hosts_file" json:"-"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key" json:"-"`
}

type RemoteExecutor interface {
	// Run executes cmd on target. A non-zero exit is reported as a
	// *RemoteError alongside the (still populated) result.
	Run(ctx context.Context, target string, cmd Command) (*CommandResult, error)
}

type RemoteFiles interface {
	// Read returns ErrFileNotFound when path does not exist on target.
	Read(ctx context.Context, target, path string) ([]byte, error)
	// Write replaces path on target as a whole (temp file + rename).
	Write(ctx context.Context, target, path string, data []byte) error
}
