package remote

import (
	"context"
	"errors"
	"fmt"

	"bluegreen-server/internal/domain"
)

const exitFileNotFound = 3

// Paths are passed as positional parameters, never spliced into the script.
const (
	readScript  = `if [ -f "$1" ]; then exec cat -- "$1"; else exit 3; fi`
	writeScript = `mkdir -p -- "$(dirname -- "$1")" && cat > "$1.tmp" && mv -f -- "$1.tmp" "$1"`
)

// Files reads and replaces whole files on an execution target.
type Files struct {
	exec domain.RemoteExecutor
}

func NewFiles(exec domain.RemoteExecutor) *Files {
	return &Files{exec: exec}
}

func (f *Files) Read(ctx context.Context, target, path string) ([]byte, error) {
	res, err := f.exec.Run(ctx, target, domain.Command{
		Name: "sh",
		Args: []string{"-c", readScript, "sh", path},
	})
	if err != nil {
		var re *domain.RemoteError
		if errors.As(err, &re) && re.ExitCode == exitFileNotFound {
			return nil, fmt.Errorf("%w: %s on %s", domain.ErrFileNotFound, path, target)
		}
		return nil, err
	}

	return []byte(res.Stdout), nil
}

func (f *Files) Write(ctx context.Context, target, path string, data []byte) error {
	if data == nil {
		data = []byte{}
	}

	_, err := f.exec.Run(ctx, target, domain.Command{
		Name:  "sh",
		Args:  []string{"-c", writeScript, "sh", path},
		Stdin: data,
	})
	return err
}
