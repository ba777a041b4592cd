// Package statestore
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

// Store keeps one JSON record per application under the control plane's
// state directory.
type Store struct {
	files domain.RemoteFiles
	log   logger.Logger
}

func New(files domain.RemoteFiles, log logger.Logger) *Store {
	return &Store{files: files, log: log}
}

func Path(app *domain.AppDefinition) string {
	return path.Join(app.Control.StateDir, app.Name+".json")
}

// Read yields the default state for a missing, unreadable or invalid record.
// Only a record that could not be fetched is reported as an error.
func (s *Store) Read(ctx context.Context, app *domain.AppDefinition) (domain.DeploymentState, error) {
	state, err := s.load(ctx, app)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, domain.ErrFileNotFound):
		return domain.DefaultDeploymentState(), nil
	case errors.Is(err, domain.ErrRemoteExecution):
		s.log.Warn("statestore: record unreachable, using default state", "app", app.Name, "error", err)
		return domain.DefaultDeploymentState(), err
	default:
		s.log.Warn("statestore: using default state", "app", app.Name, "error", err)
		return domain.DefaultDeploymentState(), nil
	}
}

// Write replaces the record as a whole if its version still equals
// expectedVersion. The stored record carries expectedVersion+1.
func (s *Store) Write(ctx context.Context, app *domain.AppDefinition, expectedVersion int64, state domain.DeploymentState) (domain.DeploymentState, error) {
	if err := state.Validate(); err != nil {
		return domain.DeploymentState{}, fmt.Errorf("statestore: refusing to write: %w", err)
	}

	current, err := s.load(ctx, app)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrFileNotFound):
		current = domain.DefaultDeploymentState()
	case errors.Is(err, domain.ErrRemoteExecution):
		return domain.DeploymentState{}, err
	default:
		s.log.Warn("statestore: overwriting invalid record", "app", app.Name, "error", err)
		current = domain.DefaultDeploymentState()
	}

	if current.Version != expectedVersion {
		return domain.DeploymentState{}, fmt.Errorf("%w: app %s expected version %d, found %d",
			domain.ErrStateConflict, app.Name, expectedVersion, current.Version)
	}

	state.Version = expectedVersion + 1

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return domain.DeploymentState{}, fmt.Errorf("statestore: encode: %w", err)
	}

	if err := s.files.Write(ctx, app.Control.Target, Path(app), append(data, '\n')); err != nil {
		return domain.DeploymentState{}, err
	}

	s.log.Info("statestore: state written", "app", app.Name, "live", state.Live, "version", state.Version, "switch_count", state.SwitchCount)
	return state, nil
}

func (s *Store) load(ctx context.Context, app *domain.AppDefinition) (domain.DeploymentState, error) {
	data, err := s.files.Read(ctx, app.Control.Target, Path(app))
	if err != nil {
		return domain.DeploymentState{}, err
	}

	var state domain.DeploymentState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.DeploymentState{}, fmt.Errorf("decode %s: %w", Path(app), err)
	}

	if state.Standby == "" && state.Live.Valid() {
		state.Standby = state.Live.Complement()
	}
	if err := state.Validate(); err != nil {
		return domain.DeploymentState{}, fmt.Errorf("invalid record %s: %w", Path(app), err)
	}

	return state, nil
}
