package deployment

import (
	"fmt"
	"path"
	"time"

	"bluegreen-server/internal/domain"
)

const snapshotScript = `mkdir -p -- "$1" && tar --exclude=./node_modules -czf "$1/$2" -C "$3" .`

func argv(dir string, words []string) domain.Command {
	return domain.Command{Name: words[0], Args: words[1:], Dir: dir}
}

func gitCommand(dir string, args ...string) domain.Command {
	return domain.Command{Name: "git", Args: args, Dir: dir}
}

// snapshotCommand archives the slot's working tree next to it, minus
// node_modules.
func snapshotCommand(app *domain.AppDefinition, slot domain.Slot, at time.Time) domain.Command {
	dir := app.WorkDirFor(slot)
	backupDir := path.Join(path.Dir(path.Clean(dir)), "backups")
	name := fmt.Sprintf("%s-%s-%s.tar.gz", app.Name, slot.Lower(), at.UTC().Format("20060102-150405"))

	return domain.Command{
		Name: "sh",
		Args: []string{"-c", snapshotScript, "sh", backupDir, name, dir},
	}
}

func databaseDumpCommands(b *domain.DatabaseBackup, app *domain.AppDefinition, at time.Time) []domain.Command {
	file := path.Join(b.Dir, fmt.Sprintf("%s-pre-migration-%s.dump", app.Name, at.UTC().Format("20060102-150405")))

	args := []string{"--format=custom", "--file=" + file}
	if b.User != "" {
		args = append(args, "--username="+b.User)
	}
	args = append(args, b.Database)

	return []domain.Command{
		{Name: "mkdir", Args: []string{"-p", "--", b.Dir}},
		{Name: "pg_dump", Args: args},
	}
}

func restartCommand(app *domain.AppDefinition, slot domain.Slot) domain.Command {
	st := app.Slot(slot)

	switch app.ProcessManager {
	case domain.ProcessManagerSystemd:
		return domain.Command{Name: "systemctl", Args: []string{"restart", st.Process}}
	case domain.ProcessManagerDockerCompose:
		return domain.Command{Name: "docker", Args: []string{"compose", "up", "-d", "--force-recreate", st.Process}, Dir: app.WorkDirFor(slot)}
	default:
		return domain.Command{Name: "pm2", Args: []string{"restart", st.Process, "--update-env"}}
	}
}
