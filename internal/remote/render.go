package remote

import (
	"bluegreen-server/internal/domain"

	"github.com/alessio/shellescape"
)

// Render turns a structured command into a single shell line for an SSH
// session. Every word is quoted, so values from configuration never reach the
// remote shell unescaped.
func Render(cmd domain.Command) string {
	line := shellescape.QuoteCommand(append([]string{cmd.Name}, cmd.Args...))
	if cmd.Dir != "" {
		line = "cd " + shellescape.Quote(cmd.Dir) + " && " + line
	}
	return line
}
