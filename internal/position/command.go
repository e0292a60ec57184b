package position

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/lazypower/crystals/internal/geo"
)

// Command runs an external locator (e.g. `termux-location -p gps`) and
// parses the JSON fix it prints on stdout.
type Command struct {
	name string
	args []string
}

// NewCommand creates a command-backed source.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

// Locate runs the command once. Cancelling ctx kills the process.
func (c *Command) Locate(ctx context.Context) (geo.Coordinate, error) {
	cmd := exec.CommandContext(ctx, c.name, c.args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return geo.Coordinate{}, fmt.Errorf("%s: %w (stderr: %s)", c.name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return parseFix(stdout.Bytes())
}
