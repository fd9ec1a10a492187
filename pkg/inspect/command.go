package inspect

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"time"
)

const defaultCommandTimeout = 5 * time.Second

var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:[-+][0-9A-Za-z.-]+)?`)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Command reports versions of executables found on PATH by running
// "<name> --version" and extracting the first version string.
type Command struct {
	lookPath func(string) (string, error)
	run      Runner
	timeout  time.Duration
}

// NewCommand creates a Command source using the real PATH.
func NewCommand() *Command {
	return &Command{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		timeout: defaultCommandTimeout,
	}
}

// Version implements Source.
func (c *Command) Version(ctx context.Context, name string) (string, bool) {
	path, err := c.lookPath(name)
	if err != nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.run(ctx, path, "--version")
	if err != nil {
		slog.Debug("version command failed",
			slog.String("tool", name),
			slog.String("error", err.Error()))
		return "", false
	}

	v := versionPattern.Find(out)
	if v == nil {
		return "", false
	}
	return string(v), true
}
