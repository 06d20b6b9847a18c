// Package hooks runs the shell commands configured for lifecycle events.
package hooks

import (
	"context"
	"io"
	"os"
	"os/exec"

	zlog "github.com/rs/zerolog/log"
)

// Runner executes hook commands with sh -c.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Default writes hook output to the process's stdout and stderr.
var Default = Runner{Stdout: os.Stdout, Stderr: os.Stderr}

// Run executes hooks in order. A failing hook is logged and does not stop the rest.
// It returns the number of hooks that failed.
func (r Runner) Run(ctx context.Context, stage string, hooks []string) int {
	if len(hooks) == 0 {
		return 0
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	failed := 0
	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.CommandContext(ctx, "sh", "-c", hook)
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
			failed++
		}
	}
	return failed
}
