package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandError reports a failed external command.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("command %q failed (exit %d): %v", e.Command, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("command %q failed (exit %d): %v: %s", e.Command, e.ExitCode, e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// RunCommand runs name with args in dir and waits for it. A non-zero exit
// status is returned as a *CommandError carrying the combined output.
func RunCommand(ctx context.Context, dir, name string, args ...string) error {
	if name == "" {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // G204: commands come from local configuration
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	slog.Debug("running command", "command", name, "args", args, "dir", dir)
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &CommandError{
			Command:  strings.Join(append([]string{name}, args...), " "),
			ExitCode: code,
			Output:   out.String(),
			Err:      err,
		}
	}
	return nil
}

// CommandStage builds a stage that runs an external command line in dir.
// The command line is split on whitespace; its exit status is the only
// signal of success.
func CommandStage(name, announcement, commandLine, dir string) Stage {
	fields := strings.Fields(commandLine)
	return Stage{
		Name:         name,
		Announcement: announcement,
		Run: func(ctx context.Context) error {
			if len(fields) == 0 {
				return fmt.Errorf("no command configured for stage %s", name)
			}
			return RunCommand(ctx, dir, fields[0], fields[1:]...)
		},
	}
}
