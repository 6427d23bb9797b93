// Package process runs the project's install and build commands.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// Command is one shell command line to run inside a project.
type Command struct {
	// Stage labels the command in logs and errors, e.g. install or build.
	Stage string
	Line  string
	Dir   string
	// Env is merged over the process environment.
	Env map[string]string
}

// Executor runs commands. Implementations must honour ctx cancellation.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a command that ran but failed. Output holds the tail of its
// combined stdout and stderr.
type ExitError struct {
	Command  Command
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s command %q failed", e.Command.Stage, e.Command.Line)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Output != "" {
		msg += ":\n" + e.Output
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// ShellExecutor invokes commands through sh -c.
type ShellExecutor struct {
	// Stream, when set, receives live command output (the CLI passes stderr in verbose mode).
	Stream    io.Writer
	TailLines int
}

// NewShellExecutor returns an executor keeping the last 40 output lines for errors.
func NewShellExecutor(stream io.Writer) *ShellExecutor {
	return &ShellExecutor{Stream: stream, TailLines: 40}
}

func (s *ShellExecutor) Run(ctx context.Context, c Command) error {
	if strings.TrimSpace(c.Line) == "" {
		return errors.New("empty command line")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", c.Line)
	cmd.Dir = c.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	// Let children finish writing after a cancellation before Wait gives up.
	cmd.WaitDelay = 5 * time.Second

	tail := newTailBuffer(s.TailLines)
	var out io.Writer = tail
	if s.Stream != nil {
		out = io.MultiWriter(tail, s.Stream)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	slog.Info("Running command", logfields.Stage(c.Stage), logfields.Command(c.Line), logfields.Path(c.Dir))
	start := time.Now()
	err := cmd.Run()
	slog.Debug("Command finished",
		logfields.Stage(c.Stage),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())),
		slog.Bool("ok", err == nil))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &ExitError{Command: c, ExitCode: exitCode, Output: tail.String(), Err: err}
}

// mergeEnv overlays extra on base. Keys are applied in sorted order for stable output.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[name]; !overridden {
			out = append(out, kv)
		}
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
