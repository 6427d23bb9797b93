package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellExecutor_RunsInDirWithEnv(t *testing.T) {
	dir := t.TempDir()
	var stream bytes.Buffer
	exec := NewShellExecutor(&stream)

	err := exec.Run(t.Context(), Command{
		Stage: "build",
		Line:  `printf '%s' "$SITE_FLAVOR" > flavor.txt && echo done`,
		Dir:   dir,
		Env:   map[string]string{"SITE_FLAVOR": "gatsby"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "flavor.txt"))
	require.NoError(t, err)
	assert.Equal(t, "gatsby", string(data))
	assert.Equal(t, "done\n", stream.String())
}

func TestShellExecutor_FailureCarriesTail(t *testing.T) {
	exec := &ShellExecutor{TailLines: 2}
	err := exec.Run(t.Context(), Command{
		Stage: "install",
		Line:  "echo one; echo two; echo three >&2; exit 3",
		Dir:   t.TempDir(),
	})
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "two\nthree", exitErr.Output)
	assert.Contains(t, err.Error(), `install command "echo one; echo two; echo three >&2; exit 3" failed with exit code 3`)
}

func TestShellExecutor_Canceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	err := NewShellExecutor(nil).Run(ctx, Command{Stage: "build", Line: "exec sleep 5", Dir: t.TempDir()})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShellExecutor_EmptyLine(t *testing.T) {
	require.Error(t, NewShellExecutor(nil).Run(t.Context(), Command{Line: "  "}))
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"PATH=/bin", "NODE_ENV=development"}, map[string]string{"NODE_ENV": "production", "CI": "1"})
	assert.Equal(t, []string{"PATH=/bin", "CI=1", "NODE_ENV=production"}, got)
	assert.Equal(t, []string{"A=1"}, mergeEnv([]string{"A=1"}, nil))
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(3)
	for i := 1; i <= 5; i++ {
		_, _ = fmt.Fprintf(tb, "line %d\n", i)
	}
	_, _ = tb.Write([]byte("partial"))
	assert.Equal(t, "line 3\nline 4\nline 5\npartial", tb.String())
}

func TestRecorder(t *testing.T) {
	boom := errors.New("boom")
	r := &Recorder{Fail: map[string]error{"npm run build": boom}}
	require.NoError(t, r.Run(t.Context(), Command{Line: "npm ci"}))
	require.ErrorIs(t, r.Run(t.Context(), Command{Line: "npm run build"}), boom)
	assert.Equal(t, []string{"npm ci", "npm run build"}, r.Lines())
}
