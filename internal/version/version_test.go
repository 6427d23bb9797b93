package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, b, c := Version, BuildTime, GitCommit
	t.Cleanup(func() { Version, BuildTime, GitCommit = v, b, c })

	Version, BuildTime, GitCommit = "v1.2.0", "unknown", "unknown"
	assert.Equal(t, "v1.2.0", String())

	BuildTime, GitCommit = "2026-01-02", "abc123"
	assert.Equal(t, "v1.2.0 (commit abc123, built 2026-01-02)", String())
}
