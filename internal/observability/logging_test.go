package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithBuildID(ctx, "build-123")
	ctx = WithProject(ctx, "/srv/site")
	ctx = WithStage(ctx, "assemble")

	lc := GetContext(ctx)
	if lc.BuildID != "build-123" {
		t.Errorf("expected build-123, got %s", lc.BuildID)
	}
	if lc.Project != "/srv/site" {
		t.Errorf("expected /srv/site, got %s", lc.Project)
	}
	if lc.Stage != "assemble" {
		t.Errorf("expected assemble, got %s", lc.Stage)
	}
}

func TestStageOverride(t *testing.T) {
	ctx := WithStage(context.Background(), "install")
	ctx = WithStage(ctx, "build")
	if got := GetContext(ctx).Stage; got != "build" {
		t.Errorf("expected build, got %s", got)
	}
}

func TestInfoContextIncludesAttrs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	ctx := WithStage(WithBuildID(context.Background(), "b-1"), "static")
	InfoContext(ctx, "walked static output", slog.Int("count", 3))
	DebugContext(ctx, "debug line")

	out := buf.String()
	for _, want := range []string{"build.id=b-1", "stage=static", "count=3", "debug line"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output %q", want, out)
		}
	}
}

func TestEmptyContextHasNoAttrs(t *testing.T) {
	if attrs := getLogAttrs(context.Background()); len(attrs) != 0 {
		t.Errorf("expected no attrs, got %v", attrs)
	}
}
