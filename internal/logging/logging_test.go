package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Debug("hidden detail")
	logger.Info("pipeline started", "sites", 2)
	logger.Warn("feed fetch failed")

	out := buf.String()
	if strings.Contains(out, "hidden detail") {
		t.Fatalf("debug record leaked at info level: %s", out)
	}
	if !strings.Contains(out, "pipeline started") || !strings.Contains(out, "sites=2") {
		t.Fatalf("info record missing: %s", out)
	}
	if !strings.Contains(out, "feed fetch failed") {
		t.Fatalf("warn record missing: %s", out)
	}
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, " WARNING ")

	logger.Info("suppressed")
	logger.Error("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("error record missing: %s", out)
	}
}
