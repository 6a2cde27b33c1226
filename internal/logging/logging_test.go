package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/nhle/wardboard/internal/model"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, model.LogConfig{Level: "warn", Format: "json"})

	logger.Info().Msg("hidden")
	logger.Warn().Str("slice", "tasks").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["message"] != "visible" || entry["slice"] != "tasks" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, model.LogConfig{Level: "chatty", Format: "json"})

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Error("debug line should be filtered at info level")
	}
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Error("info line should be written")
	}
}

func TestComponent_TagsEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, model.LogConfig{Format: "json"}), "synchronizer")
	logger.Info().Msg("tick")

	if !bytes.Contains(buf.Bytes(), []byte(`"component":"synchronizer"`)) {
		t.Errorf("expected component field, got %s", buf.String())
	}
}

func TestOpenFile_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wardboard.log")
	logger, closer, err := OpenFile(model.LogConfig{Level: "info", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info().Msg("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("closing log file: %v", err)
	}
}
