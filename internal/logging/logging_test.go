package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/crate2gn/crate2gn/internal/logging"
)

func TestJSONLevels(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, logging.Config{Level: logging.Warn, Format: logging.JSON})

	log.Debugf("hidden %d", 1)
	log.Infof("hidden %d", 2)
	log.With("crate", "serde").Warnf("shown %d", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one entry, got %q", buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["level"] != "warn" || entry["message"] != "shown 3" || entry["crate"] != "serde" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNoOp(t *testing.T) {
	log := logging.NewNoOpLogger()
	log.Errorf("nothing %s", "happens")
}
