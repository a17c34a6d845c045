package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestInitWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	InitWriter(&buf, Config{Debug: false})
	log.Debug().Msg("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("debug line must be filtered at info level")
	}

	InitWriter(&buf, Config{Debug: true})
	componentLogger := Component("orchestrator")
	componentLogger.Debug().Msg("visible")
	out := buf.String()
	if !strings.Contains(out, "visible") {
		t.Fatalf("expected debug line, got %q", out)
	}
	if !strings.Contains(out, `"component":"orchestrator"`) {
		t.Fatalf("expected component field, got %q", out)
	}
}
