package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	ctx := context.Background()
	l := New("nonsense")
	if l == nil || !l.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("expected an info-level logger for unknown level names")
	}
	if l.Enabled(ctx, slog.LevelDebug) {
		t.Fatal("debug should be filtered at the default level")
	}
}

func TestWithTenantStampsEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	l.WithTenant("t1").Info("appointment recorded", "session_id", "s1")

	line := buf.String()
	if !strings.Contains(line, `"tenant_id":"t1"`) {
		t.Fatalf("record missing tenant id: %s", line)
	}
	if !strings.Contains(line, `"session_id":"s1"`) {
		t.Fatalf("record missing call-site attrs: %s", line)
	}
}
