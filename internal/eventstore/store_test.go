package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluentlabs/speaksim/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	// ephemeral writes are silent no-ops
	es.Record(ctx, "s1", TypeLinePlayed, map[string]int{"index": 0})
	events, err := es.ListSessionEvents(ctx, "s1", 10)
	if err != nil || len(events) != 0 {
		t.Fatalf("ephemeral store returned events: %v, %v", events, err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	sessionID := "session-123"
	if err := es.AppendSession(context.Background(), sessionID, "climate change", "advanced"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{SessionID: sessionID, Type: TypeGenerationCommitted, Payload: []byte(`{"lines":6}`)}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	es.Record(context.Background(), sessionID, TypeLinePlayed, map[string]int{"index": 2})

	events, err := es.ListSessionEvents(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != TypeGenerationCommitted {
		t.Fatalf("first event type = %q", events[0].Type)
	}
	if string(events[0].Payload) != `{"lines":6}` {
		t.Fatalf("unexpected payload: %s", events[0].Payload)
	}
	if events[1].Type != TypeLinePlayed {
		t.Fatalf("second event type = %q", events[1].Type)
	}
}

func TestAppendSessionUpdatesSelection(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	if err := es.AppendSession(context.Background(), "s1", "travel", "beginner"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendSession(context.Background(), "s1", "space travel", "advanced"); err != nil {
		t.Fatalf("re-append session: %v", err)
	}

	var topic, difficulty string
	row := es.db.QueryRowContext(context.Background(),
		`SELECT topic, difficulty FROM sessions WHERE session_id = ?`, "s1")
	if err := row.Scan(&topic, &difficulty); err != nil {
		t.Fatalf("scan session: %v", err)
	}
	if topic != "space travel" || difficulty != "advanced" {
		t.Fatalf("session row = %q/%q, want latest selection", topic, difficulty)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "old-session", "history", "beginner"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{SessionID: "old-session", Type: TypeLinePlayed}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "new-session", "music", "advanced"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListSessionEvents(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
