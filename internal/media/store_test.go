package media

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fluentlabs/speaksim/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newStore(t *testing.T, maxFiles int) *Store {
	t.Helper()
	s, err := NewStore(config.MediaConfig{Dir: t.TempDir(), MaxFiles: maxFiles}, newLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutAndPath(t *testing.T) {
	s := newStore(t, 10)
	url, err := s.Put("podcast_", "mp3", []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(url, URLPrefix) {
		t.Fatalf("expected %s prefix, got %s", URLPrefix, url)
	}
	name := strings.TrimPrefix(url, URLPrefix)
	path, err := s.Path(name)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	s := newStore(t, 10)
	for _, name := range []string{"", "../etc/passwd", "a/b.mp3", `a\b.mp3`} {
		if _, err := s.Path(name); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}

func TestDurationRegistry(t *testing.T) {
	s := newStore(t, 10)
	url, err := s.Put("", "mp3", []byte("x"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := s.Duration(url); ok {
		t.Fatal("expected unknown duration before SetDuration")
	}
	s.SetDuration(url, 42.5)
	d, ok := s.Duration(url)
	if !ok || d != 42.5 {
		t.Fatalf("expected 42.5, got %v (%v)", d, ok)
	}
}

func TestCleanupKeepsNewest(t *testing.T) {
	s := newStore(t, 2)
	var urls []string
	for i := 0; i < 3; i++ {
		url, err := s.Put("", "mp3", []byte("x"))
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		urls = append(urls, url)
		// distinct mod times so eviction order is stable
		time.Sleep(10 * time.Millisecond)
	}
	oldest := strings.TrimPrefix(urls[0], URLPrefix)
	if _, err := s.Path(oldest); err == nil {
		t.Fatal("expected oldest file to be evicted")
	}
	newest := strings.TrimPrefix(urls[2], URLPrefix)
	if _, err := s.Path(newest); err != nil {
		t.Fatalf("expected newest file kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.dir, newest)); err != nil {
		t.Fatalf("stat newest: %v", err)
	}
}
