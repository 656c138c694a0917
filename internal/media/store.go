// Package media owns the on-disk audio store and the playable media
// primitive consumed by the playback controllers.
package media

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fluentlabs/speaksim/internal/config"
	"github.com/google/uuid"
)

// URLPrefix is the HTTP path under which stored audio is served.
const URLPrefix = "/audio/"

// Store keeps synthesized and assembled audio files in a flat directory
// with uuid names, and remembers the estimated duration of each track so
// the clock player can resolve metadata.
type Store struct {
	dir      string
	maxFiles int
	log      *slog.Logger

	mu        sync.Mutex
	durations map[string]float64 // keyed by file name
}

func NewStore(cfg config.MediaConfig, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{
		dir:       cfg.Dir,
		maxFiles:  cfg.MaxFiles,
		log:       log.With(slog.String("component", "media-store")),
		durations: make(map[string]float64),
	}, nil
}

// Put writes data under a fresh uuid name with the given prefix and
// extension and returns the URL path the file is served at. Old files
// beyond the retention cap are removed, oldest first.
func (s *Store) Put(prefix, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s%s.%s", prefix, uuid.New().String(), ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	s.cleanup()
	return URLPrefix + name, nil
}

// Path resolves a served file name to its on-disk path, rejecting
// anything that would escape the media directory.
func (s *Store) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", errors.New("invalid audio file name")
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// SetDuration records the estimated duration for a stored track URL.
func (s *Store) SetDuration(url string, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[strings.TrimPrefix(url, URLPrefix)] = seconds
}

// Duration reports the recorded duration for a track URL.
func (s *Store) Duration(url string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.durations[strings.TrimPrefix(url, URLPrefix)]
	return d, ok
}

func (s *Store) cleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil || len(entries) <= s.maxFiles {
		return
	}
	type aged struct {
		name string
		mod  int64
	}
	var files []aged
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, aged{name: e.Name(), mod: info.ModTime().UnixNano()})
	}
	if len(files) <= s.maxFiles {
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod < files[j].mod })
	for _, f := range files[:len(files)-s.maxFiles] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			s.log.Warn("failed to remove old audio file", slog.String("file", f.name), slog.String("error", err.Error()))
			continue
		}
		s.mu.Lock()
		delete(s.durations, f.name)
		s.mu.Unlock()
	}
}
