package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluentlabs/speaksim/internal/config"
	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/eventstore"
	"github.com/fluentlabs/speaksim/internal/media"
	"github.com/fluentlabs/speaksim/internal/playback"
	"github.com/fluentlabs/speaksim/internal/session"
	"github.com/fluentlabs/speaksim/internal/transport"
)

type stubGenerator struct {
	lines []dialogue.Line
	err   error
}

func (g *stubGenerator) GenerateDialogue(ctx context.Context, sessionID, topic, difficulty string) ([]dialogue.Line, error) {
	return g.lines, g.err
}

type stubLineSynth struct{}

func (stubLineSynth) SynthesizeLine(ctx context.Context, sessionID, text string, role dialogue.Role) (string, error) {
	return "/audio/line.mp3", nil
}

type stubAssembler struct {
	mu    sync.Mutex
	track transport.TrackInfo
	err   error
}

func (a *stubAssembler) AssemblePodcast(ctx context.Context, sessionID string, lines []dialogue.Line) (transport.TrackInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.track, a.err
}

type noopPlayer struct{}

func (noopPlayer) Load(url string, ev media.Events) {}
func (noopPlayer) Play()                            {}
func (noopPlayer) Pause()                           {}
func (noopPlayer) Seek(seconds float64)             {}
func (noopPlayer) Close()                           {}

type testEnv struct {
	server *Server
	store  *session.Store
	gen    *stubGenerator
	asm    *stubAssembler
	media  *media.Store
	events *eventstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewStore()
	gen := &stubGenerator{}
	asm := &stubAssembler{track: transport.TrackInfo{URL: "/audio/pod.mp3", Segments: 2}}

	dir := t.TempDir()
	mediaStore, err := media.NewStore(config.MediaConfig{Dir: dir, MaxFiles: 20}, log)
	if err != nil {
		t.Fatalf("media store: %v", err)
	}
	events, err := eventstore.Open(context.Background(),
		config.EventStoreConfig{Path: dir + "/events.db", RetentionMode: "session"}, log)
	if err != nil {
		t.Fatalf("event store: %v", err)
	}
	t.Cleanup(func() { _ = events.Close() })

	deps := Deps{
		Session:     store,
		Coordinator: session.NewCoordinator(store, gen, log),
		Lines:       playback.NewLineController(store, stubLineSynth{}, func() media.Player { return noopPlayer{} }, log),
		Podcast:     playback.NewPodcastController(store, asm, noopPlayer{}, log),
		Media:       mediaStore,
		Events:      events,
	}
	return &testEnv{
		server: NewServer(config.HTTPConfig{Bind: "127.0.0.1", Port: 0}, deps, log),
		store:  store,
		gen:    gen,
		asm:    asm,
		media:  mediaStore,
		events: events,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) state {
	t.Helper()
	var st state
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, rec.Body.String())
	}
	return st
}

func TestSetTopicAndSessionState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/session/topic",
		map[string]string{"topic": "urban wildlife", "difficulty": "advanced"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set topic status = %d: %s", rec.Code, rec.Body.String())
	}

	st := decodeState(t, env.do(t, http.MethodGet, "/api/session", nil))
	if st.Topic != "urban wildlife" || st.Difficulty != "advanced" {
		t.Fatalf("state selection = %q/%q", st.Topic, st.Difficulty)
	}
	if st.ActiveLine != -1 {
		t.Fatalf("active line = %d, want -1", st.ActiveLine)
	}
	if st.SessionID == "" {
		t.Fatal("state must carry the session id")
	}
}

func TestGenerateSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.gen.lines = []dialogue.Line{
		{Speaker: dialogue.RoleExaminer, Text: "Why this topic?"},
		{Speaker: dialogue.RoleCandidate, Text: "It matters to me."},
	}
	env.do(t, http.MethodPost, "/api/session/topic", map[string]string{"topic": "choices"})

	rec := env.do(t, http.MethodPost, "/api/session/generate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if len(st.Dialogue) != 2 {
		t.Fatalf("dialogue length = %d, want 2", len(st.Dialogue))
	}
	if st.Generating {
		t.Fatal("generating flag must clear after completion")
	}
}

func TestGenerateRecordsTimeline(t *testing.T) {
	env := newTestEnv(t)
	env.gen.lines = []dialogue.Line{{Speaker: dialogue.RoleExaminer, Text: "On the record?"}}
	env.do(t, http.MethodPost, "/api/session/topic", map[string]string{"topic": "archives", "difficulty": "beginner"})

	if rec := env.do(t, http.MethodPost, "/api/session/generate", nil); rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}

	events, err := env.events.ListSessionEvents(context.Background(), env.store.ID(), 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	if len(types) != 2 || types[0] != eventstore.TypeGenerationRequested || types[1] != eventstore.TypeGenerationCommitted {
		t.Fatalf("timeline = %v, want requested then committed", types)
	}
}

func TestGenerateBlankTopicRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/session/generate", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestGenerateUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New("model offline")
	env.do(t, http.MethodPost, "/api/session/topic", map[string]string{"topic": "resilience"})

	rec := env.do(t, http.MethodPost, "/api/session/generate", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if env.store.LineCount() != 0 {
		t.Fatal("failed generation must not commit dialogue")
	}
}

func TestPlayLine(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetDialogue([]dialogue.Line{{Speaker: dialogue.RoleExaminer, Text: "One question?"}})

	rec := env.do(t, http.MethodPost, "/api/session/lines/0/play", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("play status = %d: %s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, rec); st.ActiveLine != 0 {
		t.Fatalf("active line = %d, want 0", st.ActiveLine)
	}

	if rec := env.do(t, http.MethodPost, "/api/session/lines/5/play", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-range play status = %d, want 422", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/session/lines/abc/play", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-integer play status = %d, want 400", rec.Code)
	}
}

func TestPodcastLifecycle(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/podcast/assemble", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("assemble without dialogue status = %d, want 422", rec.Code)
	}

	env.store.SetDialogue([]dialogue.Line{
		{Speaker: dialogue.RoleExaminer, Text: "Opening question?"},
		{Speaker: dialogue.RoleCandidate, Text: "Opening answer."},
	})
	rec := env.do(t, http.MethodPost, "/api/podcast/assemble", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("assemble status = %d: %s", rec.Code, rec.Body.String())
	}

	var snap playback.Snapshot
	rec = env.do(t, http.MethodGet, "/api/podcast", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TrackURL != "/audio/pod.mp3" || snap.Playing {
		t.Fatalf("snapshot after assemble = %+v", snap)
	}

	rec = env.do(t, http.MethodPost, "/api/podcast/toggle", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snap.Playing {
		t.Fatal("toggle must report playing")
	}

	rec = env.do(t, http.MethodPost, "/api/podcast/seek", map[string]float64{"seconds": 42})
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	// duration is still unknown, so the seek clamps to the start
	if snap.Position != 0 {
		t.Fatalf("pre-metadata seek position = %v, want 0", snap.Position)
	}
}

func TestPodcastAssembleFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetDialogue([]dialogue.Line{{Speaker: dialogue.RoleExaminer, Text: "Doomed question?"}})
	env.asm.mu.Lock()
	env.asm.err = errors.New("assembler offline")
	env.asm.mu.Unlock()

	if rec := env.do(t, http.MethodPost, "/api/podcast/assemble", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var snap playback.Snapshot
	rec := env.do(t, http.MethodGet, "/api/podcast", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TrackURL != "" {
		t.Fatalf("failed assembly left a track bound: %q", snap.TrackURL)
	}
}

func TestServeAudio(t *testing.T) {
	env := newTestEnv(t)
	url, err := env.media.Put("clip_", "mp3", []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("put clip: %v", err)
	}

	rec := env.do(t, http.MethodGet, url, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("serve audio status = %d", rec.Code)
	}
	if rec.Body.String() != "audio-bytes" {
		t.Fatalf("served body = %q", rec.Body.String())
	}

	if rec := env.do(t, http.MethodGet, "/audio/missing.mp3", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing audio status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/audio/..%2Fsecrets", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("traversal status = %d, want 404", rec.Code)
	}
}

func TestWebsocketReceivesStatePush(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	env.do(t, http.MethodPost, "/api/session/topic", map[string]string{"topic": "oceans"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var push struct {
		Type  string `json:"type"`
		State state  `json:"state"`
	}
	if err := json.Unmarshal(msg, &push); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if push.Type != "state" || push.State.Topic != "oceans" {
		t.Fatalf("push = %+v", push)
	}
}

func TestWebsocketGeneratePushesCommittedState(t *testing.T) {
	env := newTestEnv(t)
	env.gen.lines = []dialogue.Line{
		{Speaker: dialogue.RoleExaminer, Text: "First push?"},
		{Speaker: dialogue.RoleCandidate, Text: "Only the result."},
	}
	env.do(t, http.MethodPost, "/api/session/topic", map[string]string{"topic": "broadcasting"})

	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if rec := env.do(t, http.MethodPost, "/api/session/generate", nil); rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var push struct {
		Type  string `json:"type"`
		State state  `json:"state"`
	}
	if err := json.Unmarshal(msg, &push); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	// the one push for this request carries the committed dialogue, not a
	// pre-request snapshot
	if push.Type != "state" || len(push.State.Dialogue) != 2 || push.State.Generating {
		t.Fatalf("push = %+v, want committed state with 2 lines", push)
	}
}
