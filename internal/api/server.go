// Package api exposes the session over HTTP: REST routes for the
// selection, generation, and playback operations, static serving of
// rendered audio, and a websocket feed of state snapshots.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fluentlabs/speaksim/internal/config"
	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/eventstore"
	"github.com/fluentlabs/speaksim/internal/fault"
	"github.com/fluentlabs/speaksim/internal/media"
	"github.com/fluentlabs/speaksim/internal/playback"
	"github.com/fluentlabs/speaksim/internal/session"
)

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	Session     *session.Store
	Coordinator *session.Coordinator
	Lines       *playback.LineController
	Podcast     *playback.PodcastController
	Media       *media.Store
	Events      *eventstore.Store
}

// Server is the HTTP front of the daemon.
type Server struct {
	cfg    config.HTTPConfig
	log    *slog.Logger
	engine *gin.Engine
	srv    *http.Server
	hub    *Hub
	deps   Deps
}

func NewServer(cfg config.HTTPConfig, deps Deps, log *slog.Logger) *Server {
	logger := log.With(slog.String("component", "api"))
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST"}
	corsCfg.AllowHeaders = []string{"Content-Type"}
	engine.Use(cors.New(corsCfg))

	s := &Server{
		cfg:    cfg,
		log:    logger,
		engine: engine,
		hub:    NewHub(log),
		deps:   deps,
	}
	s.wireNotifiers()
	s.routes()
	return s
}

// wireNotifiers forwards controller failures to websocket clients and
// the timeline.
func (s *Server) wireNotifiers() {
	s.deps.Lines.SetFailureNotifier(func(index int, err error) {
		s.record(eventstore.TypeLineFailed, gin.H{"index": index, "error": err.Error()})
		s.hub.Broadcast(gin.H{
			"type":    "failure",
			"scope":   "line",
			"index":   index,
			"message": err.Error(),
		})
		s.pushState()
	})
	s.deps.Podcast.SetFailureNotifier(func(err error) {
		s.record(eventstore.TypePodcastFailed, gin.H{"error": err.Error()})
		s.hub.Broadcast(gin.H{
			"type":    "failure",
			"scope":   "podcast",
			"message": err.Error(),
		})
		s.pushState()
	})
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.POST("/session/topic", s.setTopic)
	api.POST("/session/generate", s.generate)
	api.GET("/session", s.sessionState)
	api.POST("/session/lines/:index/play", s.playLine)
	api.POST("/podcast/assemble", s.assemblePodcast)
	api.POST("/podcast/toggle", s.togglePodcast)
	api.POST("/podcast/seek", s.seekPodcast)
	api.GET("/podcast", s.podcastState)

	s.engine.GET("/audio/:name", s.serveAudio)
	s.engine.GET("/ws", func(c *gin.Context) { s.hub.Serve(c.Writer, c.Request) })
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
}

// state is the full session snapshot pushed to clients and returned by
// GET /api/session.
type state struct {
	SessionID  string            `json:"session_id"`
	Topic      string            `json:"topic"`
	Difficulty string            `json:"difficulty"`
	Generating bool              `json:"generating"`
	Dialogue   []dialogue.Line   `json:"dialogue"`
	ActiveLine int               `json:"active_line"`
	Podcast    playback.Snapshot `json:"podcast"`
}

func (s *Server) snapshot() state {
	topic, difficulty := s.deps.Session.Selection()
	return state{
		SessionID:  s.deps.Session.ID(),
		Topic:      topic,
		Difficulty: string(difficulty),
		Generating: s.deps.Coordinator.Busy(),
		Dialogue:   s.deps.Session.Dialogue(),
		ActiveLine: s.deps.Lines.ActiveIndex(),
		Podcast:    s.deps.Podcast.Snapshot(),
	}
}

func (s *Server) pushState() {
	s.hub.Broadcast(gin.H{"type": "state", "state": s.snapshot()})
}

func (s *Server) record(eventType string, payload any) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Record(context.Background(), s.deps.Session.ID(), eventType, payload)
}

func (s *Server) setTopic(c *gin.Context) {
	var req struct {
		Topic      string `json:"topic"`
		Difficulty string `json:"difficulty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.deps.Session.SetSelection(req.Topic, req.Difficulty)
	if s.deps.Events != nil {
		topic, difficulty := s.deps.Session.Selection()
		s.deps.Events.AppendSession(c.Request.Context(), s.deps.Session.ID(), topic, string(difficulty))
	}
	s.pushState()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) generate(c *gin.Context) {
	topic, difficulty := s.deps.Session.Selection()
	s.record(eventstore.TypeGenerationRequested, gin.H{"topic": topic, "difficulty": string(difficulty)})
	lines, err := s.deps.Coordinator.Generate(c.Request.Context())
	if err != nil {
		s.record(eventstore.TypeGenerationFailed, gin.H{"error": err.Error()})
		s.pushState()
		s.writeError(c, err)
		return
	}
	s.record(eventstore.TypeGenerationCommitted, gin.H{"lines": len(lines)})
	s.pushState()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) sessionState(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) playLine(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	if err := s.deps.Lines.Trigger(index); err != nil {
		s.writeError(c, err)
		return
	}
	s.record(eventstore.TypeLinePlayed, gin.H{"index": index})
	s.pushState()
	c.JSON(http.StatusAccepted, s.snapshot())
}

func (s *Server) assemblePodcast(c *gin.Context) {
	if err := s.deps.Podcast.Assemble(c.Request.Context()); err != nil {
		s.pushState()
		s.writeError(c, err)
		return
	}
	s.record(eventstore.TypePodcastAssembled, gin.H{"track": s.deps.Podcast.Snapshot().TrackURL})
	s.pushState()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) togglePodcast(c *gin.Context) {
	s.deps.Podcast.TogglePlayPause()
	s.pushState()
	c.JSON(http.StatusOK, s.deps.Podcast.Snapshot())
}

func (s *Server) seekPodcast(c *gin.Context) {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.deps.Podcast.Seek(req.Seconds)
	s.pushState()
	c.JSON(http.StatusOK, s.deps.Podcast.Snapshot())
}

func (s *Server) podcastState(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Podcast.Snapshot())
}

func (s *Server) serveAudio(c *gin.Context) {
	path, err := s.deps.Media.Path(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(path)
}

// writeError maps the failure taxonomy onto status codes: validation
// failures are the client's problem, transport failures the upstream's,
// playback and superseded results are conflicts with current state.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var verr *fault.ValidationError
	var terr *fault.TransportError
	var perr *fault.PlaybackError
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &perr):
		status = http.StatusConflict
	case errors.Is(err, session.ErrSuperseded), errors.Is(err, playback.ErrAssemblySuperseded):
		status = http.StatusConflict
	case errors.As(err, &terr):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Start begins serving in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.engine}
	s.log.Info("http server listening", slog.String("addr", addr))
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown stops the server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
