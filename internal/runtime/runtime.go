// Package runtime assembles the daemon: telemetry, the message bus, the
// bus services (generation, synthesis, assembly), the session state and
// playback controllers, and the HTTP surface. Start blocks until the
// context is cancelled, then shuts everything down in reverse order.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluentlabs/speaksim/internal/api"
	"github.com/fluentlabs/speaksim/internal/bus"
	"github.com/fluentlabs/speaksim/internal/config"
	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/eventstore"
	"github.com/fluentlabs/speaksim/internal/media"
	"github.com/fluentlabs/speaksim/internal/natsserver"
	"github.com/fluentlabs/speaksim/internal/playback"
	"github.com/fluentlabs/speaksim/internal/podcast"
	"github.com/fluentlabs/speaksim/internal/session"
	"github.com/fluentlabs/speaksim/internal/speech"
	"github.com/fluentlabs/speaksim/internal/transport"
)

const shutdownTimeout = 10 * time.Second

type service interface {
	Start() error
	Close()
	Healthy() bool
}

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger
	ready  atomic.Bool
	wg     sync.WaitGroup

	closers []func()
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{cfg: cfg, logger: logger}
}

// deferClose registers a teardown step; steps run in reverse order.
func (r *Runtime) deferClose(fn func()) {
	r.closers = append(r.closers, fn)
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.teardown()

	telemetryShutdown, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	r.deferClose(func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	})

	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("start embedded nats: %w", err)
	}
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
		r.deferClose(embedded.Shutdown)
	}

	busClient, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	r.deferClose(busClient.Close)

	mediaStore, err := media.NewStore(r.cfg.Media, r.logger)
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}

	events, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	r.deferClose(func() {
		if err := events.Close(); err != nil {
			r.logger.Error("event store close error", slog.String("error", err.Error()))
		}
	})

	services, err := r.startServices(ctx, busClient, mediaStore)
	if err != nil {
		return err
	}

	sessionStore := session.NewStore()
	voices := speech.NewVoicePicker(r.cfg.Speech)
	client := transport.NewClient(busClient, voices)
	coordinator := session.NewCoordinator(sessionStore, client, r.logger)
	r.deferClose(coordinator.Invalidate)

	resolve := func(url string) (float64, error) {
		d, ok := mediaStore.Duration(url)
		if !ok {
			return 0, fmt.Errorf("no duration known for %s", url)
		}
		return d, nil
	}
	lineCtrl := playback.NewLineController(sessionStore, client,
		func() media.Player { return media.NewClockPlayer(resolve) }, r.logger)
	r.deferClose(lineCtrl.Teardown)
	podcastCtrl := playback.NewPodcastController(sessionStore, client,
		media.NewClockPlayer(resolve), r.logger)
	r.deferClose(podcastCtrl.Teardown)

	if err := events.AppendSession(ctx, sessionStore.ID(), "", ""); err != nil {
		r.logger.Warn("session row create failed", slog.String("error", err.Error()))
	}

	apiServer := api.NewServer(r.cfg.HTTP, api.Deps{
		Session:     sessionStore,
		Coordinator: coordinator,
		Lines:       lineCtrl,
		Podcast:     podcastCtrl,
		Media:       mediaStore,
		Events:      events,
	}, r.logger)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}
	r.deferClose(func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("api shutdown error", slog.String("error", err.Error()))
		}
	})

	opsServer := r.startOpsServer(metricHandler, services)
	r.deferClose(func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("ops shutdown error", slog.String("error", err.Error()))
		}
	})

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("http", fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)),
		slog.String("session", sessionStore.ID()))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	return nil
}

// startServices builds and starts the bus services behind the transport
// boundary.
func (r *Runtime) startServices(ctx context.Context, busClient *bus.Client, mediaStore *media.Store) ([]service, error) {
	generator, err := r.buildGenerator(ctx)
	if err != nil {
		return nil, err
	}
	synth, err := r.buildSynthesizer(ctx)
	if err != nil {
		return nil, err
	}

	voices := speech.NewVoicePicker(r.cfg.Speech)
	assembler := podcast.NewAssembler(r.cfg.Podcast, synth, voices, mediaStore, r.logger)

	services := []service{
		dialogue.NewService(ctx, busClient, generator, r.logger),
		speech.NewService(ctx, busClient, synth, mediaStore, r.cfg.Podcast.SecondsPerChar, r.logger),
		podcast.NewService(ctx, busClient, assembler, r.logger),
	}
	for _, svc := range services {
		if err := svc.Start(); err != nil {
			return nil, fmt.Errorf("start service: %w", err)
		}
		r.deferClose(svc.Close)
	}
	return services, nil
}

func (r *Runtime) buildGenerator(ctx context.Context) (dialogue.Generator, error) {
	cfg := r.cfg.Dialogue
	switch cfg.Mode {
	case "ollama":
		return dialogue.NewOllamaGenerator(cfg.Endpoint, cfg.Model, cfg.MaxTokens, cfg.Temperature, cfg.RequestsPerMinute), nil
	case "gemini":
		gen, closeFn, err := dialogue.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("init gemini generator: %w", err)
		}
		r.deferClose(func() {
			if err := closeFn(); err != nil {
				r.logger.Warn("gemini client close error", slog.String("error", err.Error()))
			}
		})
		return gen, nil
	default:
		return dialogue.NewMockGenerator(), nil
	}
}

func (r *Runtime) buildSynthesizer(ctx context.Context) (speech.Synthesizer, error) {
	cfg := r.cfg.Speech
	var synth speech.Synthesizer
	switch cfg.Mode {
	case "exec":
		s, err := speech.NewExecSynth(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("init exec synth: %w", err)
		}
		synth = s
	case "googletts":
		s, closeFn, err := speech.NewGoogleSynth(ctx, cfg.LanguageCode)
		if err != nil {
			return nil, fmt.Errorf("init google tts: %w", err)
		}
		r.deferClose(func() {
			if err := closeFn(); err != nil {
				r.logger.Warn("tts client close error", slog.String("error", err.Error()))
			}
		})
		synth = s
	default:
		synth = speech.NewMockSynth()
	}

	synth = speech.WithRateLimit(synth, cfg.RequestsPerMinute)
	if cfg.CacheTTLMinutes > 0 {
		synth = speech.WithCache(synth, time.Duration(cfg.CacheTTLMinutes)*time.Minute)
	}
	return synth, nil
}

// startOpsServer serves metrics and health on the telemetry bind,
// separate from the public API.
func (r *Runtime) startOpsServer(metricHandler http.Handler, services []service) *http.Server {
	mux := http.NewServeMux()
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !r.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		for _, svc := range services {
			if !svc.Healthy() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("degraded"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("ops server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}

func (r *Runtime) teardown() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.wg.Wait()
	r.logger.Info("runtime stopped")
}
