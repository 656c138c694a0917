package speech

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fluentlabs/speaksim/internal/bus"
	"github.com/fluentlabs/speaksim/internal/media"
	"github.com/fluentlabs/speaksim/internal/protocol"
)

const synthesisTimeout = 45 * time.Second

// Service answers synthesis requests on the bus: renders the line with
// the configured engine, stores the clip in the media store, and replies
// with the URL the clip is served at.
type Service struct {
	bus            *bus.Client
	synth          Synthesizer
	store          *media.Store
	secondsPerChar float64
	sub            *nats.Subscription
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	logger         *slog.Logger

	requests metric.Int64Counter
}

func NewService(parent context.Context, busClient *bus.Client, synth Synthesizer, store *media.Store, secondsPerChar float64, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	requests, _ := otel.Meter("speaksim/speech").Int64Counter("speech_synthesis_requests")
	return &Service{
		bus:            busClient,
		synth:          synth,
		store:          store,
		secondsPerChar: secondsPerChar,
		ctx:            ctx,
		cancel:         cancel,
		logger:         log.With(slog.String("component", "speech-service")),
		requests:       requests,
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSpeechSynthesize, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SpeechRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode speech request", slogError(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.requests != nil {
			s.requests.Add(s.ctx, 1)
		}

		ctx, cancel := context.WithTimeout(s.ctx, synthesisTimeout)
		defer cancel()

		result := s.render(ctx, req)
		data, err := json.Marshal(result)
		if err != nil {
			s.logger.Warn("failed to marshal speech result", slogError(err))
			return
		}
		if err := msg.Respond(data); err != nil {
			s.logger.Warn("failed to reply to speech request", slogError(err))
		}
	}()
}

func (s *Service) render(ctx context.Context, req protocol.SpeechRequest) protocol.SpeechResult {
	result := protocol.SpeechResult{SessionID: req.SessionID}
	if strings.TrimSpace(req.Text) == "" {
		result.Error = "nothing to synthesize"
		return result
	}

	start := time.Now()
	clip, err := s.synth.Synthesize(ctx, req.Text, req.Voice)
	if err != nil {
		s.logger.Warn("synthesis failed", slogError(err))
		result.Error = err.Error()
		return result
	}

	url, err := s.store.Put("line_", clip.Format, clip.Audio)
	if err != nil {
		s.logger.Warn("failed to store clip", slogError(err))
		result.Error = err.Error()
		return result
	}
	s.store.SetDuration(url, float64(len(req.Text))*s.secondsPerChar)

	s.logger.Info("line synthesized",
		slog.String("voice", req.Voice),
		slog.Int("bytes", len(clip.Audio)),
		slog.Duration("latency", time.Since(start)))
	result.AudioURL = url
	return result
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
