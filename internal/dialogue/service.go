package dialogue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fluentlabs/speaksim/internal/bus"
	"github.com/fluentlabs/speaksim/internal/protocol"
)

const generationTimeout = 90 * time.Second

// Service answers generation requests on the bus with the configured
// backend.
type Service struct {
	bus       *bus.Client
	generator Generator
	sub       *nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger

	requests metric.Int64Counter
}

func NewService(parent context.Context, busClient *bus.Client, generator Generator, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	requests, _ := otel.Meter("speaksim/dialogue").Int64Counter("dialogue_generation_requests")
	return &Service{
		bus:       busClient,
		generator: generator,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log.With(slog.String("component", "dialogue-service")),
		requests:  requests,
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectDialogueGenerate, s.handleRequest)
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
	var req protocol.DialogueRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode dialogue request", slogError(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.requests != nil {
			s.requests.Add(s.ctx, 1)
		}

		ctx, cancel := context.WithTimeout(s.ctx, generationTimeout)
		defer cancel()

		result := protocol.DialogueResult{SessionID: req.SessionID}
		start := time.Now()
		lines, err := s.generator.Generate(ctx, Request{
			SessionID:  req.SessionID,
			Topic:      req.Topic,
			Difficulty: ParseDifficulty(req.Difficulty),
		})
		if err != nil {
			s.logger.Warn("dialogue generation failed", slogError(err))
			result.Error = err.Error()
		} else {
			s.logger.Info("dialogue generated",
				slog.String("topic", req.Topic),
				slog.Int("lines", len(lines)),
				slog.Duration("latency", time.Since(start)))
			result.Lines = lines
		}

		data, err := json.Marshal(result)
		if err != nil {
			s.logger.Warn("failed to marshal dialogue result", slogError(err))
			return
		}
		if err := msg.Respond(data); err != nil {
			s.logger.Warn("failed to reply to dialogue request", slogError(err))
		}
	}()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
