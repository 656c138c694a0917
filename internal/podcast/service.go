package podcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluentlabs/speaksim/internal/bus"
	"github.com/fluentlabs/speaksim/internal/protocol"
)

const assemblyTimeout = 120 * time.Second

// Service answers assembly requests on the bus.
type Service struct {
	bus       *bus.Client
	assembler *Assembler
	sub       *nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func NewService(parent context.Context, busClient *bus.Client, assembler *Assembler, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:       busClient,
		assembler: assembler,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log.With(slog.String("component", "podcast-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectPodcastAssemble, s.handleRequest)
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
	var req protocol.PodcastRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode podcast request", slogError(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, assemblyTimeout)
		defer cancel()

		result := protocol.PodcastResult{SessionID: req.SessionID}
		track, err := s.assembler.Assemble(ctx, req.Lines)
		if err != nil {
			s.logger.Warn("podcast assembly failed", slogError(err))
			result.Error = err.Error()
		} else {
			result.TrackURL = track.URL
			result.DurationSeconds = track.DurationSeconds
			result.Segments = track.Segments
		}

		data, err := json.Marshal(result)
		if err != nil {
			s.logger.Warn("failed to marshal podcast result", slogError(err))
			return
		}
		if err := msg.Respond(data); err != nil {
			s.logger.Warn("failed to reply to podcast request", slogError(err))
		}
	}()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
