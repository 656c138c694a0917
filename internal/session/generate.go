package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/fault"
)

// ErrSuperseded reports that a request completed after the session
// stopped caring about it: interest moved on, the result is dropped.
var ErrSuperseded = errors.New("request superseded")

// DialogueGenerator is the transport-boundary operation the coordinator
// depends on.
type DialogueGenerator interface {
	GenerateDialogue(ctx context.Context, sessionID, topic, difficulty string) ([]dialogue.Line, error)
}

// Coordinator drives the dialogue-generation request/response cycle
// against the Store. At most one request is in flight; the busy flag is
// observable so callers can disable the trigger. A response commits only
// if its request is still the current one for this session — late
// results for superseded requests are discarded rather than overwriting
// newer state.
type Coordinator struct {
	store  *Store
	gen    DialogueGenerator
	logger *slog.Logger

	mu    sync.Mutex
	busy  bool
	epoch uint64
}

func NewCoordinator(store *Store, gen DialogueGenerator, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		gen:    gen,
		logger: log.With(slog.String("component", "generation-coordinator")),
	}
}

// Busy reports whether a generation request is outstanding.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Generate validates the current selection, issues one generation
// request, and commits the resulting dialogue atomically. A blank topic
// is rejected before any network call. On failure the store is left
// unchanged and the busy flag clears; there is no automatic retry.
func (c *Coordinator) Generate(ctx context.Context) ([]dialogue.Line, error) {
	topic, difficulty := c.store.Selection()
	if strings.TrimSpace(topic) == "" {
		return nil, fault.Validation("topic must not be empty")
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, fault.Validation("a dialogue is already being generated")
	}
	c.busy = true
	c.epoch++
	requestEpoch := c.epoch
	c.mu.Unlock()

	lines, err := c.gen.GenerateDialogue(ctx, c.store.ID(), topic, string(difficulty))

	c.mu.Lock()
	defer c.mu.Unlock()
	if requestEpoch != c.epoch {
		// a newer request owns this slot; drop the late result
		c.logger.Info("discarding superseded generation result")
		return nil, ErrSuperseded
	}
	c.busy = false
	if err != nil {
		c.logger.Warn("dialogue generation failed", slog.String("error", err.Error()))
		return nil, err
	}

	c.store.SetDialogue(lines)
	c.logger.Info("dialogue committed",
		slog.String("topic", topic),
		slog.String("difficulty", string(difficulty)),
		slog.Int("lines", len(lines)))
	return lines, nil
}

// Invalidate abandons interest in any outstanding request. Its eventual
// result will be discarded. Used when the session is torn down.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.busy = false
}
