package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/fault"
	"github.com/fluentlabs/speaksim/internal/media"
	"github.com/fluentlabs/speaksim/internal/session"
)

const lineSynthTimeout = 45 * time.Second

// LineSynthesizer resolves one dialogue line into a playable audio URL.
type LineSynthesizer interface {
	SynthesizeLine(ctx context.Context, sessionID, text string, role dialogue.Role) (string, error)
}

// PlayerFactory produces a fresh media player per rendered line.
type PlayerFactory func() media.Player

// LineController plays individual dialogue lines on demand. The active
// marker moves to the triggered line immediately, before synthesis
// resolves; audio already playing for an earlier line is not stopped,
// its events simply stop mattering. Exactly one line is marked active
// at a time, or none.
type LineController struct {
	store     *session.Store
	synth     LineSynthesizer
	newPlayer PlayerFactory
	logger    *slog.Logger

	mu       sync.Mutex
	active   int
	token    uint64
	player   media.Player
	onFailed func(index int, err error)
}

func NewLineController(store *session.Store, synth LineSynthesizer, factory PlayerFactory, log *slog.Logger) *LineController {
	return &LineController{
		store:     store,
		synth:     synth,
		newPlayer: factory,
		logger:    log.With(slog.String("component", "line-playback")),
		active:    -1,
	}
}

// SetFailureNotifier registers the hook invoked when a triggered line
// fails to synthesize or play. Must be set before the first trigger.
func (c *LineController) SetFailureNotifier(fn func(index int, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailed = fn
}

// ActiveIndex returns the index of the line marked active, or -1.
func (c *LineController) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Trigger starts playback for the line at index. Triggering the line
// that is already active is a no-op; no second synthesis request is
// issued. Triggering a different line reassigns the active marker at
// once and invalidates any in-flight render for the previous line.
func (c *LineController) Trigger(index int) error {
	line, ok := c.store.Line(index)
	if !ok {
		return fault.Validation("no dialogue line at index %d", index)
	}

	c.mu.Lock()
	if c.active == index {
		c.mu.Unlock()
		return nil
	}
	c.active = index
	c.token++
	token := c.token
	c.mu.Unlock()

	go c.render(token, index, line)
	return nil
}

func (c *LineController) render(token uint64, index int, line dialogue.Line) {
	ctx, cancel := context.WithTimeout(context.Background(), lineSynthTimeout)
	defer cancel()

	url, err := c.synth.SynthesizeLine(ctx, c.store.ID(), line.Text, line.Speaker)

	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.active = -1
		notify := c.onFailed
		c.mu.Unlock()
		c.logger.Warn("line synthesis failed",
			slog.Int("index", index),
			slog.String("error", err.Error()))
		if notify != nil {
			notify(index, err)
		}
		return
	}
	player := c.newPlayer()
	c.player = player
	c.mu.Unlock()

	player.Load(url, media.Events{
		OnEnded: func() { c.deactivate(token) },
		OnError: func(perr error) { c.fail(token, index, fault.Playback(url, perr)) },
	})
	player.Play()
}

// deactivate clears the active marker if token still owns it.
func (c *LineController) deactivate(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == c.token {
		c.active = -1
	}
}

func (c *LineController) fail(token uint64, index int, err error) {
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	c.active = -1
	notify := c.onFailed
	c.mu.Unlock()
	c.logger.Warn("line playback failed",
		slog.Int("index", index),
		slog.String("error", err.Error()))
	if notify != nil {
		notify(index, err)
	}
}

// Teardown invalidates all outstanding renders and closes the current
// player. Late events from before the teardown are discarded.
func (c *LineController) Teardown() {
	c.mu.Lock()
	c.token++
	c.active = -1
	player := c.player
	c.player = nil
	c.mu.Unlock()
	if player != nil {
		player.Close()
	}
}
