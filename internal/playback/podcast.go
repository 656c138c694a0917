package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/fault"
	"github.com/fluentlabs/speaksim/internal/media"
	"github.com/fluentlabs/speaksim/internal/session"
	"github.com/fluentlabs/speaksim/internal/transport"
)

// ErrAssemblySuperseded reports that an assembly finished after the
// controller stopped caring about it.
var ErrAssemblySuperseded = errors.New("assembly superseded")

// Assembler renders the full dialogue into one track.
type Assembler interface {
	AssemblePodcast(ctx context.Context, sessionID string, lines []dialogue.Line) (transport.TrackInfo, error)
}

// Snapshot is the externally visible podcast state. Labels are
// preformatted so every consumer renders positions identically.
type Snapshot struct {
	TrackURL      string  `json:"track_url"`
	Assembling    bool    `json:"assembling"`
	Playing       bool    `json:"playing"`
	Position      float64 `json:"position"`
	Duration      float64 `json:"duration"`
	PositionLabel string  `json:"position_label"`
	DurationLabel string  `json:"duration_label"`
	Segments      int     `json:"segments"`
}

// PodcastController owns the assembled track and its transport state.
// It holds at most one track; reassembly replaces it. A failed assembly
// leaves the controller empty rather than pointing at a stale track.
// Position and duration mirror the player's events; transport commands
// update state optimistically and let the events reconcile.
type PodcastController struct {
	store  *session.Store
	asm    Assembler
	player media.Player
	logger *slog.Logger

	mu         sync.Mutex
	epoch      uint64
	assembling bool
	trackURL   string
	segments   int
	duration   float64
	hasMeta    bool
	position   float64
	playing    bool
	onFailed   func(err error)
}

func NewPodcastController(store *session.Store, asm Assembler, player media.Player, log *slog.Logger) *PodcastController {
	return &PodcastController{
		store:  store,
		asm:    asm,
		player: player,
		logger: log.With(slog.String("component", "podcast-playback")),
	}
}

// SetFailureNotifier registers the hook invoked when assembly or
// playback fails. Must be set before the first assemble.
func (c *PodcastController) SetFailureNotifier(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailed = fn
}

// Snapshot returns the current podcast state.
func (c *PodcastController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		TrackURL:      c.trackURL,
		Assembling:    c.assembling,
		Playing:       c.playing,
		Position:      c.position,
		Duration:      c.duration,
		PositionLabel: FormatTime(c.position),
		DurationLabel: FormatTime(c.duration),
		Segments:      c.segments,
	}
}

// Assemble renders the session's dialogue into a track and binds it
// paused at position zero. An empty dialogue is rejected before any
// request. On failure the controller returns to the empty state; no
// previous track survives a failed reassembly.
func (c *PodcastController) Assemble(ctx context.Context) error {
	lines := c.store.Dialogue()
	if len(lines) == 0 {
		return fault.Validation("no dialogue to assemble")
	}

	c.mu.Lock()
	if c.assembling {
		c.mu.Unlock()
		return fault.Validation("a podcast is already being assembled")
	}
	c.assembling = true
	c.epoch++
	requestEpoch := c.epoch
	c.mu.Unlock()

	track, err := c.asm.AssemblePodcast(ctx, c.store.ID(), lines)

	c.mu.Lock()
	if requestEpoch != c.epoch {
		c.mu.Unlock()
		c.logger.Info("discarding superseded assembly result")
		return ErrAssemblySuperseded
	}
	c.assembling = false
	if err != nil {
		c.resetLocked()
		notify := c.onFailed
		c.mu.Unlock()
		c.player.Close()
		c.logger.Warn("podcast assembly failed", slog.String("error", err.Error()))
		if notify != nil {
			notify(err)
		}
		return err
	}

	c.trackURL = track.URL
	c.segments = track.Segments
	c.duration = 0
	c.hasMeta = false
	c.position = 0
	c.playing = false
	events := c.trackEvents(requestEpoch)
	c.mu.Unlock()

	c.player.Load(track.URL, events)
	c.logger.Info("podcast assembled",
		slog.String("track", track.URL),
		slog.Int("segments", track.Segments))
	return nil
}

// trackEvents builds the event subscription for one bound track. Every
// callback checks the epoch so events from a replaced track are inert.
func (c *PodcastController) trackEvents(epoch uint64) media.Events {
	return media.Events{
		OnTimeUpdate: func(position float64) {
			c.mu.Lock()
			if epoch == c.epoch {
				c.position = position
			}
			c.mu.Unlock()
		},
		OnMetadata: func(duration float64) {
			c.mu.Lock()
			if epoch == c.epoch {
				c.duration = duration
				c.hasMeta = true
			}
			c.mu.Unlock()
		},
		OnEnded: func() {
			c.mu.Lock()
			if epoch == c.epoch {
				c.playing = false
				if c.hasMeta {
					c.position = c.duration
				}
			}
			c.mu.Unlock()
		},
		OnError: func(err error) {
			c.mu.Lock()
			if epoch != c.epoch {
				c.mu.Unlock()
				return
			}
			c.playing = false
			track := c.trackURL
			notify := c.onFailed
			c.mu.Unlock()
			c.logger.Warn("podcast playback failed",
				slog.String("track", track),
				slog.String("error", err.Error()))
			if notify != nil {
				notify(fault.Playback(track, err))
			}
		},
	}
}

// TogglePlayPause flips between playing and paused. Without a bound
// track it does nothing. The flag flips before the player confirms.
func (c *PodcastController) TogglePlayPause() {
	c.mu.Lock()
	if c.trackURL == "" {
		c.mu.Unlock()
		return
	}
	c.playing = !c.playing
	play := c.playing
	c.mu.Unlock()

	if play {
		c.player.Play()
	} else {
		c.player.Pause()
	}
}

// Seek jumps to the given position, clamped to [0, duration]. Before
// metadata arrives the known duration is zero, so every seek clamps to
// the start. Without a bound track it does nothing.
func (c *PodcastController) Seek(seconds float64) {
	c.mu.Lock()
	if c.trackURL == "" {
		c.mu.Unlock()
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > c.duration {
		seconds = c.duration
	}
	c.position = seconds
	c.mu.Unlock()

	c.player.Seek(seconds)
}

func (c *PodcastController) resetLocked() {
	c.trackURL = ""
	c.segments = 0
	c.duration = 0
	c.hasMeta = false
	c.position = 0
	c.playing = false
}

// Teardown unbinds the track and discards any late events or assembly
// results.
func (c *PodcastController) Teardown() {
	c.mu.Lock()
	c.epoch++
	c.assembling = false
	c.resetLocked()
	c.mu.Unlock()
	c.player.Close()
}
