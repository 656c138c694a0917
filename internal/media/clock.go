package media

import (
	"sync"
	"time"
)

const tickInterval = 250 * time.Millisecond

// ClockPlayer is the production Player for a headless deployment: it
// resolves a track's duration through the media store and advances the
// position against the wall clock while playing. Positions and events
// mirror what a real audio element would report.
type ClockPlayer struct {
	resolve func(url string) (float64, error)

	mu       sync.Mutex
	binding  uint64 // incremented on every Load/Close; stale goroutines check it
	url      string
	ev       Events
	duration float64
	hasMeta  bool
	position float64
	playing  bool
}

// NewClockPlayer builds a player that resolves track durations through
// resolve (typically Store.Duration wrapped in an error form).
func NewClockPlayer(resolve func(url string) (float64, error)) *ClockPlayer {
	return &ClockPlayer{resolve: resolve}
}

func (p *ClockPlayer) Load(url string, ev Events) {
	p.mu.Lock()
	p.binding++
	token := p.binding
	p.url = url
	p.ev = ev
	p.duration = 0
	p.hasMeta = false
	p.position = 0
	p.playing = false
	p.mu.Unlock()

	go func() {
		duration, err := p.resolve(url)
		p.mu.Lock()
		if token != p.binding {
			p.mu.Unlock()
			return
		}
		if err != nil {
			cb := p.ev.OnError
			p.mu.Unlock()
			if cb != nil {
				cb(err)
			}
			return
		}
		p.duration = duration
		p.hasMeta = true
		cb := p.ev.OnMetadata
		p.mu.Unlock()
		if cb != nil {
			cb(duration)
		}
	}()
}

func (p *ClockPlayer) Play() {
	p.mu.Lock()
	if p.url == "" || p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	token := p.binding
	p.mu.Unlock()

	go p.run(token)
}

func (p *ClockPlayer) run(token uint64) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	last := time.Now()
	for now := range ticker.C {
		elapsed := now.Sub(last).Seconds()
		last = now

		p.mu.Lock()
		if token != p.binding || !p.playing {
			p.mu.Unlock()
			return
		}
		p.position += elapsed
		ended := p.hasMeta && p.position >= p.duration
		if ended {
			p.position = p.duration
			p.playing = false
		}
		position := p.position
		onTime := p.ev.OnTimeUpdate
		onEnded := p.ev.OnEnded
		p.mu.Unlock()

		if onTime != nil {
			onTime(position)
		}
		if ended {
			if onEnded != nil {
				onEnded()
			}
			return
		}
	}
}

func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

func (p *ClockPlayer) Seek(seconds float64) {
	p.mu.Lock()
	if p.url == "" {
		p.mu.Unlock()
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if p.hasMeta && seconds > p.duration {
		seconds = p.duration
	}
	p.position = seconds
	position := p.position
	onTime := p.ev.OnTimeUpdate
	p.mu.Unlock()

	if onTime != nil {
		onTime(position)
	}
}

func (p *ClockPlayer) Close() {
	p.mu.Lock()
	p.binding++
	p.url = ""
	p.ev = Events{}
	p.playing = false
	p.mu.Unlock()
}
