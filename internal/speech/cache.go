package speech

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

type cachedSynth struct {
	inner Synthesizer
	cache *gocache.Cache
}

// WithCache memoizes synthesis results by (text, voice) for ttl. The
// same line replayed, or shared between line playback and podcast
// assembly, is rendered once.
func WithCache(inner Synthesizer, ttl time.Duration) Synthesizer {
	return &cachedSynth{
		inner: inner,
		cache: gocache.New(ttl, ttl),
	}
}

func (c *cachedSynth) Synthesize(ctx context.Context, text, voice string) (Clip, error) {
	key := voice + "\x00" + text
	if hit, ok := c.cache.Get(key); ok {
		return hit.(Clip), nil
	}
	clip, err := c.inner.Synthesize(ctx, text, voice)
	if err != nil {
		return Clip{}, err
	}
	c.cache.SetDefault(key, clip)
	return clip, nil
}

type limitedSynth struct {
	inner   Synthesizer
	limiter *rate.Limiter
}

// WithRateLimit bounds how often the underlying engine is hit. A
// requestsPerMinute <= 0 disables the limiter.
func WithRateLimit(inner Synthesizer, requestsPerMinute int) Synthesizer {
	if requestsPerMinute <= 0 {
		return inner
	}
	return &limitedSynth{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(1, requestsPerMinute/10)),
	}
}

func (l *limitedSynth) Synthesize(ctx context.Context, text, voice string) (Clip, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Clip{}, err
	}
	return l.inner.Synthesize(ctx, text, voice)
}
