// Package podcast assembles a whole dialogue into one playable track.
package podcast

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fluentlabs/speaksim/internal/config"
	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/media"
	"github.com/fluentlabs/speaksim/internal/speech"
)

// Track describes an assembled podcast. DurationSeconds is estimated
// from text length; the media primitive reports the authoritative value
// once metadata loads.
type Track struct {
	URL             string
	DurationSeconds float64
	Segments        int
}

// Assembler renders every usable line with the synthesis engine and
// concatenates the clips in dialogue order into a single MP3 stream.
type Assembler struct {
	synth          speech.Synthesizer
	voices         speech.VoicePicker
	store          *media.Store
	maxConcurrency int
	secondsPerChar float64
	logger         *slog.Logger
}

func NewAssembler(cfg config.PodcastConfig, synth speech.Synthesizer, voices speech.VoicePicker, store *media.Store, log *slog.Logger) *Assembler {
	return &Assembler{
		synth:          synth,
		voices:         voices,
		store:          store,
		maxConcurrency: cfg.MaxConcurrency,
		secondsPerChar: cfg.SecondsPerChar,
		logger:         log.With(slog.String("component", "podcast-assembler")),
	}
}

// Assemble renders lines into one track. Lines reduced to fewer than
// three characters after stripping ellipses are skipped; if nothing
// remains the assembly fails without touching the store.
func (a *Assembler) Assemble(ctx context.Context, lines []dialogue.Line) (Track, error) {
	kept := usableLines(lines)
	if len(kept) == 0 {
		return Track{}, errors.New("dialogue has no synthesizable lines")
	}

	clips := make([][]byte, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)
	for i, line := range kept {
		g.Go(func() error {
			clip, err := a.synth.Synthesize(gctx, line.Text, a.voices.VoiceFor(line.Speaker))
			if err != nil {
				return err
			}
			clips[i] = clip.Audio
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Track{}, err
	}

	var track bytes.Buffer
	totalChars := 0
	for i, clip := range clips {
		track.Write(clip)
		totalChars += len(kept[i].Text)
	}

	url, err := a.store.Put("podcast_", "mp3", track.Bytes())
	if err != nil {
		return Track{}, err
	}
	duration := float64(totalChars) * a.secondsPerChar
	a.store.SetDuration(url, duration)

	a.logger.Info("podcast assembled",
		slog.String("track", url),
		slog.Int("segments", len(kept)),
		slog.Int("bytes", track.Len()),
		slog.Float64("estimated_duration_s", duration))

	return Track{URL: url, DurationSeconds: duration, Segments: len(kept)}, nil
}

func usableLines(lines []dialogue.Line) []dialogue.Line {
	var kept []dialogue.Line
	for _, line := range lines {
		text := strings.TrimSpace(strings.ReplaceAll(line.Text, "...", ""))
		if len(text) < 3 {
			continue
		}
		kept = append(kept, dialogue.Line{Speaker: line.Speaker, Text: text})
	}
	return kept
}
