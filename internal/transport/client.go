// Package transport is the request/reply boundary the playback core
// depends on. The core only sees the three operations below; whether a
// reply comes late, not at all, or after the caller stopped caring is
// absorbed here and surfaced as a TransportError.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/fluentlabs/speaksim/internal/bus"
	"github.com/fluentlabs/speaksim/internal/dialogue"
	"github.com/fluentlabs/speaksim/internal/fault"
	"github.com/fluentlabs/speaksim/internal/protocol"
	"github.com/fluentlabs/speaksim/internal/speech"
)

// TrackInfo is the assembly result handed to the podcast controller.
type TrackInfo struct {
	URL             string
	DurationSeconds float64
	Segments        int
}

// Client bridges controller calls onto bus request/reply.
type Client struct {
	bus    *bus.Client
	voices speech.VoicePicker
}

func NewClient(busClient *bus.Client, voices speech.VoicePicker) *Client {
	return &Client{bus: busClient, voices: voices}
}

// GenerateDialogue requests a full interview for the topic.
func (c *Client) GenerateDialogue(ctx context.Context, sessionID, topic, difficulty string) ([]dialogue.Line, error) {
	req := protocol.DialogueRequest{
		SessionID:  sessionID,
		Topic:      topic,
		Difficulty: difficulty,
		Timestamp:  time.Now().UTC(),
	}
	var result protocol.DialogueResult
	if err := c.bus.RequestJSON(ctx, protocol.SubjectDialogueGenerate, req, &result); err != nil {
		return nil, fault.Transport("generate dialogue", err)
	}
	if result.Error != "" {
		return nil, fault.Transport("generate dialogue", errors.New(result.Error))
	}
	return result.Lines, nil
}

// SynthesizeLine renders one line, picking the voice from the role.
func (c *Client) SynthesizeLine(ctx context.Context, sessionID, text string, role dialogue.Role) (string, error) {
	req := protocol.SpeechRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     c.voices.VoiceFor(role),
		Timestamp: time.Now().UTC(),
	}
	var result protocol.SpeechResult
	if err := c.bus.RequestJSON(ctx, protocol.SubjectSpeechSynthesize, req, &result); err != nil {
		return "", fault.Transport("synthesize line", err)
	}
	if result.Error != "" {
		return "", fault.Transport("synthesize line", errors.New(result.Error))
	}
	return result.AudioURL, nil
}

// AssemblePodcast renders the dialogue into one track.
func (c *Client) AssemblePodcast(ctx context.Context, sessionID string, lines []dialogue.Line) (TrackInfo, error) {
	req := protocol.PodcastRequest{
		SessionID: sessionID,
		Lines:     lines,
		Timestamp: time.Now().UTC(),
	}
	var result protocol.PodcastResult
	if err := c.bus.RequestJSON(ctx, protocol.SubjectPodcastAssemble, req, &result); err != nil {
		return TrackInfo{}, fault.Transport("assemble podcast", err)
	}
	if result.Error != "" {
		return TrackInfo{}, fault.Transport("assemble podcast", errors.New(result.Error))
	}
	return TrackInfo{
		URL:             result.TrackURL,
		DurationSeconds: result.DurationSeconds,
		Segments:        result.Segments,
	}, nil
}
