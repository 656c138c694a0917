package speech

import (
	"context"
	"fmt"
	"time"
)

type mockSynth struct{}

// NewMockSynth returns a synthesizer that fabricates a tiny payload
// without calling any TTS engine. Used in tests and development configs.
func NewMockSynth() Synthesizer { return &mockSynth{} }

func (m *mockSynth) Synthesize(ctx context.Context, text, voice string) (Clip, error) {
	select {
	case <-ctx.Done():
		return Clip{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	payload := fmt.Sprintf("mock-audio[voice=%s len=%d]", voice, len(text))
	return Clip{Audio: []byte(payload), Format: "mp3"}, nil
}
