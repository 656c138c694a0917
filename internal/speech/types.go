// Package speech renders one line of dialogue text to an audio clip.
package speech

import (
	"context"

	"github.com/fluentlabs/speaksim/internal/config"
	"github.com/fluentlabs/speaksim/internal/dialogue"
)

// Clip is a fully rendered audio payload.
type Clip struct {
	Audio  []byte
	Format string // file extension, e.g. "mp3"
}

// Synthesizer is the contract for producing audio from text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Clip, error)
}

// VoicePicker derives the synthesized voice from the speaker role:
// the examiner and the candidate each get a fixed, distinct voice.
type VoicePicker struct {
	examiner  string
	candidate string
}

func NewVoicePicker(cfg config.SpeechConfig) VoicePicker {
	return VoicePicker{examiner: cfg.ExaminerVoice, candidate: cfg.CandidateVoice}
}

func (v VoicePicker) VoiceFor(role dialogue.Role) string {
	if role == dialogue.RoleExaminer {
		return v.examiner
	}
	return v.candidate
}
