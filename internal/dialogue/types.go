// Package dialogue generates spoken-exam dialogues: ordered examiner and
// candidate turns produced from a topic and a difficulty level.
package dialogue

import (
	"context"
	"strings"

	"github.com/fluentlabs/speaksim/internal/protocol"
)

// Role identifies which side of the exam a line belongs to. The role
// decides the synthesized voice downstream. It lives in the protocol
// package so the wire types can reference it without a cycle.
type Role = protocol.Role

const (
	RoleExaminer  = protocol.RoleExaminer
	RoleCandidate = protocol.RoleCandidate
)

// Difficulty selects the target exam band for generated dialogue.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty normalizes s, falling back to intermediate for unknown
// values rather than failing the whole request.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyBeginner:
		return DifficultyBeginner
	case DifficultyAdvanced:
		return DifficultyAdvanced
	default:
		return DifficultyIntermediate
	}
}

// Line is one turn of speech. Index order within a dialogue is the stable
// identity used for per-line playback state and is never reordered.
type Line = protocol.Line

// Request describes a single dialogue generation.
type Request struct {
	SessionID  string
	Topic      string
	Difficulty Difficulty
}

// Generator is a pluggable dialogue backend.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Line, error)
}
