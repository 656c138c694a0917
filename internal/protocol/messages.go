// Package protocol defines the JSON messages exchanged over the bus
// between the playback core and the generation, synthesis, and assembly
// services. These are the transport-boundary contracts; the core never
// depends on how a service produces its reply.
package protocol

import (
	"time"
)

// Role identifies which side of the exam a line belongs to. The role
// decides the synthesized voice downstream.
type Role string

const (
	RoleExaminer  Role = "EXAMINER"
	RoleCandidate Role = "CANDIDATE"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleExaminer || r == RoleCandidate
}

// Line is one turn of speech. Index order within a dialogue is the stable
// identity used for per-line playback state and is never reordered.
type Line struct {
	Speaker Role   `json:"speaker"`
	Text    string `json:"text"`
}

// DialogueRequest asks the generation service for a full interview.
type DialogueRequest struct {
	SessionID  string    `json:"session_id"`
	Topic      string    `json:"topic"`
	Difficulty string    `json:"difficulty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DialogueResult carries the generated lines, or an error message when
// generation failed. Exactly one of Lines/Error is meaningful.
type DialogueResult struct {
	SessionID string          `json:"session_id"`
	Lines     []Line `json:"lines"`
	Error     string `json:"error,omitempty"`
}

// SpeechRequest asks the synthesis service to render one line of text.
type SpeechRequest struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Voice     string    `json:"voice"`
	Timestamp time.Time `json:"timestamp"`
}

// SpeechResult references the synthesized audio by an opaque URL path
// resolvable by the media primitive.
type SpeechResult struct {
	SessionID string `json:"session_id"`
	AudioURL  string `json:"audio_url"`
	Error     string `json:"error,omitempty"`
}

// PodcastRequest asks the assembly service to render a whole dialogue
// into a single track.
type PodcastRequest struct {
	SessionID string          `json:"session_id"`
	Lines     []Line    `json:"lines"`
	Timestamp time.Time `json:"timestamp"`
}

// PodcastResult references the assembled track. Duration is an estimate;
// the authoritative value is reported by the media primitive once
// metadata loads.
type PodcastResult struct {
	SessionID       string  `json:"session_id"`
	TrackURL        string  `json:"track_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	Segments        int     `json:"segments"`
	Error           string  `json:"error,omitempty"`
}

const (
	SubjectDialogueGenerate = "dialogue.generate"
	SubjectSpeechSynthesize = "speech.synthesize"
	SubjectPodcastAssemble  = "podcast.assemble"
)
