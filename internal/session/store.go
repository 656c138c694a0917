// Package session owns the live exam-simulation session: the user's
// topic/difficulty selection, the generated dialogue, and the
// coordinator driving the generation request lifecycle.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fluentlabs/speaksim/internal/dialogue"
)

// Store holds the current selection and dialogue. Pure state, no I/O;
// it is shared by reference with every controller and torn down with
// the session. The dialogue is replaced wholesale on each successful
// generation; line indexes are the stable identity for playback state.
type Store struct {
	mu         sync.Mutex
	id         string
	topic      string
	difficulty dialogue.Difficulty
	lines      []dialogue.Line
}

func NewStore() *Store {
	return &Store{
		id:         uuid.New().String(),
		difficulty: dialogue.DifficultyIntermediate,
	}
}

func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetSelection records the topic and difficulty as entered. No
// validation happens here; the coordinator validates at request time,
// because the value at request-send time is what is sent.
func (s *Store) SetSelection(topic, difficulty string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
	s.difficulty = dialogue.ParseDifficulty(difficulty)
}

func (s *Store) Selection() (string, dialogue.Difficulty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic, s.difficulty
}

// SetDialogue replaces the dialogue wholesale. An empty slice is a
// valid dialogue with no renderable lines.
func (s *Store) SetDialogue(lines []dialogue.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append([]dialogue.Line(nil), lines...)
}

// Dialogue returns a copy of the current lines.
func (s *Store) Dialogue() []dialogue.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dialogue.Line(nil), s.lines...)
}

// Line returns the line at index, if it exists.
func (s *Store) Line(index int) (dialogue.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.lines) {
		return dialogue.Line{}, false
	}
	return s.lines[index], true
}

func (s *Store) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}
