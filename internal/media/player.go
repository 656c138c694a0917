package media

// Events is the subscription contract between a playback controller and
// the media primitive. All four callbacks are registered for the lifetime
// of one bound track; loading a new track or closing the player drops
// them, so a stale track can never mutate controller state through a
// callback that outlived its binding.
type Events struct {
	OnTimeUpdate func(position float64)
	OnMetadata   func(duration float64)
	OnEnded      func()
	OnError      func(err error)
}

// Player models a playable audio element bound to one track at a time.
// The core never decodes audio; it only drives this surface and reacts
// to its events.
type Player interface {
	// Load binds the player to a track and registers ev for its
	// lifetime. Metadata (duration) arrives asynchronously via
	// ev.OnMetadata; until then duration is unknown.
	Load(url string, ev Events)
	// Play starts or resumes playback. No-op before Load.
	Play()
	// Pause suspends playback, keeping the current position.
	Pause()
	// Seek jumps to the given position in seconds. Values outside
	// [0, duration] are clamped.
	Seek(seconds float64)
	// Close unbinds the current track and deregisters its callbacks.
	Close()
}
