// Package player implements the playback session: the state machine driving
// a single audio output, stall recovery and queue progression.
package player

import "time"

// EventKind identifies a playback signal from the audio backend.
type EventKind int

const (
	// EventCanPlay fires when enough of the resource is buffered to start.
	EventCanPlay EventKind = iota
	// EventPlaying fires when audible playback begins or resumes.
	EventPlaying
	// EventWaiting fires when playback pauses to buffer.
	EventWaiting
	// EventEnded fires at the natural end of the resource.
	EventEnded
	// EventFailed fires when the resource cannot be loaded or decoded.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventCanPlay:
		return "canplay"
	case EventPlaying:
		return "playing"
	case EventWaiting:
		return "waiting"
	case EventEnded:
		return "ended"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one playback signal.
type Event struct {
	Kind EventKind
	Err  error
}

// Audio is a single playable output channel. Load replaces the current
// resource asynchronously; readiness and failures arrive on Events. The
// channel is owned by the backend and closed on Close.
type Audio interface {
	// Load replaces the current resource with the given stream URL.
	Load(url string)
	// Play starts or resumes playback of the loaded resource.
	Play()
	// Pause suspends playback, keeping the position.
	Pause()
	// SeekFraction jumps to a fraction [0,1] of the total duration. A
	// backend without a known duration ignores the call.
	SeekFraction(frac float64)
	// Position reports the playback position and total duration; the total
	// is zero while unknown.
	Position() (pos, total time.Duration)
	// Preload warms the cache for the given URL. Failures are silent; the
	// next Load simply starts cold.
	Preload(url string)
	// Events delivers playback signals until Close.
	Events() <-chan Event
	// Close releases the output.
	Close() error
}
