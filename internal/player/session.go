package player

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"driftdj/internal/core"
	"driftdj/internal/queue"
)

// State is the playback session state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// prevRestartAfter is how far into a track Prev restarts it instead of
// stepping back in the queue.
const prevRestartAfter = 3 * time.Second

// StreamLocator builds the streamable URL for a track.
type StreamLocator interface {
	StreamURL(trackID string) string
}

// Metrics counts playback outcomes. The control server provides the
// Prometheus-backed implementation.
type Metrics interface {
	RecordTrackPlayed()
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordTrackPlayed() {}

// Status is a point-in-time view of the session for control surfaces.
type Status struct {
	State       State
	Track       *core.Track
	Position    time.Duration
	Duration    time.Duration
	WantsToPlay bool
}

// Session drives one audio output from the playback queue. Play intent is
// tracked separately from actual playback because loading a stream is
// asynchronous and races with rapid skips; a readiness signal re-attempts
// play only while the intent still holds. End-of-track, decode failure and
// stall all resolve the same way: progress the queue, never retry the same
// resource.
type Session struct {
	audio        Audio
	queue        *queue.Controller
	prefs        core.PrefStore
	streams      StreamLocator
	logger       *zap.Logger
	metrics      Metrics
	stallTimeout time.Duration
	preload      bool

	mutex       sync.Mutex
	state       State
	wantsToPlay bool
	current     *core.Track
	generation  uint64
	recorded    bool
	stallTimer  *time.Timer
}

// NewSession creates a session over the given audio output and queue. When
// preload is false the upcoming track is not buffered ahead of time. A nil
// metrics falls back to NopMetrics.
func NewSession(audio Audio, q *queue.Controller, prefs core.PrefStore, streams StreamLocator, stallTimeout time.Duration, preload bool, metrics Metrics, logger *zap.Logger) *Session {
	if stallTimeout <= 0 {
		stallTimeout = time.Duration(core.DefaultStallTimeoutSecs) * time.Second
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Session{
		audio:        audio,
		queue:        q,
		prefs:        prefs,
		streams:      streams,
		logger:       logger,
		metrics:      metrics,
		stallTimeout: stallTimeout,
		preload:      preload,
		state:        StateIdle,
	}
}

// Run consumes audio events until the context is cancelled.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.mutex.Lock()
			s.cancelStallLocked()
			s.mutex.Unlock()
			return ctx.Err()
		case ev, ok := <-s.audio.Events():
			if !ok {
				return nil
			}
			s.handleEvent(ev)
		}
	}
}

// StartCurrent begins playback of the queue's current track. With an empty
// queue the session goes idle.
func (s *Session) StartCurrent() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.wantsToPlay = true
	s.loadLocked(s.queue.Current())
}

// Play resumes playback, or starts the current queue track when idle.
func (s *Session) Play() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.wantsToPlay = true
	switch s.state {
	case StatePaused:
		s.state = StatePlaying
		s.audio.Play()
	case StateIdle:
		s.loadLocked(s.queue.Current())
	default:
		// Loading: the readiness signal will start playback.
	}
}

// Pause suspends playback and clears the play intent.
func (s *Session) Pause() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.wantsToPlay = false
	s.cancelStallLocked()
	if s.state == StatePlaying {
		s.state = StatePaused
		s.audio.Pause()
	}
}

// Skip advances to the next queued track, keeping the play intent.
func (s *Session) Skip() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.wantsToPlay = true
	s.loadLocked(s.queue.Next())
}

// Prev restarts the current track when more than a few seconds in,
// otherwise steps back in the queue.
func (s *Session) Prev() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if pos, _ := s.audio.Position(); pos > prevRestartAfter && s.current != nil {
		s.audio.SeekFraction(0)
		return
	}
	s.wantsToPlay = true
	s.loadLocked(s.queue.Prev())
}

// Stop ends playback and goes idle.
func (s *Session) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.wantsToPlay = false
	s.cancelStallLocked()
	s.audio.Pause()
	s.current = nil
	s.state = StateIdle
	s.generation++
}

// BlockCurrentTrack blocks the playing track and advances.
func (s *Session) BlockCurrentTrack() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.wantsToPlay = true
	s.loadLocked(s.queue.BlockCurrentTrack())
}

// BlockCurrentArtist blocks the playing track's artist and advances.
func (s *Session) BlockCurrentArtist() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.wantsToPlay = true
	s.loadLocked(s.queue.BlockCurrentArtist())
}

// SeekFraction jumps to a fraction of the track. A no-op while the duration
// is unknown.
func (s *Session) SeekFraction(frac float64) {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	if _, total := s.audio.Position(); total <= 0 {
		return
	}
	s.audio.SeekFraction(frac)
}

// Status reports the session state.
func (s *Session) Status() Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	pos, total := s.audio.Position()
	return Status{
		State:       s.state,
		Track:       s.current,
		Position:    pos,
		Duration:    total,
		WantsToPlay: s.wantsToPlay,
	}
}

func (s *Session) handleEvent(ev Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch ev.Kind {
	case EventCanPlay:
		s.cancelStallLocked()
		if s.wantsToPlay && s.state != StatePlaying {
			s.audio.Play()
		}
	case EventPlaying:
		s.cancelStallLocked()
		s.state = StatePlaying
		if s.current != nil && !s.recorded {
			s.prefs.AddRecentlyPlayed(s.current.ID)
			s.metrics.RecordTrackPlayed()
			s.recorded = true
		}
		s.preloadNextLocked()
	case EventWaiting:
		if s.wantsToPlay {
			s.armStallLocked()
		}
	case EventEnded:
		s.wantsToPlay = true
		s.loadLocked(s.queue.Next())
	case EventFailed:
		s.logger.Warn("Playback failed, skipping",
			zap.String("track_id", s.currentID()),
			zap.Error(ev.Err))
		s.wantsToPlay = true
		s.loadLocked(s.queue.Next())
	}
}

// loadLocked replaces the playing resource. A nil track empties the session.
func (s *Session) loadLocked(track *core.Track) {
	s.cancelStallLocked()
	s.generation++
	s.recorded = false

	if track == nil {
		s.audio.Pause()
		s.current = nil
		s.state = StateIdle
		s.wantsToPlay = false
		return
	}

	s.current = track
	s.state = StateLoading
	s.audio.Load(s.streams.StreamURL(track.ID))
	if s.wantsToPlay {
		s.audio.Play()
	}
}

// armStallLocked starts the stall timer for the current load. If playback
// has not resumed when it fires and the session still intends to play, the
// queue progresses. The generation check makes the skip fire at most once
// per load.
func (s *Session) armStallLocked() {
	if s.stallTimer != nil {
		return
	}
	generation := s.generation
	s.stallTimer = time.AfterFunc(s.stallTimeout, func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		if s.generation != generation || !s.wantsToPlay || s.state == StatePlaying {
			return
		}
		s.logger.Warn("Playback stalled, skipping",
			zap.String("track_id", s.currentID()),
			zap.Duration("timeout", s.stallTimeout))
		s.stallTimer = nil
		s.loadLocked(s.queue.Next())
	})
}

func (s *Session) cancelStallLocked() {
	if s.stallTimer != nil {
		s.stallTimer.Stop()
		s.stallTimer = nil
	}
}

func (s *Session) preloadNextLocked() {
	if !s.preload {
		return
	}
	next := s.queue.PeekNext()
	if next == nil {
		return
	}
	s.audio.Preload(s.streams.StreamURL(next.ID))
}

func (s *Session) currentID() string {
	if s.current == nil {
		return ""
	}
	return s.current.ID
}
