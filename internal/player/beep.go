package player

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"go.uber.org/zap"
)

const speakerBufferLen = time.Second / 10

// BeepAudio plays mp3 streams through the system speaker. Each Load fetches
// the stream fully before decoding, so seeking is always sample-accurate;
// the buffering window surfaces as a Waiting signal, which gives the
// session's stall timer something to watch.
type BeepAudio struct {
	httpClient *http.Client
	logger     *zap.Logger
	events     chan Event

	mutex       sync.Mutex
	streamer    beep.StreamSeekCloser
	format      beep.Format
	ctrl        *beep.Ctrl
	speakerInit bool
	sampleRate  beep.SampleRate
	loadGen     uint64
	closed      bool

	preloadMutex sync.Mutex
	preloadURL   string
	preloadData  []byte
}

// NewBeepAudio creates a speaker-backed audio output.
func NewBeepAudio(timeout time.Duration, logger *zap.Logger) *BeepAudio {
	return &BeepAudio{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		events:     make(chan Event, 16),
	}
}

// Load replaces the playing resource with the stream at url. Fetch and
// decode happen off the caller's goroutine; readiness or failure arrive as
// events.
func (b *BeepAudio) Load(url string) {
	b.mutex.Lock()
	b.loadGen++
	generation := b.loadGen
	b.stopLocked()
	b.mutex.Unlock()

	b.emit(Event{Kind: EventWaiting})

	go func() {
		data, err := b.fetch(url)
		if err != nil {
			if b.currentGen() == generation {
				b.emit(Event{Kind: EventFailed, Err: err})
			}
			return
		}

		streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			if b.currentGen() == generation {
				b.emit(Event{Kind: EventFailed, Err: fmt.Errorf("failed to decode stream: %w", err)})
			}
			return
		}

		b.mutex.Lock()
		if b.loadGen != generation || b.closed {
			b.mutex.Unlock()
			_ = streamer.Close()
			return
		}

		b.streamer = streamer
		b.format = format
		// Re-init whenever the sample rate changes, otherwise the track
		// plays at the wrong speed.
		if !b.speakerInit || b.sampleRate != format.SampleRate {
			if err := speaker.Init(format.SampleRate, format.SampleRate.N(speakerBufferLen)); err != nil {
				b.mutex.Unlock()
				b.emit(Event{Kind: EventFailed, Err: fmt.Errorf("failed to init speaker: %w", err)})
				return
			}
			b.speakerInit = true
			b.sampleRate = format.SampleRate
		}

		b.ctrl = &beep.Ctrl{Streamer: streamer, Paused: true}
		ctrl := b.ctrl
		b.mutex.Unlock()

		speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
			if b.currentGen() == generation {
				b.emit(Event{Kind: EventEnded})
			}
		})))

		b.emit(Event{Kind: EventCanPlay})
	}()
}

// Play resumes the decoded stream. A Load still in flight is resumed by the
// readiness event instead.
func (b *BeepAudio) Play() {
	b.mutex.Lock()
	ctrl := b.ctrl
	b.mutex.Unlock()

	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = false
	speaker.Unlock()
	b.emit(Event{Kind: EventPlaying})
}

// Pause suspends output, keeping the position.
func (b *BeepAudio) Pause() {
	b.mutex.Lock()
	ctrl := b.ctrl
	b.mutex.Unlock()

	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = true
	speaker.Unlock()
}

// SeekFraction jumps to a fraction of the stream length.
func (b *BeepAudio) SeekFraction(frac float64) {
	b.mutex.Lock()
	streamer := b.streamer
	b.mutex.Unlock()

	if streamer == nil {
		return
	}
	speaker.Lock()
	target := int(frac * float64(streamer.Len()))
	if err := streamer.Seek(target); err != nil {
		b.logger.Debug("Seek failed", zap.Error(err))
	}
	speaker.Unlock()
}

// Position reports the playback position and total length.
func (b *BeepAudio) Position() (pos, total time.Duration) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.streamer == nil {
		return 0, 0
	}
	speaker.Lock()
	p := b.streamer.Position()
	l := b.streamer.Len()
	speaker.Unlock()
	return b.format.SampleRate.D(p), b.format.SampleRate.D(l)
}

// Preload fetches the stream into a single-entry cache so the next Load of
// the same URL starts warm. Failures are silent.
func (b *BeepAudio) Preload(url string) {
	go func() {
		b.preloadMutex.Lock()
		already := b.preloadURL == url
		b.preloadMutex.Unlock()
		if already {
			return
		}

		data, err := b.fetch(url)
		if err != nil {
			b.logger.Debug("Preload failed", zap.String("url", url), zap.Error(err))
			return
		}
		b.preloadMutex.Lock()
		b.preloadURL = url
		b.preloadData = data
		b.preloadMutex.Unlock()
	}()
}

// Events delivers playback signals.
func (b *BeepAudio) Events() <-chan Event {
	return b.events
}

// Close stops playback and releases the event channel.
func (b *BeepAudio) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.stopLocked()
	if b.speakerInit {
		speaker.Clear()
	}
	close(b.events)
	return nil
}

func (b *BeepAudio) fetch(url string) ([]byte, error) {
	b.preloadMutex.Lock()
	if b.preloadURL == url && b.preloadData != nil {
		data := b.preloadData
		b.preloadMutex.Unlock()
		return data, nil
	}
	b.preloadMutex.Unlock()

	resp, err := b.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	return data, nil
}

func (b *BeepAudio) currentGen() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.loadGen
}

func (b *BeepAudio) stopLocked() {
	if b.ctrl != nil && b.speakerInit {
		speaker.Clear()
	}
	if b.streamer != nil {
		_ = b.streamer.Close()
		b.streamer = nil
	}
	b.ctrl = nil
}

func (b *BeepAudio) emit(ev Event) {
	b.mutex.Lock()
	closed := b.closed
	b.mutex.Unlock()
	if closed {
		return
	}
	select {
	case b.events <- ev:
	default:
		// A stalled consumer loses this event rather than blocking the
		// audio path.
	}
}
