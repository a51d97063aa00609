package player

import "time"

// NullAudio is a headless backend: every load is immediately playable and
// nothing ever makes a sound. Useful for running the control API without an
// audio device.
type NullAudio struct {
	events chan Event
}

func NewNullAudio() *NullAudio {
	return &NullAudio{events: make(chan Event, 16)}
}

func (na *NullAudio) Load(string) {
	na.emit(Event{Kind: EventCanPlay})
}

func (na *NullAudio) Play() {
	na.emit(Event{Kind: EventPlaying})
}

func (na *NullAudio) Pause() {}

func (na *NullAudio) SeekFraction(float64) {}

func (na *NullAudio) Position() (time.Duration, time.Duration) {
	return 0, 0
}

func (na *NullAudio) Preload(string) {}

func (na *NullAudio) Events() <-chan Event { return na.events }

func (na *NullAudio) Close() error { return nil }

func (na *NullAudio) emit(ev Event) {
	select {
	case na.events <- ev:
	default:
	}
}
