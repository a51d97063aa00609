// Package queue owns the playback queue: cursor movement with artist
// diversity, block operations and background refill from the track source.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"driftdj/internal/core"
	"driftdj/internal/store"
)

const (
	// refillLowWater is the unplayed-item count below which a background
	// refill is requested.
	refillLowWater = 5
	// diversityLookAhead bounds how many entries beyond the immediate next
	// one are inspected when picking a track by a different artist.
	diversityLookAhead = 5

	refillInterval = 30 * time.Second
)

// Source supplies replacement batches for the active session.
type Source interface {
	FetchVibeBatch(ctx context.Context, vibeName string) ([]core.Track, error)
	FetchRandomMix(ctx context.Context) ([]core.Track, error)
}

// Controller is the playback queue. All cursor operations are synchronous;
// refill happens on the Run loop and only ever appends, so the cursor never
// moves under a caller.
type Controller struct {
	source Source
	prefs  core.PrefStore
	seen   *store.SeenSet
	logger *zap.Logger
	wakeup chan struct{}

	mutex      sync.Mutex
	vibe       string
	tracks     []core.Track
	cursor     int
	lastArtist string
	generation uint64
}

// NewController creates an empty queue controller.
func NewController(source Source, prefs core.PrefStore, seen *store.SeenSet, logger *zap.Logger) *Controller {
	return &Controller{
		source: source,
		prefs:  prefs,
		seen:   seen,
		logger: logger,
		wakeup: make(chan struct{}, 1),
	}
}

// Load replaces the queue with a fresh batch for the given vibe. The seen
// set is reset so the new session starts clean.
func (c *Controller) Load(vibeName string, tracks []core.Track) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.vibe = vibeName
	c.tracks = make([]core.Track, len(tracks))
	copy(c.tracks, tracks)
	c.cursor = 0
	c.generation++

	c.seen.Clear()
	for _, t := range c.tracks {
		c.seen.Add(t.ID)
	}

	if len(c.tracks) > 0 {
		c.lastArtist = c.tracks[0].Artist.Handle
	} else {
		c.lastArtist = ""
	}
}

// Current returns the track under the cursor, or nil when the queue is
// empty or exhausted. Callers treat nil as "queue empty", not an error.
func (c *Controller) Current() *core.Track {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.currentLocked()
}

// Next advances the cursor, preferring the nearest upcoming track by a
// different artist than the previous one within the look-ahead window. When
// every inspected entry shares the artist it falls through to the immediate
// next track rather than stalling. A refill is requested when the unplayed
// remainder runs low.
func (c *Controller) Next() *core.Track {
	c.mutex.Lock()
	c.advanceLocked()
	track := c.currentLocked()
	low := len(c.tracks)-c.cursor-1 < refillLowWater
	c.mutex.Unlock()

	if low {
		c.requestRefill()
	}
	return track
}

// Prev steps the cursor back one entry, clamped at the start of the list.
// Diversity logic is not consulted.
func (c *Controller) Prev() *core.Track {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cursor > 0 {
		c.cursor--
	}
	if cur := c.currentLocked(); cur != nil {
		c.lastArtist = cur.Artist.Handle
		return cur
	}
	return nil
}

// PeekNext returns the entry immediately after the cursor without moving
// it, for preloading.
func (c *Controller) PeekNext() *core.Track {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cursor+1 >= len(c.tracks) {
		return nil
	}
	t := c.tracks[c.cursor+1]
	return &t
}

// Remaining returns the number of unplayed entries after the cursor.
func (c *Controller) Remaining() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := len(c.tracks) - c.cursor - 1
	if n < 0 {
		return 0
	}
	return n
}

// BlockCurrentTrack persists the current track into the block list and
// advances.
func (c *Controller) BlockCurrentTrack() *core.Track {
	c.mutex.Lock()
	cur := c.currentLocked()
	c.mutex.Unlock()

	if cur != nil {
		c.prefs.BlockTrack(cur.ID)
	}
	return c.Next()
}

// BlockCurrentArtist persists the current track's artist into the block
// list, purges every queued track by that artist, and advances onto the
// next remaining track.
func (c *Controller) BlockCurrentArtist() *core.Track {
	c.mutex.Lock()
	cur := c.currentLocked()
	if cur == nil {
		c.mutex.Unlock()
		return nil
	}
	handle := cur.Artist.Handle
	c.purgeArtistLocked(handle)
	track := c.currentLocked()
	low := len(c.tracks)-c.cursor-1 < refillLowWater
	c.mutex.Unlock()

	c.prefs.BlockArtist(handle)
	if low {
		c.requestRefill()
	}
	return track
}

// Run services background refill requests until the context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(refillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wakeup:
		case <-ticker.C:
		}
		c.refillIfLow(ctx)
	}
}

func (c *Controller) requestRefill() {
	select {
	case c.wakeup <- struct{}{}:
	default:
	}
}

func (c *Controller) refillIfLow(ctx context.Context) {
	c.mutex.Lock()
	vibe := c.vibe
	generation := c.generation
	remaining := len(c.tracks) - c.cursor - 1
	c.mutex.Unlock()

	if vibe == "" || remaining >= refillLowWater {
		return
	}

	var batch []core.Track
	var err error
	if _, ok := core.Vibes[vibe]; ok {
		batch, err = c.source.FetchVibeBatch(ctx, vibe)
	} else if vibe == "random" {
		batch, err = c.source.FetchRandomMix(ctx)
	} else {
		// Seeded radio sessions are one-shot; refilling them with another
		// mode's tracks would change the session's character.
		c.logger.Debug("No refill strategy for session",
			zap.String("session", vibe))
		return
	}
	if err != nil {
		c.logger.Warn("Queue refill failed",
			zap.String("vibe", vibe),
			zap.Error(err))
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// The session changed while fetching; the batch belongs to the old one.
	if c.generation != generation {
		return
	}

	added := 0
	for _, t := range batch {
		if c.seen.Has(t.ID) {
			continue
		}
		c.seen.Add(t.ID)
		c.tracks = append(c.tracks, t)
		added++
	}
	c.logger.Debug("Queue refilled",
		zap.String("vibe", vibe),
		zap.Int("fetched", len(batch)),
		zap.Int("added", added),
		zap.Int("queue_len", len(c.tracks)))
}

func (c *Controller) currentLocked() *core.Track {
	if c.cursor < 0 || c.cursor >= len(c.tracks) {
		return nil
	}
	t := c.tracks[c.cursor]
	return &t
}

// advanceLocked moves the cursor to the preferred next entry: the first of
// the next 1+diversityLookAhead entries whose artist differs from the
// previous track's, falling back to the immediate next entry.
func (c *Controller) advanceLocked() {
	next := c.cursor + 1
	if next >= len(c.tracks) {
		c.cursor = len(c.tracks)
		return
	}

	chosen := next
	limit := next + diversityLookAhead
	if limit >= len(c.tracks) {
		limit = len(c.tracks) - 1
	}
	for i := next; i <= limit; i++ {
		if c.tracks[i].Artist.Handle != c.lastArtist {
			chosen = i
			break
		}
	}

	c.cursor = chosen
	c.lastArtist = c.tracks[chosen].Artist.Handle
}

// purgeArtistLocked removes every track by the artist. The cursor ends on
// the first remaining track at or after its old position.
func (c *Controller) purgeArtistLocked(handle string) {
	kept := make([]core.Track, 0, len(c.tracks))
	newCursor := -1
	for i, t := range c.tracks {
		if t.Artist.Handle == handle {
			continue
		}
		if i >= c.cursor && newCursor == -1 {
			newCursor = len(kept)
		}
		kept = append(kept, t)
	}

	c.tracks = kept
	switch {
	case newCursor >= 0:
		c.cursor = newCursor
	default:
		// Everything after the cursor was purged; the queue is exhausted.
		c.cursor = len(kept)
	}
	if cur := c.currentLocked(); cur != nil {
		c.lastArtist = cur.Artist.Handle
	}
}
