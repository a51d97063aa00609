package filter

import (
	"fmt"
	"testing"
	"time"

	"driftdj/internal/core"
)

func lofiVibe() core.Vibe {
	return core.Vibe{
		Name:          "lofi",
		MaxDuration:   6 * time.Minute,
		AllowedGenres: []string{"Lo-Fi"},
	}
}

func emptyPrefs() core.PrefSnapshot {
	return core.PrefSnapshot{
		BlockedTracks:  map[string]struct{}{},
		BlockedArtists: map[string]struct{}{},
		Recent:         map[string]struct{}{},
	}
}

func TestPipeline_VibeBatch_DurationCap(t *testing.T) {
	p := New()
	tracks := []core.Track{
		{ID: "a", Duration: 200 * time.Second, Genre: "Lo-Fi"},
		{ID: "b", Duration: 400 * time.Second, Genre: "Lo-Fi"},
		{ID: "c", Duration: 150 * time.Second, Genre: "Lo-Fi"},
	}

	out := p.VibeBatch(tracks, lofiVibe(), emptyPrefs())

	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	for _, tr := range out {
		if tr.ID == "b" {
			t.Error("400s track should be excluded by the 360s cap")
		}
	}
}

func TestPipeline_VibeBatch_BlockLists(t *testing.T) {
	p := New()
	prefs := emptyPrefs()
	prefs.BlockedTracks["bad-track"] = struct{}{}
	prefs.BlockedArtists["loud_dj"] = struct{}{}

	tracks := []core.Track{
		{ID: "bad-track", Genre: "Lo-Fi", Duration: time.Minute},
		{ID: "ok", Genre: "Lo-Fi", Duration: time.Minute},
		{ID: "by-blocked", Genre: "Lo-Fi", Duration: time.Minute, Artist: core.Artist{Handle: "loud_dj"}},
	}

	out := p.VibeBatch(tracks, lofiVibe(), prefs)

	if len(out) != 1 || out[0].ID != "ok" {
		t.Errorf("out = %v, want only track ok", ids(out))
	}
}

func TestPipeline_VibeBatch_RecentlyPlayedExcluded(t *testing.T) {
	p := New()
	prefs := emptyPrefs()
	prefs.Recent["heard"] = struct{}{}

	tracks := []core.Track{
		{ID: "heard", Genre: "Lo-Fi", Duration: time.Minute},
		{ID: "new", Genre: "Lo-Fi", Duration: time.Minute},
	}

	out := p.VibeBatch(tracks, lofiVibe(), prefs)
	if len(out) != 1 || out[0].ID != "new" {
		t.Errorf("out = %v, want only track new", ids(out))
	}
}

func TestPipeline_VibeBatch_GenreAllowList(t *testing.T) {
	p := New()
	tracks := []core.Track{
		{ID: "a", Genre: "Lo-Fi", Duration: time.Minute},
		{ID: "b", Genre: "Techno", Duration: time.Minute},
	}

	out := p.VibeBatch(tracks, lofiVibe(), emptyPrefs())
	if len(out) != 1 || out[0].ID != "a" {
		t.Errorf("out = %v, want only the Lo-Fi track", ids(out))
	}

	// No allow-list admits every genre.
	open := core.Vibe{MaxDuration: 6 * time.Minute}
	out = p.VibeBatch(tracks, open, emptyPrefs())
	if len(out) != 2 {
		t.Errorf("open vibe filtered by genre: %v", ids(out))
	}
}

func TestPipeline_VibeBatch_DedupFirstWins(t *testing.T) {
	p := New()
	tracks := []core.Track{
		{ID: "dup", Title: "first", Genre: "Lo-Fi", Duration: time.Minute},
		{ID: "dup", Title: "second", Genre: "Lo-Fi", Duration: time.Minute},
	}

	out := p.VibeBatch(tracks, lofiVibe(), emptyPrefs())
	if len(out) != 1 || out[0].Title != "first" {
		t.Errorf("dedup should keep the first occurrence, got %v", out)
	}
}

func TestPipeline_SearchBatch_GenreTagReconciliation(t *testing.T) {
	p := New()
	fs := core.FilterSet{Genres: []string{"Techno"}}

	tracks := []core.Track{
		{ID: "match", Genre: "Techno"},
		{ID: "tagged", Genre: "Electronic", Tags: "dark,techno,warehouse"},
		{ID: "neither", Genre: "House", Tags: "groove,funky"},
	}

	out := p.SearchBatch(tracks, fs, emptyPrefs())

	got := ids(out)
	if len(got) != 2 {
		t.Fatalf("out = %v, want [match tagged]", got)
	}
	for _, tr := range out {
		if tr.ID == "neither" {
			t.Error("track with neither genre nor tag match should be excluded")
		}
	}
}

func TestPipeline_SearchBatch_QueryTagOverride(t *testing.T) {
	p := New()
	// The query appears in the track's tags, so it stays even though its
	// genre is outside the selected set.
	fs := core.FilterSet{Query: "wobble", Genres: []string{"Techno"}}

	tracks := []core.Track{
		{ID: "override", Genre: "Dubstep", Tags: "heavy,wobble,bass"},
		{ID: "excluded", Genre: "Dubstep", Tags: "heavy,bass"},
	}

	out := p.SearchBatch(tracks, fs, emptyPrefs())
	if len(out) != 1 || out[0].ID != "override" {
		t.Errorf("out = %v, want only the tag-matched track", ids(out))
	}
}

func TestPipeline_SearchBatch_RecentlyPlayedKept(t *testing.T) {
	p := New()
	prefs := emptyPrefs()
	prefs.Recent["heard"] = struct{}{}

	tracks := []core.Track{{ID: "heard", Genre: "Techno"}}
	out := p.SearchBatch(tracks, core.FilterSet{}, prefs)
	if len(out) != 1 {
		t.Error("directed search must not exclude recently played tracks")
	}
}

func TestPipeline_SearchBatch_Dedup(t *testing.T) {
	p := New()
	tracks := make([]core.Track, 0, 30)
	for page := 0; page < 3; page++ {
		for i := 0; i < 10; i++ {
			tracks = append(tracks, core.Track{ID: fmt.Sprintf("t%d", i)})
		}
	}

	out := p.SearchBatch(tracks, core.FilterSet{}, emptyPrefs())
	if len(out) != 10 {
		t.Errorf("len = %d, want 10 unique tracks", len(out))
	}
	seen := map[string]struct{}{}
	for _, tr := range out {
		if _, dup := seen[tr.ID]; dup {
			t.Errorf("duplicate id %s in output", tr.ID)
		}
		seen[tr.ID] = struct{}{}
	}
}

func TestPipeline_RandomMixBatch(t *testing.T) {
	p := New()
	prefs := emptyPrefs()
	prefs.BlockedTracks["blocked"] = struct{}{}
	prefs.Recent["heard"] = struct{}{}

	tracks := []core.Track{
		{ID: "ok"},
		{ID: "ok"}, // duplicate
		{ID: "blocked"},
		{ID: "heard"},
	}

	out := p.RandomMixBatch(tracks, prefs)
	if len(out) != 1 || out[0].ID != "ok" {
		t.Errorf("out = %v, want only track ok", ids(out))
	}
}

func TestPipeline_Refine(t *testing.T) {
	p := New()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tracks := []core.Track{
		{ID: "fits", BPM: 140, MusicalKey: "A minor", Mood: "Energizing", Duration: 3 * time.Minute, ReleasedAt: now.AddDate(0, 0, -2)},
		{ID: "slow", BPM: 90, MusicalKey: "A minor", Mood: "Energizing", Duration: 3 * time.Minute, ReleasedAt: now.AddDate(0, 0, -2)},
		{ID: "no-bpm", MusicalKey: "A minor", Mood: "Energizing", Duration: 3 * time.Minute, ReleasedAt: now.AddDate(0, 0, -2)},
		{ID: "wrong-key", BPM: 140, MusicalKey: "C major", Mood: "Energizing", Duration: 3 * time.Minute, ReleasedAt: now.AddDate(0, 0, -2)},
		{ID: "wrong-mood", BPM: 140, MusicalKey: "A minor", Mood: "Peaceful", Duration: 3 * time.Minute, ReleasedAt: now.AddDate(0, 0, -2)},
		{ID: "too-long", BPM: 140, MusicalKey: "A minor", Mood: "Energizing", Duration: 9 * time.Minute, ReleasedAt: now.AddDate(0, 0, -2)},
		{ID: "too-old", BPM: 140, MusicalKey: "A minor", Mood: "Energizing", Duration: 3 * time.Minute, ReleasedAt: now.AddDate(0, 0, -30)},
		{ID: "undated", BPM: 140, MusicalKey: "A minor", Mood: "Energizing", Duration: 3 * time.Minute},
	}

	fs := core.FilterSet{
		BPMMin:             120,
		BPMMax:             160,
		MusicalKey:         "A minor",
		Mood:               "energizing",
		MaxDurationMinutes: 5,
		ReleasedWithin:     core.WindowWeek,
	}

	out := p.Refine(tracks, fs, emptyPrefs(), now)

	want := map[string]struct{}{"fits": {}, "no-bpm": {}}
	if len(out) != len(want) {
		t.Fatalf("out = %v, want %v", ids(out), want)
	}
	for _, tr := range out {
		if _, ok := want[tr.ID]; !ok {
			t.Errorf("unexpected track %s in output", tr.ID)
		}
	}
}

func TestPipeline_Refine_BlockedArtistLive(t *testing.T) {
	p := New()
	prefs := emptyPrefs()
	prefs.BlockedArtists["loud_dj"] = struct{}{}

	tracks := []core.Track{
		{ID: "a", Artist: core.Artist{Handle: "loud_dj"}},
		{ID: "b", Artist: core.Artist{Handle: "quiet_dj"}},
	}

	out := p.Refine(tracks, core.FilterSet{}, prefs, time.Now())
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("out = %v, want only track b", ids(out))
	}
}

func TestPipeline_Refine_Idempotent(t *testing.T) {
	p := New()
	now := time.Now()
	fs := core.FilterSet{BPMMin: 100, MaxDurationMinutes: 5, ReleasedWithin: core.WindowMonth}

	tracks := []core.Track{
		{ID: "a", BPM: 120, Duration: 2 * time.Minute, ReleasedAt: now.AddDate(0, 0, -5)},
		{ID: "b", BPM: 80, Duration: 2 * time.Minute, ReleasedAt: now.AddDate(0, 0, -5)},
		{ID: "c", BPM: 120, Duration: 10 * time.Minute, ReleasedAt: now.AddDate(0, 0, -5)},
	}

	once := p.Refine(tracks, fs, emptyPrefs(), now)
	twice := p.Refine(once, fs, emptyPrefs(), now)

	if len(once) != len(twice) {
		t.Fatalf("refine not idempotent: %v then %v", ids(once), ids(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("order changed on second pass: %v vs %v", ids(once), ids(twice))
		}
	}
}

func ids(tracks []core.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}
