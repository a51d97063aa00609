package core

import "time"

// Vibe is a named, preconfigured discovery profile: a rotating query set, a
// duration cap and a genre allow-list. Static configuration, not user data.
type Vibe struct {
	Name          string
	Label         string
	Queries       []string
	MaxDuration   time.Duration
	AllowedGenres []string
	// APIGenres rotates on the server side for vibes that span several
	// catalog genres; single-genre vibes list just the one.
	APIGenres []string
}

// APIGenre returns the server-side genre parameter for the given rotation
// index, or "" when the vibe has none configured.
func (v Vibe) APIGenre(idx int) string {
	if len(v.APIGenres) == 0 {
		return ""
	}
	return v.APIGenres[idx%len(v.APIGenres)]
}

// Vibes holds the built-in discovery presets, keyed by name.
var Vibes = map[string]Vibe{
	"lofi": {
		Name:  "lofi",
		Label: "lo-fi",
		Queries: []string{
			"lofi", "lofi beats", "lofi hip hop", "lofi chill", "chillhop",
			"study beats", "lofi jazz", "lofi ambient", "chill lofi", "mellow beats",
			"late night lofi", "lofi vibes", "bedroom beats", "rain lofi", "coffee shop beats",
		},
		MaxDuration:   6 * time.Minute,
		AllowedGenres: []string{"Lo-Fi"},
		APIGenres:     []string{"Lo-Fi"},
	},
	"dnb": {
		Name:  "dnb",
		Label: "dnb",
		Queries: []string{
			"drum and bass", "liquid dnb", "dnb", "jungle", "liquid drum and bass",
			"neurofunk", "atmospheric dnb", "rollers", "minimal dnb", "deep dnb",
			"liquid bass", "breakbeat", "halfstep", "jump up", "intelligent dnb",
		},
		MaxDuration:   6 * time.Minute,
		AllowedGenres: []string{"Drum & Bass"},
		APIGenres:     []string{"Drum & Bass"},
	},
	"bass": {
		Name:  "bass",
		Label: "bass",
		Queries: []string{
			// Abstract mood queries find bass music by vibe rather than title.
			"heavy", "dark", "filthy", "wobble", "deep", "melodic",
			"wave", "experimental", "chill", "hard", "hybrid",
			// A few genre queries for balance.
			"bass music", "trap", "future bass", "riddim",
		},
		MaxDuration:   6 * time.Minute,
		AllowedGenres: []string{"Dubstep", "Trap", "Future Bass", "Electronic"},
		APIGenres:     []string{"Trap", "Future Bass", "Dubstep", "Electronic"},
	},
}

// LookupVibe returns the named vibe, falling back to the given default name
// when the requested one is unknown.
func LookupVibe(name, fallback string) Vibe {
	if v, ok := Vibes[name]; ok {
		return v
	}
	return Vibes[fallback]
}

// DJGenres are the catalog genres selectable in directed search.
var DJGenres = []string{
	"Deep House", "Disco", "Downtempo", "Drum & Bass", "Dubstep",
	"Electronic", "Experimental", "Future Bass", "Future House",
	"Hardstyle", "House", "Lo-Fi", "Progressive House",
	"Tech House", "Techno", "Trance", "Trap",
}

// DJKeys are the musical keys the catalog reports.
var DJKeys = []string{
	"C major", "C minor", "C# major", "C# minor",
	"D major", "D minor", "D# major", "D# minor",
	"E major", "E minor",
	"F major", "F minor", "F# major", "F# minor",
	"G major", "G minor", "G# major", "G# minor",
	"A major", "A minor", "A# major", "A# minor",
	"B major", "B minor",
	"Db major", "Db minor", "Eb major", "Eb minor",
	"Gb major", "Gb minor", "Ab major", "Ab minor",
	"Bb major", "Bb minor",
}

// DJMoods are the mood labels the catalog reports.
var DJMoods = []string{
	"Aggressive", "Cool", "Defiant", "Easygoing", "Empowering", "Energizing",
	"Excited", "Fiery", "Gritty", "Peaceful", "Romantic", "Sensual",
	"Sophisticated", "Upbeat", "Yearning",
}

// GenreDiscovery maps a genre to abstract mood/style terms that surface
// tracks tagged with the genre rather than tracks with the genre name in
// the title.
var GenreDiscovery = map[string][]string{
	"Deep House":        {"groove", "sunset", "soulful", "melodic", "underground", "afterhours", "late night", "chill", "warm", "deep"},
	"Tech House":        {"groove", "minimal", "warehouse", "dark", "rolling", "hypnotic", "peak time", "underground", "tools", "driving"},
	"House":             {"groove", "dance", "feel good", "classic", "vocal", "funky", "summer", "party", "uplifting", "soulful"},
	"Techno":            {"dark", "industrial", "warehouse", "hypnotic", "driving", "minimal", "hard", "acid", "underground", "peak"},
	"Trance":            {"euphoric", "uplifting", "melodic", "progressive", "energy", "vocal", "anthem", "emotional", "epic", "journey"},
	"Drum & Bass":       {"liquid", "roller", "jungle", "dark", "atmospheric", "neurofunk", "deep", "minimal", "vocal", "dancefloor"},
	"Dubstep":           {"heavy", "dark", "deep", "riddim", "experimental", "melodic", "wobble", "bass", "filthy", "chill"},
	"Trap":              {"heavy", "dark", "hybrid", "festival", "chill", "wave", "hard", "melodic", "bass", "future"},
	"Lo-Fi":             {"chill", "study", "beats", "jazz", "rain", "ambient", "mellow", "late night", "bedroom", "coffee"},
	"Future Bass":       {"melodic", "chill", "emotional", "vocal", "uplifting", "dreamy", "bright", "kawaii", "future", "synth"},
	"Future House":      {"bounce", "groove", "bass", "vocal", "melodic", "festival", "deep", "funky", "bright", "energy"},
	"Progressive House": {"melodic", "journey", "epic", "emotional", "driving", "deep", "progressive", "uplifting", "atmospheric", "vocal"},
	"Downtempo":         {"chill", "ambient", "mellow", "atmospheric", "dreamy", "organic", "ethereal", "smooth", "relaxing", "floating"},
	"Electronic":        {"synth", "experimental", "ambient", "beats", "glitch", "minimal", "future", "dark", "melodic", "atmospheric"},
	"Experimental":      {"glitch", "ambient", "noise", "abstract", "weird", "avant", "textural", "drone", "modular", "generative"},
	"Disco":             {"groove", "funky", "boogie", "classic", "dance", "soul", "party", "retro", "nu disco", "cosmic"},
	"Hardstyle":         {"hard", "euphoric", "raw", "kick", "festival", "energy", "anthem", "reverse bass", "dark", "intense"},
}

// FallbackDiscoveryTerms are used by directed search when neither free text
// nor a genre selection is present.
var FallbackDiscoveryTerms = []string{"electronic", "beats", "synth", "dance"}
