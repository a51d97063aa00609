package core

import (
	"time"
)

const (
	// DefaultStallTimeoutSecs is how long playback may report buffering
	// before the session skips forward.
	DefaultStallTimeoutSecs = 5
	// DefaultBatchLimit is the page size requested from the catalog.
	DefaultBatchLimit = 50
	// DefaultRecentRingSize caps the recently-played ring.
	DefaultRecentRingSize = 200
	// DefaultSearchLimitPerMinute caps directed searches per API caller.
	DefaultSearchLimitPerMinute = 12
)

type Config struct {
	Catalog CatalogConfig
	Server  ServerConfig
	Player  PlayerConfig
	Store   StoreConfig
	Log     LogConfig
	App     AppConfig
}

type CatalogConfig struct {
	Host           string
	AppName        string
	WriteProxyURL  string // base URL of the write-side action proxy, empty disables writes
	RequestTimeout time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PlayerConfig struct {
	Backend          string // "speaker" or "none" (headless control without audio output)
	StallTimeoutSecs int
	Preload          bool
}

type StoreConfig struct {
	Path string // directory holding the serialized preference blobs
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	DefaultVibe          string
	BatchLimit           int
	RecentRingSize       int
	SearchLimitPerMinute int
}

func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Host:           "https://api.audius.co",
			AppName:        "driftdj",
			RequestTimeout: 15 * time.Second,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Player: PlayerConfig{
			Backend:          "speaker",
			StallTimeoutSecs: DefaultStallTimeoutSecs,
			Preload:          true,
		},
		Store: StoreConfig{
			Path: "./driftdj_state",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			DefaultVibe:          "lofi",
			BatchLimit:           DefaultBatchLimit,
			RecentRingSize:       DefaultRecentRingSize,
			SearchLimitPerMinute: DefaultSearchLimitPerMinute,
		},
	}
}
