package main

import (
	"os"
	"strconv"
	"time"
)

// Defaults for a single-node deployment. Everything is overridable through
// the environment (a .env file is honoured if present).
const (
	DefaultPort            = "8080"
	DefaultWorkDir         = "downloads"
	DefaultYtDlpPath       = "yt-dlp"
	DefaultFFmpegPath      = "ffmpeg"
	DefaultFormatSelector  = "bestaudio/best"
	DefaultMaxConversions  = 5
	DefaultRequestsPerSec  = 100
	DefaultBurstSize       = 200
	DefaultMetadataTimeout = 45 * time.Second
	DefaultPipelineTimeout = 10 * time.Minute
	DefaultCacheTTL        = 1 * time.Hour
	ShutdownTimeout        = 15 * time.Second
)

// Config holds process-wide settings. It is read once at startup and
// treated as read-only afterwards.
type Config struct {
	Port       string
	WorkDir    string // dedicated directory for transient output files
	YtDlpPath  string
	FFmpegPath string

	MaxConversions  int // simultaneous conversion pipelines
	RequestsPerSec  int
	BurstSize       int
	MetadataTimeout time.Duration
	PipelineTimeout time.Duration

	// Redis is optional; when RedisAddr is empty (or the server is
	// unreachable) metadata caching is disabled.
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	MetadataCacheTTL time.Duration
}

func loadConfig() *Config {
	return &Config{
		Port:       envOr("PORT", DefaultPort),
		WorkDir:    envOr("WORK_DIR", DefaultWorkDir),
		YtDlpPath:  envOr("YTDLP_PATH", DefaultYtDlpPath),
		FFmpegPath: envOr("FFMPEG_PATH", DefaultFFmpegPath),

		MaxConversions:  envIntOr("MAX_CONVERSIONS", DefaultMaxConversions),
		RequestsPerSec:  envIntOr("RATE_LIMIT_RPS", DefaultRequestsPerSec),
		BurstSize:       envIntOr("RATE_LIMIT_BURST", DefaultBurstSize),
		MetadataTimeout: envDurationOr("METADATA_TIMEOUT", DefaultMetadataTimeout),
		PipelineTimeout: envDurationOr("PIPELINE_TIMEOUT", DefaultPipelineTimeout),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          envIntOr("REDIS_DB", 0),
		MetadataCacheTTL: envDurationOr("METADATA_CACHE_TTL", DefaultCacheTTL),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
