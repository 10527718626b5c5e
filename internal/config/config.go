package config

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DownloadsConfig controls the artifact root, the worker pool and the
// artifact resolver.
type DownloadsConfig struct {
	Dir               string `yaml:"dir"`
	MaxConcurrentJobs int    `yaml:"maxConcurrentJobs"`
	QueueSize         int    `yaml:"queueSize"`
	MinArtifactBytes  int64  `yaml:"minArtifactBytes"`
	SettleDelayMs     int    `yaml:"settleDelayMs"`
	RenameAttempts    int    `yaml:"renameAttempts"`
	RenameBackoffMs   int    `yaml:"renameBackoffMs"`
}

// TempDir returns the scratch root for job-scoped temp directories.
func (d DownloadsConfig) TempDir() string {
	return filepath.Join(d.Dir, ".temp")
}

// YtdlpConfig tunes the external tool invocation. Retry counts are the
// tool's own internal budget, not ours.
type YtdlpConfig struct {
	SocketTimeoutSec    int    `yaml:"socketTimeoutSec"`
	Retries             int    `yaml:"retries"`
	FragmentRetries     int    `yaml:"fragmentRetries"`
	ConcurrentFragments int    `yaml:"concurrentFragments"`
	ProgressIntervalMs  int    `yaml:"progressIntervalMs"`
	CookiesFile         string `yaml:"cookiesFile"`
	UserAgent           string `yaml:"userAgent"`
}

type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerMinute int  `yaml:"perMinute"`
}

// RetentionConfig controls the periodic best-effort temp sweep. Job
// records themselves are not evicted.
type RetentionConfig struct {
	Enabled              bool `yaml:"enabled"`
	SweepIntervalMinutes int  `yaml:"sweepIntervalMinutes"`
	TempMaxAgeMinutes    int  `yaml:"tempMaxAgeMinutes"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Ytdlp     YtdlpConfig     `yaml:"ytdlp"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Retention RetentionConfig `yaml:"retention"`
}

// Default returns the configuration used when no file is present.
// The tool-facing constants match the invocation the service was
// tuned with: 20s socket timeout, 5 retries, 4 concurrent fragments,
// a 500-byte plausibility floor and a 2s post-transcode settle.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 5000},
		Downloads: DownloadsConfig{
			Dir:               "static/downloads",
			MaxConcurrentJobs: 4,
			QueueSize:         64,
			MinArtifactBytes:  500,
			SettleDelayMs:     2000,
			RenameAttempts:    10,
			RenameBackoffMs:   500,
		},
		Ytdlp: YtdlpConfig{
			SocketTimeoutSec:    20,
			Retries:             5,
			FragmentRetries:     5,
			ConcurrentFragments: 4,
			ProgressIntervalMs:  500,
			CookiesFile:         "cookies.txt",
			UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
		RateLimit: RateLimitConfig{Enabled: false, PerMinute: 30},
		Retention: RetentionConfig{
			Enabled:              true,
			SweepIntervalMinutes: 60,
			TempMaxAgeMinutes:    120,
		},
	}
}

// Load reads the yaml config at path over the defaults. A missing file
// is not an error; a malformed one is fatal.
func Load(path string) *Config {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg
		}
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return cfg
}
