package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the ingest core recognizes. Values come from a
// YAML file with environment variables taking precedence for deploy secrets.
type Config struct {
	FoscamRoot    string `yaml:"foscam_root"`
	ThumbnailRoot string `yaml:"thumbnail_root"`
	DatabaseURL   string `yaml:"database_url"`

	QueueCapacity int `yaml:"queue_capacity"`
	WorkerCount   int `yaml:"worker_count"`

	DescriberImageTimeoutS int    `yaml:"describer_image_timeout_s"`
	DescriberVideoTimeoutS int    `yaml:"describer_video_timeout_s"`
	VisionURL              string `yaml:"vision_url"`

	WatcherRediscoveryS int `yaml:"watcher_rediscovery_s"`

	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	RedisAddr   string `yaml:"redis_addr"`
	CacheTTLSec int    `yaml:"cache_ttl_s"`
}

// Defaults mirror the documented config table. Anything left zero after
// loading falls back to these.
func defaults() Config {
	return Config{
		FoscamRoot:             "foscam",
		ThumbnailRoot:          "video_thumbnails",
		QueueCapacity:          64,
		WorkerCount:            1,
		DescriberImageTimeoutS: 60,
		DescriberVideoTimeoutS: 180,
		WatcherRediscoveryS:    60,
		ListenAddr:             ":8000",
		LogLevel:               "info",
		NATSSubject:            "sentrycam.events",
		CacheTTLSec:            30,
	}
}

// Load reads the YAML file at path (missing file is not an error; defaults
// apply) and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	fillDefaults(&cfg)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (config file or DATABASE_URL)")
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("FOSCAM_ROOT"); v != "" {
		cfg.FoscamRoot = v
	}
	if v := os.Getenv("THUMBNAIL_ROOT"); v != "" {
		cfg.ThumbnailRoot = v
	}
	if v := os.Getenv("VISION_URL"); v != "" {
		cfg.VisionURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerCount = n
		}
	}
	if v := os.Getenv("QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueueCapacity = n
		}
	}
}

func fillDefaults(cfg *Config) {
	def := defaults()
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.DescriberImageTimeoutS <= 0 {
		cfg.DescriberImageTimeoutS = def.DescriberImageTimeoutS
	}
	if cfg.DescriberVideoTimeoutS <= 0 {
		cfg.DescriberVideoTimeoutS = def.DescriberVideoTimeoutS
	}
	if cfg.WatcherRediscoveryS <= 0 {
		cfg.WatcherRediscoveryS = def.WatcherRediscoveryS
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.NATSSubject == "" {
		cfg.NATSSubject = def.NATSSubject
	}
	if cfg.CacheTTLSec <= 0 {
		cfg.CacheTTLSec = def.CacheTTLSec
	}
}

// ImageTimeout returns the per-call describer timeout for images.
func (c *Config) ImageTimeout() time.Duration {
	return time.Duration(c.DescriberImageTimeoutS) * time.Second
}

// VideoTimeout returns the per-call describer timeout for videos.
func (c *Config) VideoTimeout() time.Duration {
	return time.Duration(c.DescriberVideoTimeoutS) * time.Second
}

// RediscoveryInterval returns how often the watcher rescans the camera tree.
func (c *Config) RediscoveryInterval() time.Duration {
	return time.Duration(c.WatcherRediscoveryS) * time.Second
}

// DebugEnabled reports whether debug-verbosity logging is on.
func (c *Config) DebugEnabled() bool {
	return c.LogLevel == "debug"
}
