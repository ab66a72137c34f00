package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	defaultLogLevel    = LogLevelInfo
	defaultDataDir     = "data"
	defaultTmpDir      = "tmp"
	defaultSyncTimeout = Duration(10 * time.Minute)
)

// Duration makes time.Duration strings ("10m", "1h") usable in yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("cannot parse duration: %w", err)
	}

	*d = Duration(parsed)

	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type MirrorConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Source string `yaml:"source" validate:"required,url"`
	Sync   string `yaml:"sync"`
	Serve  string `yaml:"serve"`
}

type AdminServerConfig struct {
	Listen      string `yaml:"listen" validate:"required"`
	Token       string `yaml:"token" validate:"required"`
	Description string `yaml:"description"`
}

type Config struct {
	LogLevel    string             `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	DataDir     string             `yaml:"data_dir"`
	TmpDir      string             `yaml:"tmp_dir"`
	SyncTimeout Duration           `yaml:"sync_timeout"`
	SyncOnStart *bool              `yaml:"sync_on_start"`
	RedisURL    string             `yaml:"redis_url"`
	Mirrors     []MirrorConfig     `yaml:"mirrors" validate:"required,min=1,dive"`
	AdminServer *AdminServerConfig `yaml:"admin_server"`
}

// StartupSync reports whether every mirror should be synced once at startup.
// Enabled unless explicitly turned off.
func (c *Config) StartupSync() bool {
	return c.SyncOnStart == nil || *c.SyncOnStart
}

func MustLoad(fileName string) *Config {
	cfg, err := Load(fileName)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load reads the yaml config. ${VAR} references are expanded from the
// environment (a .env file next to the process is honored), so secrets like
// the admin token can stay out of the config file.
func Load(fileName string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.UnmarshalStrict([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	} else {
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}

	if cfg.TmpDir == "" {
		cfg.TmpDir = defaultTmpDir
	}

	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}
}
