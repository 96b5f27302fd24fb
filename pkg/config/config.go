// Package config loads drp-worker settings. Values are layered: built-in
// defaults, then an optional YAML file, then DRP_* environment variables
// (optionally read from a dotenv file). Command-line flags are applied last
// by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/drp/pkg/endpoint"
	"github.com/cuemby/drp/pkg/pathutil"
)

// Environment variables consulted by ApplyEnv
const (
	EnvController = "DRP_CONTROLLER"
	EnvWorkDir    = "DRP_WORK_DIR"
	EnvLogLevel   = "DRP_LOG_LEVEL"
	EnvWorkerIdx  = "DRP_WORKER_INDEX"
	EnvMaxFrame   = "DRP_MAX_FRAME_SIZE"
)

// DefaultDialTimeout bounds resolution plus connect at startup
const DefaultDialTimeout = 30 * time.Second

// MinFrameSize is the smallest non-zero max_frame_size accepted
const MinFrameSize = 1 << 10

// Config is the complete worker configuration
type Config struct {
	Controller  string        `yaml:"controller"`
	Port        int           `yaml:"port"`
	WorkDir     string        `yaml:"work_dir"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Log         LogConfig     `yaml:"log"`
	MetricsAddr string        `yaml:"metrics_addr"`

	// MaxFrameSize bounds every frame sent or received, in bytes. Zero
	// means transport.DefaultMaxFrameSize.
	MaxFrameSize uint32 `yaml:"max_frame_size"`

	// WorkerIndex fills a %d marker in WorkDir. Negative means unset.
	WorkerIndex int `yaml:"worker_index"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Controller:  "localhost",
		Port:        endpoint.DefaultPort,
		DialTimeout: DefaultDialTimeout,
		WorkerIndex: -1,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML into cfg, leaving fields the document omits untouched.
// Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg with any DRP_* variables lookup reports as set.
// Pass os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvController); ok && v != "" {
		c.Controller = v
	}
	if v, ok := lookup(EnvWorkDir); ok && v != "" {
		c.WorkDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvWorkerIdx); ok && v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkerIdx, err)
		}
		c.WorkerIndex = idx
	}
	if v, ok := lookup(EnvMaxFrame); ok && v != "" {
		size, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxFrame, err)
		}
		c.MaxFrameSize = uint32(size)
	}
	return nil
}

// EnvLookup returns a lookup over the process environment backed by the
// dotenv file at envFile. Variables already set in the process win, as with
// godotenv.Load. An empty envFile returns os.LookupEnv.
func EnvLookup(envFile string) (func(string) (string, bool), error) {
	if envFile == "" {
		return os.LookupEnv, nil
	}

	fileEnv, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}, nil
}

// ResolvedWorkDir returns WorkDir with any %d marker replaced by
// WorkerIndex
func (c *Config) ResolvedWorkDir() string {
	return pathutil.SubstituteParameter(c.WorkDir, c.WorkerIndex)
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Controller) == "" {
		return fmt.Errorf("controller address is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial timeout must not be negative")
	}
	if c.MaxFrameSize != 0 && c.MaxFrameSize < MinFrameSize {
		return fmt.Errorf("max frame size %d is below %d bytes", c.MaxFrameSize, MinFrameSize)
	}
	if pathutil.HasParameter(c.WorkDir) && c.WorkerIndex < 0 {
		return fmt.Errorf("work dir %q needs a worker index", c.WorkDir)
	}
	if _, err := endpoint.Parse(c.Controller, c.Port); err != nil {
		return err
	}
	return nil
}
