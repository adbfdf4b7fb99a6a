package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sxyafiq/seqgen"
	"github.com/sxyafiq/seqgen/nodeid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

// Clock names accepted by Config.Clock. The wall clock reports NTP steps
// backwards as clock regressions; the monotonic clock never moves backwards
// but drifts from wall time when the system clock is stepped.
const (
	ClockWall      = "wall"
	ClockMonotonic = "monotonic"
)

type Config struct {
	// identity options
	NodeID      int64    `yaml:"nodeID" toml:"nodeID"`
	NodeHintEnv []string `yaml:"nodeHintEnv" toml:"nodeHintEnv"`
	NodeHint    string   `yaml:"nodeHint" toml:"nodeHint"`
	Hash        string   `yaml:"hash" toml:"hash"`

	// generator options
	Clock   string        `yaml:"clock" toml:"clock"`
	Yield   bool          `yaml:"yield" toml:"yield"`
	MaxSpin time.Duration `yaml:"maxSpin" toml:"maxSpin"`

	// http options
	HTTPAddress               string        `yaml:"httpAddress" toml:"httpAddress"`
	MaxBatch                  int           `yaml:"maxBatch" toml:"maxBatch"`
	ShutdownTimeout           time.Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout"`
	UnhealthyClockRegressions int64         `yaml:"unhealthyClockRegressions" toml:"unhealthyClockRegressions"`

	// logging options
	LogLevel       string `yaml:"logLevel" toml:"logLevel"`
	LogDevelopment bool   `yaml:"logDevelopment" toml:"logDevelopment"`
}

func NewConfig() *Config {
	return &Config{
		NodeID:      seqgen.AutoNodeID,
		NodeHintEnv: append([]string(nil), nodeid.DefaultEnvKeys...),
		Hash:        "xxhash",
		Clock:       ClockWall,

		HTTPAddress:               "0.0.0.0:9810",
		MaxBatch:                  10000,
		ShutdownTimeout:           5 * time.Second,
		UnhealthyClockRegressions: 1,

		LogLevel: "info",
	}
}

// Load reads a config file over the defaults. Files ending in .toml are
// parsed as TOML, anything else as YAML. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(buf), cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("failed to parse config file %s: unknown keys %v", path, undecoded)
		}
		return cfg, nil
	}

	if err := yaml.UnmarshalStrict(buf, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.NodeID < seqgen.AutoNodeID || c.NodeID > seqgen.MaxNodeID {
		return errors.Errorf("nodeID %d out of range, want -1 (auto) or 0-%d", c.NodeID, seqgen.MaxNodeID)
	}
	if _, err := nodeid.HashByName(c.Hash); err != nil {
		return errors.Wrap(err, "hash")
	}
	if c.Clock != ClockWall && c.Clock != ClockMonotonic {
		return errors.Errorf("clock %q must be %s or %s", c.Clock, ClockWall, ClockMonotonic)
	}
	if c.MaxSpin < 0 {
		return errors.Errorf("maxSpin %v must not be negative", c.MaxSpin)
	}
	if c.MaxBatch < 1 {
		return errors.Errorf("maxBatch %d must be at least 1", c.MaxBatch)
	}
	if c.UnhealthyClockRegressions < 0 {
		return errors.Errorf("unhealthyClockRegressions %d must not be negative", c.UnhealthyClockRegressions)
	}
	if c.ShutdownTimeout < 0 {
		return errors.Errorf("shutdownTimeout %v must not be negative", c.ShutdownTimeout)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "logLevel")
	}
	return nil
}

// Identity builds the node-id deriver. A fixed NodeHint takes precedence
// over the environment and hostname.
func (c *Config) Identity(logger *zap.Logger) (*nodeid.Deriver, error) {
	hash, err := nodeid.HashByName(c.Hash)
	if err != nil {
		return nil, errors.Wrap(err, "hash")
	}

	var src nodeid.Source
	if hint := strings.TrimSpace(c.NodeHint); hint != "" {
		src = nodeid.Static(hint)
	} else {
		src = nodeid.Chain(nodeid.Env(c.NodeHintEnv...), nodeid.Hostname())
	}

	return &nodeid.Deriver{
		Source: src,
		Hash:   hash,
		Logger: logger,
	}, nil
}

// Generator translates the config into a seqgen.Config.
func (c *Config) Generator(logger *zap.Logger) (seqgen.Config, error) {
	cfg := seqgen.DefaultConfig()
	cfg.NodeID = c.NodeID
	if c.Clock == ClockMonotonic {
		cfg.Clock = seqgen.MonotonicClock()
	}
	cfg.Yield = c.Yield
	cfg.MaxSpin = c.MaxSpin
	cfg.Logger = logger

	if c.NodeID == seqgen.AutoNodeID {
		identity, err := c.Identity(logger)
		if err != nil {
			return cfg, err
		}
		cfg.Identity = identity
	}
	return cfg, nil
}
