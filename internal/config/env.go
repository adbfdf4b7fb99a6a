package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FromEnv overlays SEQGEN_* environment variables onto cfg. Unparsable
// values are ignored, except SEQGEN_NODE_ID, which must parse when set.
func FromEnv(cfg *Config) error {
	if v := os.Getenv("SEQGEN_NODE_ID"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "SEQGEN_NODE_ID %q", v)
		}
		cfg.NodeID = n
	}
	if v := os.Getenv("SEQGEN_NODE_HINT_ENV"); v != "" {
		parts := strings.Split(v, ",")
		cfg.NodeHintEnv = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.NodeHintEnv = append(cfg.NodeHintEnv, p)
			}
		}
	}
	if v := os.Getenv("SEQGEN_HASH"); v != "" {
		cfg.Hash = v
	}
	if v := os.Getenv("SEQGEN_CLOCK"); v != "" {
		cfg.Clock = strings.ToLower(v)
	}
	if v := os.Getenv("SEQGEN_YIELD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Yield = b
		}
	}
	if v := os.Getenv("SEQGEN_MAX_SPIN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaxSpin = d
		}
	}
	if v := os.Getenv("SEQGEN_HTTP_ADDRESS"); v != "" {
		cfg.HTTPAddress = v
	}
	if v := os.Getenv("SEQGEN_MAX_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBatch = n
		}
	}
	if v := os.Getenv("SEQGEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SEQGEN_LOG_DEVELOPMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogDevelopment = b
		}
	}
	return nil
}
