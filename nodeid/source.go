// Package nodeid derives the 10-bit node identifier a generator embeds in
// every ID.
//
// A node ID is computed once per process from an opaque identity hint
// supplied by the hosting runtime (an executor ID, a pod name, a hostname),
// hashed and masked to 10 bits. When no hint is available the node ID is
// drawn from crypto/rand instead. Derivation never fails.
//
// # Collision risk
//
// Hashing into a 1024-value space gives no uniqueness guarantee across
// nodes. By the birthday bound two of 40 nodes share an ID with roughly 50%
// probability. Deployments that need strict uniqueness should pin node IDs
// explicitly instead of deriving them.
package nodeid

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnavailable is returned by a Source that has no hint to offer.
var ErrUnavailable = errors.New("identity hint unavailable")

// DefaultEnvKeys are the environment variables DefaultSource consults, in
// order. SPARK_EXECUTOR_ID and POD_NAME cover executors launched by Spark and
// pods with the Kubernetes downward API.
var DefaultEnvKeys = []string{"SEQGEN_NODE_HINT", "SPARK_EXECUTOR_ID", "POD_NAME", "HOSTNAME"}

// Source supplies an identity hint unique to the current execution unit.
type Source interface {
	Hint() (string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (string, error)

// Hint calls f.
func (f SourceFunc) Hint() (string, error) {
	return f()
}

type envSource struct {
	keys []string
}

// Env returns a Source reading the first non-empty variable among keys.
func Env(keys ...string) Source {
	return envSource{keys: keys}
}

func (s envSource) Hint() (string, error) {
	for _, key := range s.keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s set", ErrUnavailable, strings.Join(s.keys, ", "))
}

func (s envSource) String() string {
	return "env(" + strings.Join(s.keys, ",") + ")"
}

type hostnameSource struct{}

// Hostname returns a Source reporting os.Hostname.
func Hostname() Source {
	return hostnameSource{}
}

func (hostnameSource) Hint() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if host == "" {
		return "", fmt.Errorf("%w: empty hostname", ErrUnavailable)
	}
	return host, nil
}

func (hostnameSource) String() string {
	return "hostname"
}

type staticSource string

// Static returns a Source that always reports hint.
func Static(hint string) Source {
	return staticSource(hint)
}

func (s staticSource) Hint() (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty static hint", ErrUnavailable)
	}
	return string(s), nil
}

func (s staticSource) String() string {
	return "static"
}

type chainSource []Source

// Chain returns a Source that tries each source in order and reports the
// first hint obtained. If every source fails the errors are joined.
func Chain(sources ...Source) Source {
	return chainSource(sources)
}

func (c chainSource) Hint() (string, error) {
	var errs []error
	for _, src := range c {
		if src == nil {
			continue
		}
		hint, err := src.Hint()
		if err == nil && hint != "" {
			return hint, nil
		}
		if err == nil {
			err = ErrUnavailable
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrUnavailable
	}
	return "", errors.Join(errs...)
}

// DefaultSource consults DefaultEnvKeys and then the hostname.
func DefaultSource() Source {
	return Chain(Env(DefaultEnvKeys...), Hostname())
}
