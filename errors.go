// Package seqgen - errors.go provides the error values and typed errors
// returned by the generator.
//
// Typed errors unwrap to the package sentinels so callers can use either
// errors.Is or errors.As.

package seqgen

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the generator.
var (
	// ErrClockRegression is returned when the clock reports a time earlier than
	// the last millisecond an ID was minted for. The generator never corrects
	// for this; the caller decides whether to abort, alert or retry.
	ErrClockRegression = errors.New("clock moved backwards")

	// ErrSpinTimeout is returned when Config.MaxSpin is set and the wait for the
	// next millisecond after sequence exhaustion took longer than allowed.
	ErrSpinTimeout = errors.New("timed out waiting for next millisecond")

	// ErrContextCanceled is returned when the context is done before an ID
	// could be minted. The returned error also wraps ctx.Err().
	ErrContextCanceled = errors.New("context canceled")

	// ErrInvalidConfig is returned when Config validation fails.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidNodeID is returned when a pinned node ID is outside [0, 1023].
	ErrInvalidNodeID = errors.New("node ID must be between 0 and 1023")

	// ErrAlreadyInitialized is returned by Init once the process generator exists.
	ErrAlreadyInitialized = errors.New("process generator already initialized")

	// ErrInvalidID is returned when a string cannot be parsed as an ID.
	ErrInvalidID = errors.New("invalid id")
)

// ClockRegressionError carries the timing details of a clock regression.
//
// Timestamps are milliseconds since Epoch, as stored in the ID.
//
//	if regErr, ok := seqgen.AsClockRegression(err); ok {
//	    logger.Error("clock regression",
//	        zap.Int64("drift_ms", regErr.Drift),
//	        zap.Int64("node", regErr.NodeID))
//	}
type ClockRegressionError struct {
	// Current is the timestamp the clock reported.
	Current int64

	// Last is the timestamp of the most recently minted ID.
	Last int64

	// Drift is Last - Current, always positive.
	Drift int64

	// NodeID is the node ID of the generator that observed the regression.
	NodeID int64
}

// Error implements the error interface.
func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("clock moved backwards: drift=%dms current=%d last=%d node=%d",
		e.Drift, e.Current, e.Last, e.NodeID)
}

// Unwrap returns ErrClockRegression.
func (e *ClockRegressionError) Unwrap() error {
	return ErrClockRegression
}

// DriftDuration returns the drift as a time.Duration.
func (e *ClockRegressionError) DriftDuration() time.Duration {
	return time.Duration(e.Drift) * time.Millisecond
}

// ConfigError describes which Config field failed validation and why.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%s (%s)", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// IsClockRegression reports whether err is or wraps a clock regression.
func IsClockRegression(err error) bool {
	return errors.Is(err, ErrClockRegression)
}

// AsClockRegression extracts the ClockRegressionError from an error chain.
func AsClockRegression(err error) (*ClockRegressionError, bool) {
	var regErr *ClockRegressionError
	if errors.As(err, &regErr) {
		return regErr, true
	}
	return nil, false
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

func newClockRegressionError(current, last, nodeID int64) *ClockRegressionError {
	return &ClockRegressionError{
		Current: current,
		Last:    last,
		Drift:   last - current,
		NodeID:  nodeID,
	}
}

func newConfigError(field, value, reason string) *ConfigError {
	return &ConfigError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}
