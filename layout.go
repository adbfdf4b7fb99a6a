// Package seqgen - layout.go describes the bit layout of an ID and the
// capacity figures that follow from it.

package seqgen

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidLayout is returned when a Layout does not describe 64 bits.
var ErrInvalidLayout = errors.New("invalid bit layout")

// Layout describes how the 64 bits of an ID are allocated.
//
// The generator only mints DefaultLayout. The type exists so tooling can
// report capacity and so the constants are checked in one place.
type Layout struct {
	TimestampBits int
	NodeIDBits    int
	SequenceBits  int
	// Epoch is the Unix millisecond the timestamp field counts from.
	Epoch int64
}

// DefaultLayout is 42 timestamp bits, 10 node bits and 12 sequence bits
// counted from 2015-01-01T00:00:00Z.
var DefaultLayout = Layout{
	TimestampBits: TimestampBits,
	NodeIDBits:    NodeIDBits,
	SequenceBits:  SequenceBits,
	Epoch:         Epoch,
}

// Validate checks that the fields are positive and fill 64 bits.
func (l Layout) Validate() error {
	if l.TimestampBits <= 0 || l.NodeIDBits <= 0 || l.SequenceBits <= 0 {
		return fmt.Errorf("%w: all fields need at least one bit (%d+%d+%d)",
			ErrInvalidLayout, l.TimestampBits, l.NodeIDBits, l.SequenceBits)
	}
	if total := l.TimestampBits + l.NodeIDBits + l.SequenceBits; total != 64 {
		return fmt.Errorf("%w: fields must total 64 bits, got %d", ErrInvalidLayout, total)
	}
	if l.Epoch < 0 {
		return fmt.Errorf("%w: epoch must not be negative", ErrInvalidLayout)
	}
	return nil
}

// Capacity holds the limits implied by a Layout.
type Capacity struct {
	MaxNodes          int64
	IDsPerMillisecond int64
	ThroughputPerNode int64 // IDs per second
	Lifespan          time.Duration
	SignedOverflow    time.Time // first instant whose IDs are negative as int64
	End               time.Time // first instant the timestamp field cannot hold
}

// Capacity computes the limits of the layout.
func (l Layout) Capacity() Capacity {
	perMs := int64(1) << l.SequenceBits
	// 2^(TimestampBits-1) ms is where the top bit of the ID turns on.
	signedMs := int64(1) << (l.TimestampBits - 1)
	endMs := int64(1) << l.TimestampBits

	return Capacity{
		MaxNodes:          int64(1) << l.NodeIDBits,
		IDsPerMillisecond: perMs,
		ThroughputPerNode: perMs * 1000,
		Lifespan:          time.Duration(endMs) * time.Millisecond,
		SignedOverflow:    time.UnixMilli(l.Epoch + signedMs).UTC(),
		End:               time.UnixMilli(l.Epoch + endMs).UTC(),
	}
}

// String summarises the capacity.
func (c Capacity) String() string {
	years := int(c.Lifespan.Hours() / 24 / 365)
	return fmt.Sprintf("MaxNodes: %d, ThroughputPerNode: %d/sec, Lifespan: %d years, SignedUntil: %s",
		c.MaxNodes, c.ThroughputPerNode, years, c.SignedOverflow.Format(time.RFC3339))
}
