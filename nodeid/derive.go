package nodeid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Mask keeps the low 10 bits of a hash or random draw.
const Mask = 0x3FF

// Origin records how a node ID was obtained.
type Origin int

const (
	// OriginHint means the ID was hashed from a runtime identity hint.
	OriginHint Origin = iota
	// OriginRandom means no hint was available and the ID was drawn at random.
	OriginRandom
	// OriginPinned means the ID was configured explicitly.
	OriginPinned
)

// String returns the origin name used in logs and the HTTP API.
func (o Origin) String() string {
	switch o {
	case OriginHint:
		return "hint"
	case OriginRandom:
		return "random"
	case OriginPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// MarshalText renders the origin name.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Identity is the outcome of a derivation.
type Identity struct {
	NodeID int64
	Origin Origin
	// Hint is the identity hint that was hashed, empty unless Origin is OriginHint.
	Hint string
	// Err is the recovered source error when the random fallback was taken.
	Err error
}

// Pinned returns the Identity of an explicitly configured node ID.
func Pinned(nodeID int64) Identity {
	return Identity{NodeID: nodeID, Origin: OriginPinned}
}

// Deriver computes a node ID from a Source, falling back to randomness.
//
// The zero value is usable: it consults DefaultSource, hashes with XXHash and
// draws fallback IDs from crypto/rand.
type Deriver struct {
	Source Source
	Hash   HashFunc
	Rand   io.Reader
	Logger *zap.Logger
}

// NewDeriver returns a Deriver over src with the default hash and randomness.
func NewDeriver(src Source) *Deriver {
	return &Deriver{Source: src}
}

// Derive returns a node ID in [0, 1023]. It never fails: any error or panic
// from the Source is recovered and answered with a random ID.
func (d *Deriver) Derive() Identity {
	logger := d.logger()

	hint, err := d.hint()
	if err == nil {
		id := int64(d.hash()(hint) & Mask)
		logger.Info("derived node id from identity hint",
			zap.Int64("node_id", id),
			zap.String("hint", hint))
		return Identity{NodeID: id, Origin: OriginHint, Hint: hint}
	}

	id := d.random(logger)
	logger.Warn("identity hint unavailable, using random node id",
		zap.Int64("node_id", id),
		zap.Error(err))
	return Identity{NodeID: id, Origin: OriginRandom, Err: err}
}

func (d *Deriver) hint() (hint string, err error) {
	src := d.Source
	if src == nil {
		src = DefaultSource()
	}
	defer func() {
		if r := recover(); r != nil {
			hint, err = "", fmt.Errorf("%w: source panicked: %v", ErrUnavailable, r)
		}
	}()
	hint, err = src.Hint()
	if err == nil && hint == "" {
		err = ErrUnavailable
	}
	return hint, err
}

func (d *Deriver) hash() HashFunc {
	if d.Hash == nil {
		return XXHash
	}
	return d.Hash
}

func (d *Deriver) random(logger *zap.Logger) int64 {
	r := d.Rand
	if r == nil {
		r = rand.Reader
	}
	id, err := Random(r)
	if err != nil {
		// Last resort so construction still succeeds.
		logger.Error("random source failed, using clock entropy", zap.Error(err))
		return time.Now().UnixNano() & Mask
	}
	return id
}

func (d *Deriver) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Random draws a node ID in [0, 1023] from r.
func Random(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:]) & Mask), nil
}
