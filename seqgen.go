// Package seqgen provides a decentralized unique ID generator based on
// Twitter's Snowflake scheme.
//
// # Overview
//
// Every node mints 64-bit IDs on its own, without talking to other nodes:
//   - IDs from one generator are strictly increasing
//   - IDs are unique across nodes as long as node IDs differ
//   - Minting is allocation-free and safe for concurrent use
//
// # ID Structure (64 bits)
//
//	┌─────────────────────────────────────────────┬──────────────┬──────────────┐
//	│       42 bits: Timestamp (milliseconds)     │  10 bits:    │  12 bits:    │
//	│        since 2015-01-01T00:00:00Z           │  Node ID     │  Sequence    │
//	│                                             │  (0-1023)    │  (0-4095)    │
//	└─────────────────────────────────────────────┴──────────────┴──────────────┘
//
// The three fields use all 64 bits, so IDs minted after 2084-09-06 have the
// sign bit set when viewed as int64. Ordering is defined on the unsigned value.
//
// # Node IDs
//
// Unless pinned, the node ID is derived once at construction by package
// nodeid: an identity hint from the hosting runtime (executor ID, pod name,
// hostname) is hashed and masked to 10 bits, with a crypto/rand fallback.
// Construction therefore never fails. Derived node IDs can collide when many
// nodes run at once; see package nodeid.
//
// # Clock regression and sequence exhaustion
//
// If the clock reports a millisecond earlier than the last one used, NextID
// fails with a *ClockRegressionError and leaves the generator untouched.
// If all 4096 sequence values of a millisecond are used up, NextID spins on
// the clock until the next millisecond arrives. The spin burns CPU on
// purpose: the wait is sub-millisecond and yielding to the scheduler would
// only add latency. Config.Yield and Config.MaxSpin relax this.
//
// # Usage
//
//	// One generator per process
//	id, err := seqgen.NextID()
//
//	// Explicit lifecycle
//	cfg := seqgen.DefaultConfig()
//	cfg.Logger = logger
//	if err := seqgen.Init(cfg); err != nil {
//	    log.Fatal(err)
//	}
//	id, err := seqgen.Default().NextID()
package seqgen

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sxyafiq/seqgen/nodeid"
	"go.uber.org/zap"
)

const (
	// Epoch is the custom epoch (January 1, 2015 00:00:00 UTC) in Unix milliseconds.
	Epoch int64 = 1420070400000

	// TimestampBits is the width of the timestamp field.
	TimestampBits = 42

	// NodeIDBits is the width of the node ID field (1024 nodes).
	NodeIDBits = 10

	// SequenceBits is the width of the sequence field (4096 IDs per millisecond).
	SequenceBits = 12

	// MaxNodeID is the largest node ID (1023).
	MaxNodeID = -1 ^ (-1 << NodeIDBits)

	// MaxSequence is the largest sequence value (4095).
	MaxSequence = -1 ^ (-1 << SequenceBits)

	// TimestampShift positions the timestamp above node ID and sequence (22).
	TimestampShift = NodeIDBits + SequenceBits

	// NodeIDShift positions the node ID above the sequence (12).
	NodeIDShift = SequenceBits

	// AutoNodeID asks the generator to derive its node ID via package nodeid.
	AutoNodeID int64 = -1

	// spinCheckMask controls how often the spin loop checks the context and
	// MaxSpin deadline (every 64 clock samples).
	spinCheckMask = 63
)

// Clock returns the current time in Unix milliseconds.
type Clock func() int64

// WallClock reads the system wall clock. It follows NTP steps, so a clock
// stepped backwards surfaces as a ClockRegressionError.
func WallClock() int64 {
	return time.Now().UnixMilli()
}

// MonotonicClock returns a Clock anchored to the wall time at the moment of
// the call and advanced by the monotonic clock afterwards. It never moves
// backwards within the process, at the price of drifting from wall time if
// the system clock is stepped.
func MonotonicClock() Clock {
	anchor := time.Now()
	return func() int64 {
		return anchor.Add(time.Since(anchor)).UnixMilli()
	}
}

// Config holds the options of a Generator.
//
// DefaultConfig returns a Config that derives the node ID. The zero value
// pins node ID 0.
type Config struct {
	// NodeID pins the node ID when in [0, 1023]. AutoNodeID derives it
	// from Identity.
	NodeID int64

	// Identity derives the node ID when NodeID is AutoNodeID.
	// Default: nodeid.DefaultSource hashed with xxHash, crypto/rand fallback.
	Identity *nodeid.Deriver

	// Clock supplies the current time. Default: WallClock.
	Clock Clock

	// Yield calls runtime.Gosched between clock samples while waiting for
	// the next millisecond.
	Yield bool

	// MaxSpin bounds the wait for the next millisecond after sequence
	// exhaustion. Zero waits as long as it takes; a positive value fails
	// the call with ErrSpinTimeout once exceeded.
	MaxSpin time.Duration

	// Logger receives construction and error events. Default: no-op.
	Logger *zap.Logger
}

// DefaultConfig returns a Config that derives the node ID from the runtime.
func DefaultConfig() Config {
	return Config{NodeID: AutoNodeID}
}

// Validate checks the explicitly set fields of the configuration.
func (c *Config) Validate() error {
	if c.NodeID < AutoNodeID || c.NodeID > MaxNodeID {
		return newConfigError(
			"NodeID",
			strconv.FormatInt(c.NodeID, 10),
			fmt.Sprintf("must be between 0 and %d, or AutoNodeID", MaxNodeID),
		)
	}
	if c.MaxSpin < 0 {
		return newConfigError("MaxSpin", c.MaxSpin.String(), "must be non-negative")
	}
	return nil
}

// Metrics is a snapshot of a generator's counters.
type Metrics struct {
	Generated         int64 // IDs minted
	ClockRegressions  int64 // calls failed with ErrClockRegression
	SequenceOverflows int64 // times all 4096 sequence values of a millisecond were used
	SpinTimeouts      int64 // calls failed with ErrSpinTimeout
	WaitTimeMicros    int64 // total time spent waiting for the next millisecond
}

// Generator mints IDs for one node.
//
// Generator is safe for concurrent use. One mutex guards the whole
// read-modify-write of lastTimestamp and sequence; there is deliberately no
// finer-grained locking since both must change together.
//
// Create exactly one Generator per process: two generators sharing a node ID
// will mint duplicates.
type Generator struct {
	mu            sync.Mutex
	lastTimestamp int64 // ms since Epoch of the last minted ID, -1 before the first
	sequence      int64

	nodeID   int64
	identity nodeid.Identity
	clock    Clock
	yield    bool
	maxSpin  time.Duration
	logger   *zap.Logger

	generated         atomic.Int64
	clockRegressions  atomic.Int64
	sequenceOverflows atomic.Int64
	spinTimeouts      atomic.Int64
	waitTimeUs        atomic.Int64
}

// New creates a generator whose node ID is derived from the runtime.
// It never fails.
func New() *Generator {
	return build(DefaultConfig())
}

// NewWithNodeID creates a generator with a pinned node ID.
func NewWithNodeID(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNodeID, nodeID)
	}
	cfg := DefaultConfig()
	cfg.NodeID = nodeID
	return NewWithConfig(cfg)
}

// NewWithConfig creates a generator from cfg.
//
// Only explicitly invalid settings are rejected; deriving the node ID never
// fails.
func NewWithConfig(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return build(cfg), nil
}

// build assumes cfg is valid.
func build(cfg Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = WallClock
	}

	var identity nodeid.Identity
	if cfg.NodeID == AutoNodeID {
		d := nodeid.Deriver{}
		if cfg.Identity != nil {
			d = *cfg.Identity
		}
		if d.Logger == nil {
			d.Logger = logger
		}
		identity = d.Derive()
	} else {
		identity = nodeid.Pinned(cfg.NodeID)
	}

	g := &Generator{
		lastTimestamp: -1,
		sequence:      0,
		nodeID:        identity.NodeID,
		identity:      identity,
		clock:         clock,
		yield:         cfg.Yield,
		maxSpin:       cfg.MaxSpin,
		logger:        logger.With(zap.Int64("node_id", identity.NodeID)),
	}
	g.logger.Info("id generator ready",
		zap.Stringer("origin", identity.Origin),
		zap.Bool("yield", cfg.Yield),
		zap.Duration("max_spin", cfg.MaxSpin))
	return g
}

// NextID mints the next ID.
//
// It fails only with a *ClockRegressionError (or ErrSpinTimeout when MaxSpin
// is set). On failure the generator state is unchanged.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextLocked(nil)
}

// Next mints the next ID as an ID value.
func (g *Generator) Next() (ID, error) {
	id, err := g.NextID()
	return ID(id), err
}

// NextWithContext mints the next ID, giving up with ErrContextCanceled if ctx
// is done before minting or while waiting for the next millisecond.
func (g *Generator) NextWithContext(ctx context.Context) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, canceled(ctx)
	default:
	}

	id, err := g.nextLocked(ctx)
	return ID(id), err
}

// MustNextID mints the next ID and panics on error.
func (g *Generator) MustNextID() int64 {
	id, err := g.NextID()
	if err != nil {
		panic(err)
	}
	return id
}

// NextBatch mints count IDs under a single lock acquisition.
//
// On error the IDs minted so far are returned along with the error.
func (g *Generator) NextBatch(ctx context.Context, count int) ([]ID, error) {
	if count <= 0 {
		return []ID{}, nil
	}
	ids := make([]ID, 0, count)

	g.mu.Lock()
	defer g.mu.Unlock()

	done := ctx.Done()
	for i := 0; i < count; i++ {
		if i%100 == 0 {
			select {
			case <-done:
				return ids, canceled(ctx)
			default:
			}
		}
		id, err := g.nextLocked(ctx)
		if err != nil {
			return ids, err
		}
		ids = append(ids, ID(id))
	}
	return ids, nil
}

// nextLocked implements the minting algorithm. g.mu must be held.
//
//	ID = (timestamp << 22) | (nodeID << 12) | sequence
//
// State is committed only once an ID is certain to be returned.
func (g *Generator) nextLocked(ctx context.Context) (int64, error) {
	now := g.clock() - Epoch

	if now < g.lastTimestamp {
		g.clockRegressions.Add(1)
		err := newClockRegressionError(now, g.lastTimestamp, g.nodeID)
		g.logger.Error("clock moved backwards",
			zap.Int64("drift_ms", err.Drift),
			zap.Int64("current", now),
			zap.Int64("last", g.lastTimestamp))
		return 0, err
	}

	var seq int64
	if now == g.lastTimestamp {
		seq = (g.sequence + 1) & MaxSequence
		if seq == 0 {
			g.sequenceOverflows.Add(1)
			var err error
			now, err = g.waitNextMillis(ctx)
			if err != nil {
				return 0, err
			}
		}
	}

	g.lastTimestamp = now
	g.sequence = seq
	g.generated.Add(1)

	return (now << TimestampShift) | (g.nodeID << NodeIDShift) | seq, nil
}

// waitNextMillis spins on the clock until it passes g.lastTimestamp.
//
// This is a busy-wait, not a scheduler suspension: exhaustion only lasts
// until the current millisecond ends. The context and MaxSpin deadline are
// checked every 64 samples.
func (g *Generator) waitNextMillis(ctx context.Context) (int64, error) {
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	start := time.Now()
	for i := 0; ; i++ {
		now := g.clock() - Epoch
		if now > g.lastTimestamp {
			g.waitTimeUs.Add(time.Since(start).Microseconds())
			return now, nil
		}

		if i&spinCheckMask == 0 {
			if g.maxSpin > 0 {
				if waited := time.Since(start); waited > g.maxSpin {
					g.spinTimeouts.Add(1)
					g.waitTimeUs.Add(waited.Microseconds())
					g.logger.Warn("gave up waiting for next millisecond",
						zap.Duration("waited", waited),
						zap.Int64("last", g.lastTimestamp))
					return 0, fmt.Errorf("%w: waited %v (max %v)", ErrSpinTimeout, waited, g.maxSpin)
				}
			}
			if done != nil {
				select {
				case <-done:
					g.waitTimeUs.Add(time.Since(start).Microseconds())
					return 0, canceled(ctx)
				default:
				}
			}
		}

		if g.yield {
			runtime.Gosched()
		}
	}
}

// canceled wraps ctx.Err() so callers can tell a deadline from a cancel.
func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrContextCanceled, ctx.Err())
}

// NodeID returns the node ID embedded in every ID of this generator.
func (g *Generator) NodeID() int64 {
	return g.nodeID
}

// Identity reports how the node ID was obtained.
func (g *Generator) Identity() nodeid.Identity {
	return g.identity
}

// Metrics returns a snapshot of the generator's counters.
func (g *Generator) Metrics() Metrics {
	return Metrics{
		Generated:         g.generated.Load(),
		ClockRegressions:  g.clockRegressions.Load(),
		SequenceOverflows: g.sequenceOverflows.Load(),
		SpinTimeouts:      g.spinTimeouts.Load(),
		WaitTimeMicros:    g.waitTimeUs.Load(),
	}
}

// ResetMetrics zeroes the counters. Intended for tests.
func (g *Generator) ResetMetrics() {
	g.generated.Store(0)
	g.clockRegressions.Store(0)
	g.sequenceOverflows.Store(0)
	g.spinTimeouts.Store(0)
	g.waitTimeUs.Store(0)
}

// Decompose splits an ID into its timestamp (Unix milliseconds), node ID and
// sequence.
//
//	timestamp = (id >>> 22) + Epoch
//	nodeID    = (id >> 12) & 0x3FF
//	sequence  = id & 0xFFF
func Decompose(id int64) (timestamp int64, nodeID int64, sequence int64) {
	timestamp = int64(uint64(id)>>TimestampShift) + Epoch
	nodeID = (id >> NodeIDShift) & MaxNodeID
	sequence = id & MaxSequence
	return
}

// ExtractTime returns the instant embedded in an ID.
func ExtractTime(id int64) time.Time {
	ts, _, _ := Decompose(id)
	return time.UnixMilli(ts)
}

// The process generator. One per process; see Init and Default.
var (
	processGen  *Generator
	processOnce sync.Once
)

// Init creates the process generator from cfg. It must run before the first
// call to Default or NextID; afterwards it returns ErrAlreadyInitialized.
func Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := ErrAlreadyInitialized
	processOnce.Do(func() {
		processGen = build(cfg)
		err = nil
	})
	return err
}

// Default returns the process generator, creating it with New if Init was
// never called.
func Default() *Generator {
	processOnce.Do(func() {
		processGen = New()
	})
	return processGen
}

// NextID mints an ID from the process generator.
func NextID() (int64, error) {
	return Default().NextID()
}

// MustNextID mints an ID from the process generator and panics on error.
func MustNextID() int64 {
	return Default().MustNextID()
}
