// Package seqgen - id.go provides the ID type: field extraction, encodings
// and integration with encoding/json, encoding and database/sql.

package seqgen

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a minted identifier.
//
// The value is carried as int64 because that is what databases and query
// engines store, but the 64 bits are an unsigned layout: timestamps past
// 2084 set the top bit. Comparisons and text encodings therefore use the
// unsigned value, while String, JSON and SQL keep the signed decimal form
// so the ID round-trips through BIGINT columns unchanged.
//
//	id, _ := gen.Next()
//	fmt.Println(id.Base62(), id.NodeID(), id.Time())
type ID int64

// Int64 returns the ID as an int64.
func (id ID) Int64() int64 {
	return int64(id)
}

// Uint64 returns the ID as a uint64, the value IDs are ordered by.
func (id ID) Uint64() uint64 {
	return uint64(id)
}

// String returns the signed decimal representation.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Base2 returns the binary representation of the unsigned value.
func (id ID) Base2() string {
	return encodeBase2(uint64(id))
}

// Base58 returns the Bitcoin-alphabet encoding of the unsigned value.
func (id ID) Base58() string {
	return encodeBase58(uint64(id))
}

// Base62 returns the URL-safe alphanumeric encoding of the unsigned value.
func (id ID) Base62() string {
	return encodeBase62(uint64(id))
}

// Hex returns the lowercase hexadecimal encoding of the unsigned value.
func (id ID) Hex() string {
	return encodeHex(uint64(id))
}

// Timestamp returns the embedded time in Unix milliseconds.
func (id ID) Timestamp() int64 {
	return int64(uint64(id)>>TimestampShift) + Epoch
}

// Time returns the embedded time.
func (id ID) Time() time.Time {
	return time.UnixMilli(id.Timestamp())
}

// NodeID returns the node ID field.
func (id ID) NodeID() int64 {
	return (int64(id) >> NodeIDShift) & MaxNodeID
}

// Sequence returns the sequence field.
func (id ID) Sequence() int64 {
	return int64(id) & MaxSequence
}

// Components returns timestamp (Unix ms), node ID and sequence.
func (id ID) Components() (timestamp int64, nodeID int64, sequence int64) {
	return Decompose(int64(id))
}

// IsValid reports whether the ID could have been minted by now: its
// timestamp lies after Epoch and no more than a day in the future.
func (id ID) IsValid() bool {
	if id == 0 {
		return false
	}
	ts := id.Timestamp()
	if ts <= Epoch {
		return false
	}
	return ts <= time.Now().UnixMilli()+int64(24*time.Hour/time.Millisecond)
}

// Age returns the time elapsed since the ID was minted.
func (id ID) Age() time.Duration {
	return time.Since(id.Time())
}

// Compare returns -1, 0 or 1 comparing the unsigned values.
func (id ID) Compare(other ID) int {
	a, b := uint64(id), uint64(other)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether id sorts before other.
func (id ID) Before(other ID) bool {
	return id.Compare(other) < 0
}

// After reports whether id sorts after other.
func (id ID) After(other ID) bool {
	return id.Compare(other) > 0
}

// MarshalJSON encodes the ID as a quoted decimal string, since JavaScript
// numbers lose precision past 2^53.
func (id ID) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 22)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, int64(id), 10)
	buf = append(buf, '"')
	return buf, nil
}

// UnmarshalJSON accepts a quoted decimal string or a bare number.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := bytes.TrimSpace(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if len(s) == 0 {
		return fmt.Errorf("%w: empty JSON value", ErrInvalidID)
	}
	i, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	*id = ID(i)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Scan implements sql.Scanner for INTEGER/BIGINT and text columns.
// NULL scans as zero.
func (id *ID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*id = 0
	case int64:
		*id = ID(v)
	case []byte:
		parsed, err := ParseString(string(v))
		if err != nil {
			return err
		}
		*id = parsed
	case string:
		parsed, err := ParseString(v)
		if err != nil {
			return err
		}
		*id = parsed
	default:
		return fmt.Errorf("%w: cannot scan %T into ID", ErrInvalidID, value)
	}
	return nil
}

// Value implements driver.Valuer, storing the ID as int64.
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}

// ParseString parses a signed decimal string.
func ParseString(s string) (ID, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return ID(i), nil
}

// ParseBase2 parses a binary string.
func ParseBase2(s string) (ID, error) {
	v, err := decodeBase2(s)
	return ID(v), err
}

// ParseBase58 parses a Base58 string.
func ParseBase58(s string) (ID, error) {
	v, err := decodeBase58(s)
	return ID(v), err
}

// ParseBase62 parses a Base62 string.
func ParseBase62(s string) (ID, error) {
	v, err := decodeBase62(s)
	return ID(v), err
}

// ParseHex parses a hexadecimal string, either case.
func ParseHex(s string) (ID, error) {
	v, err := decodeHex(s)
	return ID(v), err
}

// Parse accepts decimal, Base62 or hexadecimal input, tried in that order.
// Decimal wins for all-digit input. Base58 is not detected: its alphabet is
// a subset of Base62's, so Base58 input must go through ParseBase58 or
// ParseAs.
func Parse(s string) (ID, error) {
	if id, err := ParseString(s); err == nil {
		return id, nil
	}
	if id, err := ParseBase62(s); err == nil {
		return id, nil
	}
	if id, err := ParseHex(s); err == nil {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q is not decimal, base62 or hex", ErrInvalidID, s)
}

// ParseAs parses s in the named encoding: decimal (dec), base2 (binary,
// bin), base58 (b58), base62 (b62) or hex (x). An empty name means Parse.
func ParseAs(s, encoding string) (ID, error) {
	switch strings.ToLower(encoding) {
	case "":
		return Parse(s)
	case "decimal", "dec":
		return ParseString(s)
	case "base2", "binary", "bin":
		return ParseBase2(s)
	case "base58", "b58":
		return ParseBase58(s)
	case "base62", "b62":
		return ParseBase62(s)
	case "hex", "x":
		return ParseHex(s)
	default:
		return 0, fmt.Errorf("%w: unknown encoding %q", ErrInvalidID, encoding)
	}
}
