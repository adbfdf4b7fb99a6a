package nodeid

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// HashFunc maps an identity hint to an integer. Only the low 10 bits are used.
type HashFunc func(hint string) uint64

// XXHash hashes the hint with xxHash64. It is the default.
func XXHash(hint string) uint64 {
	return xxhash.Sum64String(hint)
}

// Murmur3 hashes the hint with MurmurHash3 (x64, 128-bit, low half).
func Murmur3(hint string) uint64 {
	return murmur3.Sum64([]byte(hint))
}

// FNV hashes the hint with 32-bit FNV-1a.
func FNV(hint string) uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hint))
	return uint64(h.Sum32())
}

// JavaString reproduces Java's String.hashCode over UTF-16 code units.
// Node IDs derived with it match those of JVM generators that mask
// executorId.hashCode() to 10 bits, so both can share a cluster's node space.
func JavaString(hint string) uint64 {
	var h int32
	for _, u := range utf16.Encode([]rune(hint)) {
		h = 31*h + int32(u)
	}
	return uint64(uint32(h))
}

// HashByName resolves a configured hash name. The empty name selects XXHash.
func HashByName(name string) (HashFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "xxhash", "xxh64":
		return XXHash, nil
	case "murmur3", "murmur":
		return Murmur3, nil
	case "java", "javastring":
		return JavaString, nil
	case "fnv", "fnv1a":
		return FNV, nil
	default:
		return nil, fmt.Errorf("unknown hash %q (want xxhash, murmur3, java or fnv)", name)
	}
}
