package seqgen

// Maximum encoded lengths of a 64-bit value. Longer inputs are rejected
// before decoding.
const (
	MaxBase2Len  = 64
	MaxBase58Len = 11 // ceil(log58(2^64))
	MaxBase62Len = 11 // ceil(log62(2^64))
	MaxHexLen    = 16
)

// Encoding errors. All of them wrap ErrInvalidID.
var (
	ErrInvalidBase2    = wrapInvalid("invalid base2 encoding")
	ErrInvalidBase58   = wrapInvalid("invalid base58 encoding")
	ErrInvalidBase62   = wrapInvalid("invalid base62 encoding")
	ErrInvalidHex      = wrapInvalid("invalid hexadecimal encoding")
	ErrStringTooLong   = wrapInvalid("encoded string exceeds maximum length")
	ErrIntegerOverflow = wrapInvalid("decoded value would overflow 64 bits")
	ErrEmptyString     = wrapInvalid("empty encoded string")
)

type invalidIDError struct{ msg string }

func (e *invalidIDError) Error() string { return e.msg }
func (e *invalidIDError) Unwrap() error { return ErrInvalidID }

func wrapInvalid(msg string) error { return &invalidIDError{msg: msg} }

// Base58 uses the Bitcoin alphabet without 0, O, I and l.
const encodeBase58Map = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

// Base62 is URL-safe alphanumeric.
const encodeBase62Map = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const encodeHexMap = "0123456789abcdef"

// Decode tables, 0xFF marks characters outside the alphabet.
var (
	decodeBase58Map [256]byte
	decodeBase62Map [256]byte
	decodeHexMap    [256]byte
)

func init() {
	for i := 0; i < 256; i++ {
		decodeBase58Map[i] = 0xFF
		decodeBase62Map[i] = 0xFF
		decodeHexMap[i] = 0xFF
	}
	for i := 0; i < len(encodeBase58Map); i++ {
		decodeBase58Map[encodeBase58Map[i]] = byte(i)
	}
	for i := 0; i < len(encodeBase62Map); i++ {
		decodeBase62Map[encodeBase62Map[i]] = byte(i)
	}
	for i := 0; i < len(encodeHexMap); i++ {
		decodeHexMap[encodeHexMap[i]] = byte(i)
		if encodeHexMap[i] >= 'a' {
			decodeHexMap[encodeHexMap[i]-32] = byte(i)
		}
	}
}

// encodeBase encodes v in the given alphabet, most significant digit first.
func encodeBase(v uint64, alphabet string) string {
	base := uint64(len(alphabet))
	if v < base {
		return string(alphabet[v])
	}

	var buf [64]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = alphabet[v%base]
		v /= base
	}
	return string(buf[i:])
}

// decodeBase decodes s in an alphabet described by table, with overflow
// detection on the full unsigned 64-bit range.
func decodeBase(s string, table *[256]byte, base uint64, maxLen int, invalid error) (uint64, error) {
	if s == "" {
		return 0, ErrEmptyString
	}
	if len(s) > maxLen {
		return 0, ErrStringTooLong
	}

	const maxUint64 = ^uint64(0)
	var v uint64
	for i := 0; i < len(s); i++ {
		d := table[s[i]]
		if d == 0xFF {
			return 0, invalid
		}
		if v > (maxUint64-uint64(d))/base {
			return 0, ErrIntegerOverflow
		}
		v = v*base + uint64(d)
	}
	return v, nil
}

func encodeBase58(v uint64) string { return encodeBase(v, encodeBase58Map) }
func encodeBase62(v uint64) string { return encodeBase(v, encodeBase62Map) }

func decodeBase58(s string) (uint64, error) {
	return decodeBase(s, &decodeBase58Map, 58, MaxBase58Len, ErrInvalidBase58)
}

func decodeBase62(s string) (uint64, error) {
	return decodeBase(s, &decodeBase62Map, 62, MaxBase62Len, ErrInvalidBase62)
}

// encodeHex uses 4-bit shifts instead of division.
func encodeHex(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = encodeHexMap[v&0x0F]
		v >>= 4
	}
	return string(buf[i:])
}

func decodeHex(s string) (uint64, error) {
	if s == "" {
		return 0, ErrEmptyString
	}
	if len(s) > MaxHexLen {
		return 0, ErrStringTooLong
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d := decodeHexMap[s[i]]
		if d == 0xFF {
			return 0, ErrInvalidHex
		}
		v = v<<4 | uint64(d)
	}
	return v, nil
}

func encodeBase2(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [64]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = '0' + byte(v&1)
		v >>= 1
	}
	return string(buf[i:])
}

func decodeBase2(s string) (uint64, error) {
	if s == "" {
		return 0, ErrEmptyString
	}
	if len(s) > MaxBase2Len {
		return 0, ErrStringTooLong
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
			v <<= 1
		case '1':
			v = v<<1 | 1
		default:
			return 0, ErrInvalidBase2
		}
	}
	return v, nil
}
