package anchor

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// DigestSize is the byte length of every fingerprint.
const DigestSize = 32

// Digest is a keccak-256 fingerprint.
type Digest [DigestSize]byte

// ErrInvalidDigest is returned when a hex string is not a 32-byte digest.
var ErrInvalidDigest = errors.New("invalid digest")

// Fingerprint derives the legacy keccak-256 digest of data. Role ids and
// anchors already committed by EVM clients use the same hash.
func Fingerprint(data []byte) Digest {
	var d Digest
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	copy(d[:], h.Sum(nil))
	return d
}

// FingerprintString is Fingerprint over the UTF-8 bytes of s.
func FingerprintString(s string) Digest {
	return Fingerprint([]byte(s))
}

// Hex returns the 0x-prefixed lowercase hex form.
func (d Digest) Hex() string {
	return "0x" + hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether d is all zero bytes.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest accepts a 64-character hex string with or without the 0x prefix.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(trimmed) != 2*DigestSize {
		return d, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidDigest, 2*DigestSize, len(trimmed))
	}
	if _, err := hex.Decode(d[:], []byte(trimmed)); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	return d, nil
}
