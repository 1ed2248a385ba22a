// Package account defines the opaque caller identity shared by stores, users
// and the issuer, together with its SS58 and hex text forms.
package account

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// GenericPrefix is the SS58 address format used when rendering identities.
const GenericPrefix byte = 42

const (
	idLength       = 32
	checksumLength = 2
	maxSimple      = 63
)

var (
	// ErrInvalidAddress is returned when text cannot be decoded into an ID.
	ErrInvalidAddress = errors.New("account: invalid address")

	ss58Context = []byte("SS58PRE")
)

// ID is a 32-byte account identity. The zero value is a valid, if unusual,
// identity.
type ID [idLength]byte

// Parse decodes an SS58 address or a 0x-prefixed hex public key.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return FromHex(s)
	}
	id, _, err := Decode(s)
	return id, err
}

// MustParse is Parse for fixtures and tests. It panics on malformed input.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// FromHex decodes a 64 hex digit public key, with or without the 0x prefix.
func FromHex(s string) (ID, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != idLength {
		return ID{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, idLength, len(raw))
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// Decode parses an SS58 address and returns the identity and its network
// prefix. Only single-byte prefixes are supported.
func Decode(address string) (ID, byte, error) {
	raw := base58.Decode(address)
	if len(raw) != 1+idLength+checksumLength {
		return ID{}, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}
	prefix := raw[0]
	if prefix > maxSimple {
		return ID{}, 0, fmt.Errorf("%w: unsupported prefix %d", ErrInvalidAddress, prefix)
	}
	body := raw[:1+idLength]
	sum := checksum(body)
	if sum[0] != raw[1+idLength] || sum[1] != raw[2+idLength] {
		return ID{}, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	var id ID
	copy(id[:], raw[1:1+idLength])
	return id, prefix, nil
}

// Encode renders id as an SS58 address using the given network prefix.
func Encode(id ID, prefix byte) string {
	body := make([]byte, 0, 1+idLength+checksumLength)
	body = append(body, prefix)
	body = append(body, id[:]...)
	sum := checksum(body)
	body = append(body, sum[:checksumLength]...)
	return base58.Encode(body)
}

func checksum(body []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(ss58Context)+len(body))
	buf = append(buf, ss58Context...)
	buf = append(buf, body...)
	return blake2b.Sum512(buf)
}

// String renders the generic SS58 address.
func (id ID) String() string {
	return Encode(id, GenericPrefix)
}

// Hex renders the 0x-prefixed public key.
func (id ID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IsZero reports whether every byte of the identity is zero.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Bytes returns a copy of the raw identity.
func (id ID) Bytes() []byte {
	out := make([]byte, idLength)
	copy(out, id[:])
	return out
}

// FromBytes converts a raw 32-byte slice, as stored in the database.
func FromBytes(b []byte) (ID, error) {
	if len(b) != idLength {
		return ID{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, idLength, len(b))
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
