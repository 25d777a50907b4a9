package domain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

var ErrInvalidOfferID = errors.New("invalid offer id")

// OfferID is a store-level identifier. Outside the store it is always written
// as base58 of its 8-byte little-endian encoding.
type OfferID uint64

// OfferIDFromInt64 converts a BIGINT key into an OfferID, preserving all 64 bits.
func OfferIDFromInt64(v int64) OfferID {
	return OfferID(uint64(v))
}

// Int64 returns the BIGINT form used by the store.
func (id OfferID) Int64() int64 {
	return int64(uint64(id))
}

// String returns the external base58 form.
func (id OfferID) String() string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return base58.Encode(buf[:])
}

// ParseOfferID decodes the external base58 form.
func ParseOfferID(s string) (OfferID, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidOfferID)
	}
	raw := base58.Decode(s)
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: expected 8 bytes, got %d", ErrInvalidOfferID, len(raw))
	}
	id := OfferID(binary.LittleEndian.Uint64(raw))
	// base58 tolerates redundant leading zero digits; only the canonical form round-trips.
	if id.String() != s {
		return 0, fmt.Errorf("%w: non-canonical encoding", ErrInvalidOfferID)
	}
	return id, nil
}

func (id OfferID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *OfferID) UnmarshalText(text []byte) error {
	parsed, err := ParseOfferID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id OfferID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *OfferID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOfferID, err)
	}
	return id.UnmarshalText([]byte(s))
}
