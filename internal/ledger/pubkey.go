package ledger

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

const PublicKeyLength = 32

var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a 32-byte ledger account address.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 account address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	if s == "" {
		return pk, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	raw := base58.Decode(s)
	if len(raw) != PublicKeyLength {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidPublicKey, s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}
