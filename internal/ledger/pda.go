package ledger

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

var (
	ErrInvalidSeeds = errors.New("invalid program address seeds")
	ErrOnCurve      = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump = errors.New("no viable bump seed")
)

var escrowSeed = []byte("escrow")

// CreateProgramAddress hashes seeds under programID. The result is rejected
// when it is a valid ed25519 point, since such an address could have a
// private key.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > maxSeeds {
		return PublicKey{}, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return PublicKey{}, fmt.Errorf("%w: seed of %d bytes", ErrInvalidSeeds, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out PublicKey
	copy(out[:], h.Sum(nil))
	if isOnCurve(out[:]) {
		return PublicKey{}, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve address.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// EscrowAddress is the account holding a depositor's escrowed DD.
func EscrowAddress(programID, depositor PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{escrowSeed, depositor[:]}, programID)
	return addr, err
}

// AssociatedTokenAddress is owner's canonical token account for mint.
func AssociatedTokenAddress(owner, tokenProgram, mint, associatedTokenProgram PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{owner[:], tokenProgram[:], mint[:]}, associatedTokenProgram)
	return addr, err
}

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
