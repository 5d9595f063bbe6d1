package solana

import (
	"crypto/sha256"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// PublicKeyLength is the byte length of a Solana public key.
const PublicKeyLength = 32

// ErrInvalidAddress is returned for strings that are not base58 public keys.
var ErrInvalidAddress = errors.New("invalid solana address")

// ValidateAddress checks that addr is a base58-encoded 32-byte public key.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.Wrap(ErrInvalidAddress, "empty")
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return errors.Wrapf(ErrInvalidAddress, "%s: %v", addr, err)
	}
	if len(decoded) != PublicKeyLength {
		return errors.Wrapf(ErrInvalidAddress, "%s: decoded length %d", addr, len(decoded))
	}
	return nil
}

// DeriveMetadataPDA derives the Metaplex metadata account for mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func DeriveMetadataPDA(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil || len(mintBytes) != PublicKeyLength {
		return "", errors.Wrapf(ErrInvalidAddress, "mint %s", mint)
	}
	programBytes, err := base58.Decode(MetaplexProgramID)
	if err != nil {
		return "", errors.Wrap(err, "decode metaplex program id")
	}

	seeds := [][]byte{
		[]byte("metadata"),
		programBytes,
		mintBytes,
	}

	pda := findProgramAddress(seeds, programBytes)
	if pda == "" {
		return "", errors.Errorf("no off-curve bump for mint %s", mint)
	}
	return pda, nil
}

// findProgramAddress searches bumps from 255 down for an off-curve address:
// sha256(seeds || bump || programID || "ProgramDerivedAddress").
func findProgramAddress(seeds [][]byte, programID []byte) string {
	for bump := 255; bump >= 0; bump-- {
		var data []byte
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}
	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
