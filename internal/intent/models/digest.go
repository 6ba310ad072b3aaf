package models

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	dErrors "civitas/pkg/domain-errors"
)

// DigestAlgorithm selects the hash behind essential hashes and match codes.
// Declarations only match when built with the same algorithm.
type DigestAlgorithm string

const (
	DigestSHA256  DigestAlgorithm = "sha256"
	DigestBLAKE2b DigestAlgorithm = "blake2b"
)

// digestPrefix marks every digest string.
const digestPrefix = "0x"

func ParseDigestAlgorithm(s string) (DigestAlgorithm, error) {
	switch a := DigestAlgorithm(s); a {
	case DigestSHA256, DigestBLAKE2b:
		return a, nil
	case "":
		return DigestSHA256, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported digest algorithm %q", s)
}

// Sum hashes data and hex-encodes it behind the 0x prefix. Unknown values
// fall back to SHA-256.
func (a DigestAlgorithm) Sum(data string) string {
	var sum [32]byte
	switch a {
	case DigestBLAKE2b:
		sum = blake2b.Sum256([]byte(data))
	default:
		sum = sha256.Sum256([]byte(data))
	}
	return digestPrefix + hex.EncodeToString(sum[:])
}
