package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// SumSHA256 returns the SHA-256 checksum of the provided data.
func SumSHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ProgramDigest returns a short hex digest of program text, used to correlate
// generation, validation and deployment log lines for the same code.
func ProgramDigest(code string) string {
	sum := SumSHA256([]byte(code))
	return hex.EncodeToString(sum[:6])
}
