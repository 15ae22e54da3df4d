package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns prefix_ followed by 32 random hex characters, or only the hex
// when prefix is empty.
func NewID(prefix string) string {
	value := randomHex(16)
	if prefix == "" {
		return value
	}
	return prefix + "_" + value
}

// RequestID returns a short random identifier for correlating log lines.
func RequestID() string {
	return randomHex(8)
}

func randomHex(size int) string {
	bytes := make([]byte, size)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
