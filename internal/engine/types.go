package engine

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Seeds key the random stream of a session.
type Seeds struct {
	Server string `json:"-"` // ASCII; do NOT hex-decode
	Client string `json:"client_seed"`
}

// ServerHash returns the hex SHA-256 of the server seed, safe to show before
// the seed itself is revealed.
func (s Seeds) ServerHash() string {
	if s.Server == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(s.Server))
	return hex.EncodeToString(hash[:])
}

// NewSeeds generates a 32-byte hex server seed from crypto/rand and a UUID
// client seed.
func NewSeeds() (Seeds, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Seeds{}, fmt.Errorf("read server seed: %w", err)
	}
	return Seeds{
		Server: hex.EncodeToString(b[:]),
		Client: uuid.NewString(),
	}, nil
}
