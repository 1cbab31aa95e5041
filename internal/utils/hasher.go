package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Hash generates a SHA-256 hash of the input string
func Hash(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// NewsID derives a stable item id. Items with a URL get a name-based UUID of
// the URL; items without one are fingerprinted from source id and content.
func NewsID(sourceURL, sourceID, title, description string) string {
	if u := strings.TrimSpace(sourceURL); u != "" {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(u)).String()
	}
	return Hash(sourceID + "\x00" + title + "\x00" + description)[:32]
}
