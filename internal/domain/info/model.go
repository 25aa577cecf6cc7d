// Package info defines the shared configuration entries the dapp frontend
// reads at startup.
package info

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InitialVersion is assigned to every freshly created entry.
const InitialVersion = "1.0.0"

// Entry is one key-addressed configuration record. Entries are never
// removed; Valid flips to false when an entry is retired.
type Entry struct {
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	Version   string    `json:"version"`
	Valid     bool      `json:"valid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NextPatch bumps the patch component of a semantic version string.
// Malformed versions restart at the initial version.
func NextPatch(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return InitialVersion
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return InitialVersion
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1)
}
