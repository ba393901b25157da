// Package ids generates and validates the two identifier shapes used
// throughout the core: 128-bit UUIDs for games/teams/playlists/songs,
// and 12-hex-character buzzer ids (spec §3).
package ids

import (
	"regexp"

	"github.com/google/uuid"
)

// New returns a freshly generated, lowercase-hyphenated UUID string.
func New() string {
	return uuid.NewString()
}

var buzzerIDPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// ValidBuzzerID reports whether id is exactly 12 lowercase hex
// characters, per spec §3 and §6.
func ValidBuzzerID(id string) bool {
	return buzzerIDPattern.MatchString(id)
}

// ValidUUID reports whether id parses as a UUID.
func ValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
