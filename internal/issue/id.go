package issue

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// idPattern matches a full 40-hex issue or comment identifier.
var idPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// NewID creates an identifier for an issue. The content fields seed the
// hash so identifiers are stable-looking across a team's databases, and
// the timestamp plus a random salt make collisions between simultaneous
// identical creations effectively impossible.
func NewID(title, description string, now time.Time) string {
	return hashID(fmt.Sprintf("%s|%s|%d", title, description, now.UnixNano()))
}

// NewCommentID creates an identifier for a comment.
func NewCommentID(author, body string, now time.Time) string {
	return hashID(fmt.Sprintf("%s|%s|%d", author, body, now.UnixNano()))
}

func hashID(content string) string {
	salt := make([]byte, 16)
	rand.Read(salt)

	h := sha1.New()
	h.Write([]byte(content))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidID reports whether s is a well-formed full identifier.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// MatchesID reports whether prefix unambiguously abbreviates id.
// Prefixes shorter than 4 characters are rejected.
func MatchesID(id, prefix string) bool {
	if len(prefix) < 4 || len(prefix) > len(id) {
		return false
	}
	return id[:len(prefix)] == prefix
}
