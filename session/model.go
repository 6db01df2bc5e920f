package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/MrEthical07/goIdentity/internal"
)

const (
	refreshPrefix   = "refresh"
	blacklistPrefix = "blacklist"
)

// Slot identifies the refresh-store key of one login. SessionID is empty
// for single-session principals, whose slot is shared by every login.
type Slot struct {
	TenantID  string
	Subject   string
	SessionID string
}

// Key returns refresh:{tenant}:{subject} or refresh:{tenant}:{subject}:{sessionId}.
func (s Slot) Key() string {
	var b strings.Builder
	b.Grow(len(refreshPrefix) + len(s.TenantID) + len(s.Subject) + len(s.SessionID) + 3)
	b.WriteString(refreshPrefix)
	b.WriteByte(':')
	b.WriteString(s.TenantID)
	b.WriteByte(':')
	b.WriteString(s.Subject)
	if s.SessionID != "" {
		b.WriteByte(':')
		b.WriteString(s.SessionID)
	}
	return b.String()
}

// Single reports whether the slot is the shared single-session slot.
func (s Slot) Single() bool {
	return s.SessionID == ""
}

func subjectPattern(tenantID, subject string) string {
	return refreshPrefix + ":" + internal.EscapeGlob(tenantID) + ":" + internal.EscapeGlob(subject) + ":*"
}

func blacklistKey(token string) string {
	return blacklistPrefix + ":" + Digest(token)
}

// Digest returns the hex SHA-256 of a token. Tokens are never stored or
// used as keys verbatim.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the first 8 hex chars of the token digest, for logs.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return Digest(token)[:8]
}
