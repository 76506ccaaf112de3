// Package viewer derives the identity used to deduplicate views.
//
// Authenticated requests are identified by user id. Anonymous requests are
// identified by a SHA-256 over client IP, User-Agent and an optional
// client-supplied fingerprint. The raw components never leave this package.
package viewer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
)

const (
	// HashSize is the length of an anonymous viewer hash in bytes.
	HashSize = sha256.Size

	// MaxFingerprintLength bounds the client fingerprint, in characters.
	MaxFingerprintLength = 256

	// UnknownIP stands in when no client address can be determined.
	UnknownIP = "0.0.0.0"

	unknownUserAgent = "unknown"
)

// Identity is either an authenticated user id or an anonymous hash.
// Exactly one of UserID and Hash is meaningful.
type Identity struct {
	UserID *int64
	Hash   []byte
}

// Authenticated reports whether the identity carries a user id.
func (id Identity) Authenticated() bool {
	return id.UserID != nil
}

// String renders a log-safe label: "user:<id>" or "anon:<hash prefix>".
func (id Identity) String() string {
	if id.UserID != nil {
		return "user:" + strconv.FormatInt(*id.UserID, 10)
	}
	if len(id.Hash) >= 6 {
		return "anon:" + hex.EncodeToString(id.Hash[:6])
	}
	return "anon:?"
}

// Resolver builds identities from HTTP requests.
type Resolver struct {
	// TrustForwardedFor enables X-Forwarded-For. Only set it when the service
	// sits behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// NewResolver creates a Resolver.
func NewResolver(trustForwardedFor bool) *Resolver {
	return &Resolver{TrustForwardedFor: trustForwardedFor}
}

// Resolve returns the authenticated identity when userID is set, otherwise the
// anonymous hash of the request. It has no failure mode.
func (res *Resolver) Resolve(userID *int64, r *http.Request, fingerprint string) Identity {
	if userID != nil {
		uid := *userID
		return Identity{UserID: &uid}
	}
	return Identity{Hash: Hash(res.ClientIP(r), r.UserAgent(), fingerprint)}
}

// ClientIP returns the leftmost valid X-Forwarded-For address when forwarded
// headers are trusted, else the socket peer, else UnknownIP.
func (res *Resolver) ClientIP(r *http.Request) string {
	if res.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(strings.TrimSpace(host)); ip != nil {
		return ip.String()
	}
	return UnknownIP
}

// ReadFingerprint extracts the optional "fingerprint" string from a JSON body.
// Missing, non-string or malformed input yields "".
func ReadFingerprint(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	raw, ok := payload["fingerprint"]
	if !ok {
		return ""
	}

	var fingerprint string
	if err := json.Unmarshal(raw, &fingerprint); err != nil {
		return ""
	}
	return truncateRunes(fingerprint, MaxFingerprintLength)
}

// Hash computes SHA-256 over "ip|userAgent" or "ip|userAgent|fingerprint".
func Hash(ip, userAgent, fingerprint string) []byte {
	if userAgent == "" {
		userAgent = unknownUserAgent
	}

	components := []string{ip, userAgent}
	if fingerprint != "" {
		components = append(components, fingerprint)
	}

	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return sum[:]
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
