// Package session issues and verifies the stateless admin session token.
//
// A token is "{expiryEpochMs}:{hex HMAC-SHA256(secret, "{expiry}|{credential}")}".
// The credential is never carried in the token; Verify recomputes the MAC
// with the credential configured now, so changing the admin credential
// invalidates every outstanding token.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	// CookieName is the cookie carrying the session token.
	CookieName = "admin_session"
	// HeaderName carries the raw admin credential on the legacy path.
	HeaderName = "X-Admin-Password"
	// DefaultTTL is the lifetime of a login session.
	DefaultTTL = 24 * time.Hour
	// FallbackSecret signs tokens when nothing else is configured.
	FallbackSecret = "dev-secret"
)

// Config is the explicit configuration a Codec is built from.
type Config struct {
	SessionSecret string // dedicated session secret
	GenericSecret string // generic application secret
	Credential    string // shared admin credential
}

// ResolveSecret returns the first non-empty of the dedicated secret, the
// generic secret, the credential and FallbackSecret.
func (c Config) ResolveSecret() string {
	for _, s := range []string{c.SessionSecret, c.GenericSecret, c.Credential} {
		if s != "" {
			return s
		}
	}
	return FallbackSecret
}

// Codec signs and verifies session tokens.
type Codec struct {
	key        []byte
	credential string
	nowFunc    func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.nowFunc = now }
}

// NewCodec builds a Codec from cfg.
func NewCodec(cfg Config, opts ...Option) *Codec {
	c := &Codec{
		key:        []byte(cfg.ResolveSecret()),
		credential: cfg.Credential,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue returns a token for credential that expires ttl from now.
func (c *Codec) Issue(credential string, ttl time.Duration) string {
	expiry := c.nowFunc().UnixMilli() + ttl.Milliseconds()
	return strconv.FormatInt(expiry, 10) + ":" + hex.EncodeToString(c.sign(expiry, credential))
}

// Verify reports whether token is well formed, unexpired and signed for the
// currently configured credential.
func (c *Codec) Verify(token string) bool {
	if token == "" {
		return false
	}
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return false
	}
	expiry, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false
	}
	if c.nowFunc().UnixMilli() > expiry {
		return false
	}
	actual, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected := c.sign(expiry, c.credential)
	if len(actual) != len(expected) {
		return false
	}
	return hmac.Equal(expected, actual)
}

// CheckCredential is the legacy path: the raw credential sent in HeaderName.
// It never matches when no credential is configured.
func (c *Codec) CheckCredential(provided string) bool {
	if c.credential == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(c.credential)) == 1
}

// Configured reports whether an admin credential is set.
func (c *Codec) Configured() bool {
	return c.credential != ""
}

func (c *Codec) sign(expiry int64, credential string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(strconv.FormatInt(expiry, 10) + "|" + credential))
	return mac.Sum(nil)
}
