package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_760_000_000_000)}
}

func newCodec(clock *fakeClock, cfg Config) *Codec {
	return NewCodec(cfg, WithClock(clock.Now))
}

func TestResolveSecret(t *testing.T) {
	assert.Equal(t, "a", Config{SessionSecret: "a", GenericSecret: "b", Credential: "c"}.ResolveSecret())
	assert.Equal(t, "b", Config{GenericSecret: "b", Credential: "c"}.ResolveSecret())
	assert.Equal(t, "c", Config{Credential: "c"}.ResolveSecret())
	assert.Equal(t, FallbackSecret, Config{}.ResolveSecret())
}

func TestIssue_Format(t *testing.T) {
	clock := newClock()
	c := newCodec(clock, Config{Credential: "pw"})

	token := c.Issue("pw", time.Hour)
	parts := strings.Split(token, ":")
	require.Len(t, parts, 2)
	assert.Equal(t, "1760003600000", parts[0])
	assert.Len(t, parts[1], 64)
}

func TestVerify_RoundTrip(t *testing.T) {
	clock := newClock()
	c := newCodec(clock, Config{Credential: "pw", SessionSecret: "s3cret"})

	token := c.Issue("pw", DefaultTTL)
	assert.True(t, c.Verify(token))

	clock.Advance(DefaultTTL)
	assert.True(t, c.Verify(token), "valid up to and including the expiry millisecond")

	clock.Advance(time.Millisecond)
	assert.False(t, c.Verify(token))
}

func TestVerify_ZeroTTL(t *testing.T) {
	clock := newClock()
	c := newCodec(clock, Config{Credential: "pw"})

	token := c.Issue("pw", 0)
	assert.True(t, c.Verify(token))

	clock.Advance(time.Millisecond)
	assert.False(t, c.Verify(token))
}

func TestVerify_Rejects(t *testing.T) {
	clock := newClock()
	c := newCodec(clock, Config{Credential: "pw"})
	token := c.Issue("pw", time.Hour)
	expiry, sig, _ := strings.Cut(token, ":")

	tampered := []byte(sig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}

	tests := map[string]string{
		"missing":             "",
		"no separator":        expiry + sig,
		"three parts":         token + ":00",
		"non numeric expiry":  "soon:" + sig,
		"tampered signature":  expiry + ":" + string(tampered),
		"truncated signature": expiry + ":" + sig[:32],
		"not hex":             expiry + ":" + strings.Repeat("zz", 32),
		"moved expiry":        "9999999999999:" + sig,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Verify(tok))
		})
	}
}

func TestVerify_CredentialRotationInvalidates(t *testing.T) {
	clock := newClock()
	old := newCodec(clock, Config{Credential: "old", SessionSecret: "k"})
	token := old.Issue("old", time.Hour)

	rotated := newCodec(clock, Config{Credential: "new", SessionSecret: "k"})
	assert.False(t, rotated.Verify(token))
}

func TestVerify_SecretChangeInvalidates(t *testing.T) {
	clock := newClock()
	token := newCodec(clock, Config{Credential: "pw", SessionSecret: "k1"}).Issue("pw", time.Hour)

	assert.False(t, newCodec(clock, Config{Credential: "pw", SessionSecret: "k2"}).Verify(token))
}

func TestVerify_IssuedForOtherCredential(t *testing.T) {
	clock := newClock()
	c := newCodec(clock, Config{Credential: "pw"})
	assert.False(t, c.Verify(c.Issue("guess", time.Hour)))
}

func TestCheckCredential(t *testing.T) {
	c := NewCodec(Config{Credential: "pw"})
	assert.True(t, c.CheckCredential("pw"))
	assert.False(t, c.CheckCredential("pw "))
	assert.False(t, c.CheckCredential(""))
	assert.True(t, c.Configured())

	unset := NewCodec(Config{})
	assert.False(t, unset.CheckCredential(""))
	assert.False(t, unset.CheckCredential("anything"))
	assert.False(t, unset.Configured())
}

func TestCookie(t *testing.T) {
	w := httptest.NewRecorder()
	http.SetCookie(w, Cookie("123:abc", DefaultTTL, true))

	header := w.Header().Get("Set-Cookie")
	assert.Contains(t, header, "admin_session=123:abc")
	assert.Contains(t, header, "Path=/")
	assert.Contains(t, header, "Max-Age=86400")
	assert.Contains(t, header, "HttpOnly")
	assert.Contains(t, header, "SameSite=Strict")
	assert.Contains(t, header, "Secure")

	w = httptest.NewRecorder()
	http.SetCookie(w, Cookie("123:abc", DefaultTTL, false))
	assert.NotContains(t, w.Header().Get("Set-Cookie"), "Secure")
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.Header.Set("Cookie", "theme=dark; admin_session=1:ff; other=x")
	assert.Equal(t, "1:ff", TokenFromRequest(req))
}
