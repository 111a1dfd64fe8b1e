package session

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

const (
	CookieName = "queue-session"
	MaxAge     = 7 * 24 * time.Hour
)

// Envelope is the minimal session record kept in the cookie.
type Envelope struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    *int64 `json:"expires_at"`
}

// Raw is a session as issued by the identity provider. ExpiresAt is absolute
// epoch seconds, ExpiresIn is a lifetime in seconds relative to now.
type Raw struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *int64
	ExpiresIn    int64
}

type Codec struct {
	name   string
	secure bool
	maxAge time.Duration
	now    func() time.Time
}

func NewCodec(secure bool) *Codec {
	return &Codec{
		name:   CookieName,
		secure: secure,
		maxAge: MaxAge,
		now:    time.Now,
	}
}

// Envelope builds the persisted payload, or nil when either token is missing.
func (c *Codec) Envelope(raw Raw) *Envelope {
	if raw.AccessToken == "" || raw.RefreshToken == "" {
		return nil
	}
	env := &Envelope{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
	}
	switch {
	case raw.ExpiresAt != nil:
		v := *raw.ExpiresAt
		env.ExpiresAt = &v
	case raw.ExpiresIn > 0:
		v := c.now().Unix() + raw.ExpiresIn
		env.ExpiresAt = &v
	}
	return env
}

// Write persists raw into the jar. Nothing is written when the session is incomplete.
func (c *Codec) Write(jar Jar, raw Raw) *Envelope {
	env := c.Envelope(raw)
	if env == nil {
		return nil
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	jar.Set(&http.Cookie{
		Name:     c.name,
		Value:    url.QueryEscape(string(b)),
		Path:     "/",
		MaxAge:   int(c.maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return env
}

// Read returns the stored envelope. Missing or corrupt cookies read as nil.
func (c *Codec) Read(jar Jar) *Envelope {
	raw, ok := jar.Get(c.name)
	if !ok || raw == "" {
		return nil
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal([]byte(decoded), &env); err != nil {
		return nil
	}
	if env.AccessToken == "" {
		return nil
	}
	return &env
}

func (c *Codec) Clear(jar Jar) {
	jar.Set(&http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
