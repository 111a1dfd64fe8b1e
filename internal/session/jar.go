package session

import "net/http"

// Jar is the request-scoped cookie store.
type Jar interface {
	Get(name string) (string, bool)
	Set(c *http.Cookie)
}

type httpJar struct {
	w       http.ResponseWriter
	r       *http.Request
	pending map[string]*http.Cookie
}

// NewJar reads cookies from r and writes Set-Cookie headers to w. Cookies set
// through the jar are visible to later Get calls on the same jar.
func NewJar(w http.ResponseWriter, r *http.Request) Jar {
	return &httpJar{w: w, r: r, pending: make(map[string]*http.Cookie)}
}

func (j *httpJar) Get(name string) (string, bool) {
	if c, ok := j.pending[name]; ok {
		if c.MaxAge < 0 {
			return "", false
		}
		return c.Value, true
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *httpJar) Set(c *http.Cookie) {
	j.pending[c.Name] = c
	http.SetCookie(j.w, c)
}
