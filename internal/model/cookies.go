package model

import (
	"net/http"
	"sort"
)

// SessionCookies is the static name->value cookie set captured from a logged
// in browser session. It is established once at startup and never refreshed
// in-process; when the portal invalidates it the whole run must be restarted
// with fresh values.
type SessionCookies map[string]string

// ToHTTP renders the cookie set in a stable order so request headers stay
// deterministic across calls.
func (c SessionCookies) ToHTTP() []*http.Cookie {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		out = append(out, &http.Cookie{Name: name, Value: c[name], Path: "/"})
	}
	return out
}

// Configured reports whether the cookie set has at least one real value.
// Placeholder values from a config template do not count.
func (c SessionCookies) Configured() bool {
	for _, v := range c {
		if v != "" && v != "ISI_DENGAN_COOKIE_ANDA" {
			return true
		}
	}
	return false
}
