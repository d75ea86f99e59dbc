package engine

import "strings"

// sessionErrorMarkers is the substring list used to spot authentication
// failures in error text. The portal exposes no structured error contract,
// so this stays a best-effort heuristic: it decides which notification goes
// out (replace cookies vs. generic failure), never control flow.
var sessionErrorMarkers = []string{
	"session",
	"login",
	"expired",
	"unauthorized",
	"authentication",
	"forbidden",
}

// IsSessionExpired reports whether err looks like the portal session is no
// longer valid. The loop cannot recover from this on its own; the user has
// to refresh the cookies and restart.
func IsSessionExpired(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range sessionErrorMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
