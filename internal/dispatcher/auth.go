package dispatcher

import (
	"strings"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

const bearerPrefix = "Bearer "

// authResult carries both the name to use for the rest of the
// request (the parsed username on success, "unknown" when security is
// disabled) and the name to use in an access-log entry on failure
// (the raw token, per spec.md §8 scenario S5, which logs the full
// "alice:WRONG" string rather than the split username).
type authResult struct {
	user string
	ok   bool
}

// authenticate implements spec.md §4.6.1.
func authenticate(snap *configstore.Snapshot, authHeader string) authResult {
	if snap.SecurityDisabled {
		return authResult{user: "unknown", ok: true}
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return authResult{user: "", ok: false}
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return authResult{user: token, ok: false}
	}

	username, key := parts[0], parts[1]
	storedKey, exists := snap.Users.Lookup(username)
	if !exists || storedKey != key {
		return authResult{user: token, ok: false}
	}

	return authResult{user: username, ok: true}
}
