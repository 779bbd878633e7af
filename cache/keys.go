package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SessionContext carries the fields the session-scope key is derived from.
// Callers build one per run from whatever auth/session metadata they have;
// the cache never reaches into a global session store itself.
type SessionContext struct {
	URL          string
	AuthUser     string
	SessionEpoch int64
}

// sessionScope derives a 12-character session-scope key so that a stale
// element ID from a previous session's DOM (e.g. "#input-339") is never
// reused against a new one. Falls back to an hour bucket when no session
// epoch is supplied, bounding unscoped reuse to within the hour.
func sessionScope(ctx SessionContext) string {
	url := ctx.URL
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}

	var domain, path string
	if strings.Contains(url, "://") {
		rest := url[strings.Index(url, "://")+3:]
		parts := strings.SplitN(rest, "/", 2)
		domain = parts[0]
		if len(parts) > 1 {
			path = "/" + parts[1]
		}
	} else {
		domain = url
	}

	user := ctx.AuthUser
	if user == "" {
		user = "unknown"
	}

	epoch := ctx.SessionEpoch
	if epoch == 0 {
		epoch = time.Now().Unix() / 3600
	}

	raw, _ := json.Marshal([]any{domain, path, user, epoch})
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])[:12]
}

// normalizeURL collapses a concrete URL down to a cacheable pattern: the
// query string is dropped, and a trailing all-numeric path segment (a
// record ID) is replaced with a wildcard so that /users/123 and /users/456
// share one cache row.
func normalizeURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}

	trimmed := strings.TrimRight(url, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) > 0 && isAllDigits(parts[len(parts)-1]) {
		parts[len(parts)-1] = "%"
		return strings.Join(parts, "/")
	}

	return url + "%"
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// fastKey builds the session-scoped tier's map key.
func fastKey(urlPattern, element, action, region, scope string) string {
	return urlPattern + "|" + element + "|" + action + "|" + region + "|" + scope
}
