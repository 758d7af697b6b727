// Package auth checks a caller-supplied credential against a configured
// allow-list of opaque string keys (§1, §6). It is a boolean predicate at
// connection/request admission — nothing more, per spec.md Non-goals.
package auth

import "net/http"

// HeaderName and QueryParam are the two accepted ways of presenting a
// credential (§6.1, §6.2).
const (
	HeaderName = "X-API-Key"
	QueryParam = "api_key"
)

// Allowlist is a boolean predicate over a fixed set of opaque credentials.
type Allowlist struct {
	keys map[string]struct{}
}

// New builds an Allowlist from keys.
func New(keys []string) *Allowlist {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &Allowlist{keys: set}
}

// Check extracts the credential from r (header first, then query
// parameter) and reports whether it is admitted.
func (a *Allowlist) Check(r *http.Request) (credential string, ok bool) {
	credential = r.Header.Get(HeaderName)
	if credential == "" {
		credential = r.URL.Query().Get(QueryParam)
	}
	if credential == "" {
		return "", false
	}
	_, ok = a.keys[credential]
	return credential, ok
}
