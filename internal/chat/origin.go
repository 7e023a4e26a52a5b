// Package chat normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package chat

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// originChecker answers whether a request's Origin header is on the
// configured allow-list. A configured "*" entry allows every origin.
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
	log      zerolog.Logger
}

func newOriginChecker(origins []string, log zerolog.Logger) *originChecker {
	oc := &originChecker{
		allowed: make(map[string]struct{}, len(origins)),
		log:     log,
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}
		oc.allowed[normalized] = struct{}{}
	}

	return oc
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (oc *originChecker) isAllowed(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	if oc.allowAll {
		return true
	}
	_, exists := oc.allowed[normalized]
	return exists
}

func (oc *originChecker) check(r *http.Request) bool {
	if oc.isAllowed(r) {
		return true
	}

	oc.log.Warn().Str("origin", r.Header.Get("Origin")).
		Msg("blocked websocket connection from disallowed origin")
	return false
}
