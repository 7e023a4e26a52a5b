package chat

import "regexp"

// Username and message bounds enforced by the policies.
const (
	usernameMinLen = 1
	usernameMaxLen = 20
	messageMinLen  = 1
	messageMaxLen  = 500
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

// rejection is a user-facing policy failure. Its message is sent back to the
// originating connection as an error event; it is never fatal.
type rejection struct {
	reason string
}

func (e *rejection) Error() string {
	return e.reason
}

func reject(reason string) error {
	return &rejection{reason: reason}
}

// usernamePolicy validates proposed display names against shape rules, the
// ban list, and the live registry.
type usernamePolicy struct {
	bans *banList
	reg  *registry
}

// validate sanitizes raw and returns the accepted username, or a rejection
// describing why it cannot be used.
func (p usernamePolicy) validate(raw string) (string, error) {
	username := sanitizeUsername(raw)

	if len(username) < usernameMinLen {
		return "", reject("username must not be empty")
	}
	if len(username) > usernameMaxLen {
		return "", reject("username must be at most 20 characters")
	}
	if !usernamePattern.MatchString(username) {
		return "", reject("username may only contain letters, digits, spaces, '_' and '-'")
	}
	if p.bans.contains(username) {
		return "", reject("this username is not allowed")
	}
	if _, taken := p.reg.holder(username); taken {
		return "", reject("username is already taken")
	}

	return username, nil
}

// validateMessageText sanitizes a raw message body and enforces its length
// bounds. Rate limiting is applied separately by the hub.
func validateMessageText(raw string) (string, error) {
	text := sanitizeMessageText(raw)

	if len(text) < messageMinLen {
		return "", reject("message must not be empty")
	}
	if len(text) > messageMaxLen {
		return "", reject("message must be at most 500 characters")
	}

	return text, nil
}
