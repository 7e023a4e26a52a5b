package chat

import "strings"

// banList is the set of usernames excluded from joining, stored lowercase so
// membership checks are case-insensitive. It is mutated only through the
// hub's administrative commands and survives connection churn and reaper
// sweeps.
type banList struct {
	names map[string]struct{}
}

func newBanList() *banList {
	return &banList{names: make(map[string]struct{})}
}

func (b *banList) add(username string) {
	b.names[strings.ToLower(username)] = struct{}{}
}

// remove deletes username from the set and reports whether it was banned.
func (b *banList) remove(username string) bool {
	key := strings.ToLower(username)
	_, ok := b.names[key]
	delete(b.names, key)
	return ok
}

func (b *banList) contains(username string) bool {
	_, ok := b.names[strings.ToLower(username)]
	return ok
}

func (b *banList) size() int {
	return len(b.names)
}
