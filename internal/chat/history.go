package chat

import "time"

// Message is one broadcast chat message, immutable once created.
type Message struct {
	Username  string
	Text      string
	Timestamp time.Time
	OriginID  string
}

// historyBuffer is a bounded FIFO of the most recent broadcast messages,
// replayed in insertion order to newly joined connections. Access is
// serialized by the owning hub.
type historyBuffer struct {
	capacity int
	messages []Message
}

func newHistoryBuffer(capacity int) *historyBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &historyBuffer{
		capacity: capacity,
		messages: make([]Message, 0, capacity),
	}
}

// append adds m at the tail, evicting the oldest entry when the buffer is at
// capacity.
func (b *historyBuffer) append(m Message) {
	if len(b.messages) == b.capacity {
		copy(b.messages, b.messages[1:])
		b.messages = b.messages[:len(b.messages)-1]
	}
	b.messages = append(b.messages, m)
}

// snapshot returns the buffered messages oldest-first. The result is a copy;
// callers may hold it across further appends.
func (b *historyBuffer) snapshot() []Message {
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

func (b *historyBuffer) size() int {
	return len(b.messages)
}
