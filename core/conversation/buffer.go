package conversation

import "encoding/json"

// Buffer is the controller-owned, append-only conversation store. It is the
// single mutable point of truth for a turn: workers see only their tool
// input, never the Buffer itself (§5 Concurrency & Resource Model).
//
// Adapted from the teacher's providers/memory array/in-memory message
// stores: same append/pop/clear shape, retargeted from the provider-agnostic
// ai.Message to the conversation.Message tagged-block model.
type Buffer struct {
	messages []Message
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{messages: []Message{}}
}

// NewBufferFrom returns a Buffer seeded with the given messages.
func NewBufferFrom(messages []Message) *Buffer {
	b := &Buffer{messages: make([]Message, len(messages))}
	copy(b.messages, messages)
	return b
}

// Append adds a message to the end of the conversation.
func (b *Buffer) Append(m Message) {
	b.messages = append(b.messages, m)
}

// Len returns the number of messages currently stored.
func (b *Buffer) Len() int {
	return len(b.messages)
}

// Last returns the last message and true, or a zero Message and false when
// the buffer is empty.
func (b *Buffer) Last() (Message, bool) {
	if len(b.messages) == 0 {
		return Message{}, false
	}
	return b.messages[len(b.messages)-1], true
}

// PopLast removes and returns the last message, or false when empty.
func (b *Buffer) PopLast() (Message, bool) {
	if len(b.messages) == 0 {
		return Message{}, false
	}
	idx := len(b.messages) - 1
	msg := b.messages[idx]
	b.messages = b.messages[:idx]
	return msg, true
}

// Messages returns a copy of all messages, safe for the caller to retain
// and mutate without affecting the Buffer's internal state.
func (b *Buffer) Messages() []Message {
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Replace swaps the entire message slice — used by the trim gate to install
// a trimmed conversation in one step.
func (b *Buffer) Replace(messages []Message) {
	b.messages = messages
}

// SerializedBytes returns the total size of the conversation when encoded
// as JSON, the cheap proxy the byte-based trim gate budgets against.
func (b *Buffer) SerializedBytes() int {
	total := 0
	for _, m := range b.messages {
		encoded, err := json.Marshal(m)
		if err != nil {
			continue
		}
		total += len(encoded)
	}
	return total
}
