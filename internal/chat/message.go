// Package chat defines the message types exchanged with LLM chat APIs.
//
// The format is the OpenAI-compatible shape used by every supported
// provider: {"role": "user"|"assistant", "content": "..."}. Messages are
// immutable once appended to a transcript.
package chat

import "encoding/json"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User creates a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant creates an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// JSONSize returns the serialized size of a message list in bytes.
// This is the content size the budget accountant charges for: the JSON
// that is re-sent to the stateless chat API with every request.
func JSONSize(messages []Message) int {
	if len(messages) == 0 {
		return 2 // "[]"
	}
	b, err := json.Marshal(messages)
	if err != nil {
		// Message is two plain strings; marshaling cannot fail.
		panic(err)
	}
	return len(b)
}

// Alternates reports whether messages strictly alternate
// user, assistant, user, ... starting with a user message.
func Alternates(messages []Message) bool {
	for i, m := range messages {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if m.Role != want {
			return false
		}
	}
	return true
}
