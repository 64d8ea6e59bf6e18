// Package conversation holds the ordered message log of a chat session.
//
// A State is owned by a single goroutine (the interactive loop). It is
// append-only: messages are never edited or removed, and Snapshot hands out
// copies so a request that is in flight cannot observe later appends.
package conversation

import (
	"github.com/pkg/errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is a single entry of the log. Values are copied on append and on
// snapshot, so callers can't mutate what the log holds.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

type State struct {
	messages []Message
}

// New creates a state seeded with exactly one system message.
func New(systemPrompt string) *State {
	return &State{messages: []Message{NewSystemMessage(systemPrompt)}}
}

// Append adds m to the end of the log.
func (s *State) Append(m Message) error {
	if !m.Role.Valid() {
		return errors.Errorf("invalid message role %q", m.Role)
	}
	s.messages = append(s.messages, m)
	return nil
}

// Snapshot returns a copy of the log in order.
func (s *State) Snapshot() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *State) Len() int {
	return len(s.messages)
}

// Last returns the most recent message, if any.
func (s *State) Last() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// AwaitingReply reports whether the log ends with a user message, which is
// the only shape that may be sent for inference.
func (s *State) AwaitingReply() bool {
	last, ok := s.Last()
	return ok && last.Role == RoleUser
}
