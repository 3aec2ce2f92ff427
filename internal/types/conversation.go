package types

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role/content turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered wire shape of a completion request.
// It is never persisted by the generation core.
type Conversation []Message

// UserPrompt builds the single-turn conversation used for fresh generations.
func UserPrompt(prompt string) Conversation {
	return Conversation{{Role: RoleUser, Content: prompt}}
}

// Clone returns an independent copy of the conversation.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}
