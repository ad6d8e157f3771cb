package models

// Role is the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a conversation history
type Message struct {
	Role    Role   `json:"role" validate:"required,message_role"`
	Content string `json:"content" validate:"max=8000"`
}

// LastUserMessage returns the content of the most recent user message, or "" if there is none
func LastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
