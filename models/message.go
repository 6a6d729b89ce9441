package models

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a transcript entry. Image, when set, is an inline data URL.
type Message struct {
	Role    Role   `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}
