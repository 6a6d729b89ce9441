package models

import "fmt"

// Mode selects the persona YUNO answers with.
type Mode string

const (
	ModeEmotional    Mode = "emotional"
	ModeStudy        Mode = "study"
	ModeSupport      Mode = "support"
	ModeProductivity Mode = "productivity"
	ModeCasual       Mode = "casual"
)

type ModeInfo struct {
	ID          Mode   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Greeting    string `json:"greeting"`
	// PromptContext is appended to the base system prompt and never sent to clients.
	PromptContext string `json:"-"`
}

var modes = []ModeInfo{
	{
		ID:            ModeEmotional,
		Title:         "Emotional Support",
		Description:   "Talk about your feelings",
		Greeting:      "I'm here for you. What's on your mind? 💙",
		PromptContext: "Current Mode: EMOTIONAL SUPPORT - Be extra compassionate and validating.",
	},
	{
		ID:            ModeStudy,
		Title:         "Study Helper",
		Description:   "Learn and understand",
		Greeting:      "Ready to learn together! What would you like help with? 📚",
		PromptContext: "Current Mode: STUDY HELPER - Focus on clear explanations and step-by-step guidance.",
	},
	{
		ID:            ModeSupport,
		Title:         "Customer Support",
		Description:   "Get help with issues",
		Greeting:      "I'm here to help solve your issue. What seems to be the problem? 🔧",
		PromptContext: "Current Mode: CUSTOMER SUPPORT - Be structured, clear, and solution-oriented.",
	},
	{
		ID:            ModeProductivity,
		Title:         "Productivity Partner",
		Description:   "Stay on track",
		Greeting:      "Let's get things done! What are you working on today? ✨",
		PromptContext: "Current Mode: PRODUCTIVITY PARTNER - Help with planning and encouragement.",
	},
	{
		ID:            ModeCasual,
		Title:         "Just Chatting",
		Description:   "Friendly conversation",
		Greeting:      "Hey there! How's your day going? 😊",
		PromptContext: "Current Mode: CASUAL COMPANION - Be warm, fun, and engaging.",
	},
}

// Modes returns the five modes in display order.
func Modes() []ModeInfo {
	out := make([]ModeInfo, len(modes))
	copy(out, modes)
	return out
}

func ParseMode(s string) (Mode, error) {
	for _, m := range modes {
		if string(m.ID) == s {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

func (m Mode) Info() (ModeInfo, bool) {
	for _, info := range modes {
		if info.ID == m {
			return info, true
		}
	}
	return ModeInfo{}, false
}

func (m Mode) Valid() bool {
	_, ok := m.Info()
	return ok
}

func (m Mode) Title() string {
	info, _ := m.Info()
	return info.Title
}

func (m Mode) Greeting() string {
	info, _ := m.Info()
	return info.Greeting
}
