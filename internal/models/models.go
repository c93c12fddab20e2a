package models

// Credentials identify a bot and the chat it posts to.
type Credentials struct {
	BotToken string `json:"bot_token" yaml:"bot_token"`
	ChatID   string `json:"chat_id" yaml:"chat_id"`
}

// Complete reports whether both the token and the chat are set.
func (c Credentials) Complete() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Preset is a named publishing destination.
type Preset struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Credentials Credentials `json:"credentials" yaml:"credentials"`
	IsDefault   bool        `json:"is_default" yaml:"is_default"`
}

// Label returns the name shown to the user, falling back to the ID.
func (p Preset) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// PublishOptions are captured once when the user confirms a publish.
type PublishOptions struct {
	Silent       bool `json:"silent"`
	CaptionAbove bool `json:"caption_above"`
}
