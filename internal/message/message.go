package message

// Message represents a chat message from any platform (Twitch, Kick, etc.)
type Message struct {
	Platform   string         `json:"platform"`         // Platform name: "twitch", "kick", etc.
	Timestamp  string         `json:"timestamp"`        // Message timestamp in RFC3339 format (UTC)
	Channel    string         `json:"channel"`          // Channel name or slug, without '#'
	Username   string         `json:"username"`         // User's display name
	UserID     string         `json:"user_id"`          // Platform-specific user ID
	Message    string         `json:"message"`          // Chat message content
	Badges     string         `json:"badges,omitempty"` // Comma-separated list of badges
	Subscriber bool           `json:"subscriber"`       // Sender holds a subscriber badge
	Emotes     EmotePositions `json:"emotes,omitempty"` // Platform emote positions, nil when none were reported
}

// Span is one emote occurrence inside Message, as UTF-16 code unit offsets.
// Start is -1 when the transport reported a value that was not a number.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// EmotePositions maps a platform emote id to every place it occurs in a message.
type EmotePositions map[string][]Span
