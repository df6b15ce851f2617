package models

// LastMessage is the denormalized preview of the most recent message in a
// conversation, kept on the conversation row so list views never scan
// full threads.
type LastMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
	TS      int64  `json:"ts"`
}

// Conversation pairs two participants and summarizes their most recent
// exchange. Created lazily on the first message between a pair; never
// deleted, only its snapshot mutates.
type Conversation struct {
	// ID is stable per unordered participant pair (sorted ids joined).
	ID           string       `json:"id"`
	Participants [2]string    `json:"participants"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	// Unread maps participant id -> count of messages addressed to them
	// with read=false. Never negative.
	Unread    map[string]int `json:"unread"`
	CreatedTS int64          `json:"created_ts"`
	UpdatedTS int64          `json:"updated_ts"`
}

// Other returns the counterparty of viewer in this conversation. Returns
// an empty string when viewer is not a participant.
func (c *Conversation) Other(viewer string) string {
	switch viewer {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}

// Has reports whether id is one of the two participants.
func (c *Conversation) Has(id string) bool {
	return id == c.Participants[0] || id == c.Participants[1]
}
