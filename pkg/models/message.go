package models

// Message is one unit of text from sender to receiver inside a
// conversation. Immutable after creation except for the Read flag, which
// only ever transitions false -> true.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	Content        string `json:"content"`
	// TS is the creation timestamp (ns). Message IDs embed the same
	// timestamp plus a sequence so lexicographic id order equals
	// creation order.
	TS   int64 `json:"ts"`
	Read bool  `json:"read"`
}
