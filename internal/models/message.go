package models

// Message is a single entry of a room's message log.
type Message struct {
	ID        string     `json:"id"`
	Sender    string     `json:"sender"`
	Text      string     `json:"text"`
	Timestamp int64      `json:"timestamp"`
	RoomID    string     `json:"roomId"`
	Token     string     `json:"token,omitempty"`
	Deleted   bool       `json:"deleted"`
	Reactions []Reaction `json:"reactions"`
	ReadBy    []ReadMark `json:"readBy"`
}

// Reaction is unique per (emoji, username) on a message.
type Reaction struct {
	Emoji     string `json:"emoji"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// ReadMark is unique per username on a message.
type ReadMark struct {
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// ProjectFor returns the message as seen by the holder of readerToken:
// the author token is only kept when it matches.
func (m Message) ProjectFor(readerToken string) Message {
	if m.Token != readerToken {
		m.Token = ""
	}
	return m
}
