package models

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceEntry is the stored heartbeat of one token.
type PresenceEntry struct {
	Username string `json:"username"`
	LastSeen int64  `json:"lastSeen"`
}

// PresenceUser is the derived view of a user's presence.
type PresenceUser struct {
	Username string `json:"username"`
	Status   string `json:"status"`
	LastSeen int64  `json:"lastSeen"`
}
