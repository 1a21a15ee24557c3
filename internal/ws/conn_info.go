package ws

import "time"

// ConnInfo describes the membership behind a websocket connection.
type ConnInfo struct {
	ConnID      string
	Token       string
	Username    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
