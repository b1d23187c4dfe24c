package proto

import "time"

// Server-to-client event names on the realtime channel.
const (
	// EventOnlineUsers carries the full list of online user ids.
	// Broadcast to every connection on each connect and disconnect.
	EventOnlineUsers = "get-online-users"
	// EventNewMessage delivers a freshly persisted message to its receiver.
	EventNewMessage = "newMsg"
	// EventMessageSent mirrors a persisted message back to the sender's
	// own connections, so a second open tab stays in sync.
	EventMessageSent = "newMsgSent"
)

// Outbound is the envelope for events pushed to clients. The realtime
// channel is push-only; client requests travel over the REST surface.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// MessagePayload is a message as it appears on the wire, in live events
// and REST responses alike.
type MessagePayload struct {
	ID         int64   `json:"id"`
	SenderID   int64   `json:"sender_id"`
	ReceiverID int64   `json:"receiver_id"`
	Text       string  `json:"text"`
	ImageURL   *string `json:"image_url,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// OnlineUsersPayload is the sorted list of currently registered user ids.
type OnlineUsersPayload struct {
	UserIDs []int64 `json:"user_ids"`
}

// FormatTime renders timestamps the way every payload does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
