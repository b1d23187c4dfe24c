// Package client implements the chat session state kept by a connected
// client: the selected conversation, optimistic sends and the online
// roster fed by server events.
package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/echoline/echochat-server/internal/proto"
)

// State describes where the session is in its conversation lifecycle.
type State int

const (
	StateNoSelection State = iota
	StateLoading
	StateReady
)

// Message is the client-side view of a chat message. Seen is local UI
// state and never leaves the client.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	ImageURL   *string
	CreatedAt  string
	Seen       bool
}

// FromPayload converts a wire payload into a client message.
func FromPayload(p proto.MessagePayload) Message {
	return Message{
		ID:         p.ID,
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Text:       p.Text,
		ImageURL:   p.ImageURL,
		CreatedAt:  p.CreatedAt,
	}
}

// Contact is a chat partner as listed by the server.
type Contact struct {
	ID         int64
	FullName   string
	ProfilePic string
}

// EventSource is a push event stream the session can attach handlers to,
// typically backed by a websocket connection.
type EventSource interface {
	On(event string, handler func(data json.RawMessage))
	Off(event string)
}

// ChatSessionClient tracks one user's chat session. Safe for concurrent
// use; event handlers and UI code may touch it from different goroutines.
type ChatSessionClient struct {
	mu sync.Mutex

	selfID      int64
	state       State
	counterpart int64

	history []Message
	ids     map[int64]struct{}
	tempID  int64

	contacts []Contact
	online   map[int64]struct{}

	src EventSource
}

// New creates a session for the given authenticated user.
func New(selfID int64) *ChatSessionClient {
	return &ChatSessionClient{
		selfID: selfID,
		state:  StateNoSelection,
		ids:    make(map[int64]struct{}),
		online: make(map[int64]struct{}),
	}
}

// Select switches the conversation to the given counterpart. Any cached
// history is discarded and the session waits for SetHistory.
func (c *ChatSessionClient) Select(counterpart int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counterpart = counterpart
	c.state = StateLoading
	c.history = nil
	c.ids = make(map[int64]struct{})
}

// SetHistory installs the server-provided history for the selected
// counterpart and marks the session ready.
func (c *ChatSessionClient) SetHistory(msgs []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateNoSelection {
		return
	}

	c.history = make([]Message, len(msgs))
	copy(c.history, msgs)
	c.ids = make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		c.ids[m.ID] = struct{}{}
	}
	c.state = StateReady
}

// AppendOptimistic appends a placeholder for a message the user just
// sent, before the server has acknowledged it. The placeholder carries a
// locally generated negative id so it can never collide with a server id.
func (c *ChatSessionClient) AppendOptimistic(text string, imageURL *string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tempID--
	msg := Message{
		ID:         c.tempID,
		SenderID:   c.selfID,
		ReceiverID: c.counterpart,
		Text:       text,
		ImageURL:   imageURL,
		CreatedAt:  proto.FormatTime(time.Now()),
	}

	c.history = append(c.history, msg)
	c.ids[msg.ID] = struct{}{}
	return msg
}

// Confirm replaces the optimistic placeholder with the server-acknowledged
// message, keeping its position in the list. Returns false when the
// placeholder is gone, e.g. the conversation was switched meanwhile.
func (c *ChatSessionClient) Confirm(tempID int64, real Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, m := range c.history {
		if m.ID == tempID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	delete(c.ids, tempID)

	if _, dup := c.ids[real.ID]; dup {
		// The live event beat the REST response; drop the placeholder.
		c.history = append(c.history[:idx], c.history[idx+1:]...)
		return true
	}

	c.history[idx] = real
	c.ids[real.ID] = struct{}{}
	return true
}

// HandleEvent processes a pushed message event. Messages outside the
// selected conversation and duplicates are dropped.
func (c *ChatSessionClient) HandleEvent(event string, msg Message) {
	if event != proto.EventNewMessage && event != proto.EventMessageSent {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		return
	}
	if !c.inConversation(msg) {
		return
	}
	if _, dup := c.ids[msg.ID]; dup {
		return
	}

	c.history = append(c.history, msg)
	c.ids[msg.ID] = struct{}{}
}

func (c *ChatSessionClient) inConversation(msg Message) bool {
	if msg.SenderID == c.counterpart && msg.ReceiverID == c.selfID {
		return true
	}
	return msg.SenderID == c.selfID && msg.ReceiverID == c.counterpart
}

// MarkSeen flags every cached message from the counterpart as seen.
func (c *ChatSessionClient) MarkSeen() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.history {
		if c.history[i].SenderID == c.counterpart {
			c.history[i].Seen = true
		}
	}
}

// SetOnline replaces the online roster.
func (c *ChatSessionClient) SetOnline(ids []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.online = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		c.online[id] = struct{}{}
	}
}

// IsOnline reports whether the given user is in the current roster.
func (c *ChatSessionClient) IsOnline(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.online[userID]
	return ok
}

// SetContacts caches the server-provided contact list.
func (c *ChatSessionClient) SetContacts(contacts []Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.contacts = make([]Contact, len(contacts))
	copy(c.contacts, contacts)
}

// Contacts returns the cached contact list.
func (c *ChatSessionClient) Contacts() []Contact {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Contact, len(c.contacts))
	copy(out, c.contacts)
	return out
}

// History returns a copy of the cached conversation.
func (c *ChatSessionClient) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// State returns the current session state.
func (c *ChatSessionClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Counterpart returns the currently selected chat partner, zero when none.
func (c *ChatSessionClient) Counterpart() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counterpart
}

// Subscribe attaches the session to an event source. Calling it again,
// with the same source or a new one, first detaches the previous handlers
// so events are never processed twice.
func (c *ChatSessionClient) Subscribe(src EventSource) {
	c.mu.Lock()
	prev := c.src
	c.src = src
	c.mu.Unlock()

	if prev != nil {
		prev.Off(proto.EventNewMessage)
		prev.Off(proto.EventMessageSent)
		prev.Off(proto.EventOnlineUsers)
	}
	if src == nil {
		return
	}

	onMessage := func(event string) func(json.RawMessage) {
		return func(data json.RawMessage) {
			var payload proto.MessagePayload
			if err := json.Unmarshal(data, &payload); err != nil {
				return
			}
			c.HandleEvent(event, FromPayload(payload))
		}
	}

	src.On(proto.EventNewMessage, onMessage(proto.EventNewMessage))
	src.On(proto.EventMessageSent, onMessage(proto.EventMessageSent))
	src.On(proto.EventOnlineUsers, func(data json.RawMessage) {
		var payload proto.OnlineUsersPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		c.SetOnline(payload.UserIDs)
	})
}

// Unsubscribe detaches the session from its current event source.
func (c *ChatSessionClient) Unsubscribe() {
	c.Subscribe(nil)
}
