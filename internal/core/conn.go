package core

import "github.com/echoline/echochat-server/internal/proto"

// connBuffer is the outbound event buffer per connection.
const connBuffer = 16

// Conn is a live connection handle. The transport layer owns the read side
// of Events and writes each one to the underlying socket.
type Conn struct {
	ID     string
	Events chan proto.Outbound
}

// NewConn constructs a connection handle with a buffered event channel.
func NewConn(id string) *Conn {
	return &Conn{
		ID:     id,
		Events: make(chan proto.Outbound, connBuffer),
	}
}

// send enqueues an event without blocking. Returns false if the buffer is
// full; slow consumers lose events rather than stalling the sender.
func (c *Conn) send(ev proto.Outbound) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
