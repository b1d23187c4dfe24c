package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/proto"
)

func newTestGateway() *ConnectionGateway {
	logger := zerolog.Nop()
	return NewGateway(NewPresenceRegistry(), &logger)
}

func mustEvent(t *testing.T, ch <-chan proto.Outbound, event string) proto.Outbound {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Event == event {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event %q not received", event)
	return proto.Outbound{}
}

func drain(ch <-chan proto.Outbound) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
