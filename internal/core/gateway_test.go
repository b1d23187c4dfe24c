package core

import (
	"slices"
	"testing"

	"github.com/echoline/echochat-server/internal/proto"
)

func onlineIDs(t *testing.T, ev proto.Outbound) []int64 {
	t.Helper()

	payload, ok := ev.Data.(proto.OnlineUsersPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Data)
	}
	return payload.UserIDs
}

func TestRegisterBroadcastsPresenceToEveryone(t *testing.T) {
	gw := newTestGateway()

	alice := NewConn("a")
	bob := NewConn("b")

	gw.Register(1, alice)
	ids := onlineIDs(t, mustEvent(t, alice.Events, proto.EventOnlineUsers))
	if !slices.Equal(ids, []int64{1}) {
		t.Fatalf("expected [1], got %v", ids)
	}

	gw.Register(2, bob)

	// Both the existing and the new connection see the updated list.
	for _, conn := range []*Conn{alice, bob} {
		ids := onlineIDs(t, mustEvent(t, conn.Events, proto.EventOnlineUsers))
		if !slices.Equal(ids, []int64{1, 2}) {
			t.Fatalf("expected [1 2], got %v", ids)
		}
	}
}

func TestUnregisterBroadcastsUpdatedPresence(t *testing.T) {
	gw := newTestGateway()

	alice := NewConn("a")
	bob := NewConn("b")
	gw.Register(1, alice)
	gw.Register(2, bob)
	drain(alice.Events)
	drain(bob.Events)

	gw.Unregister(2, bob)

	ids := onlineIDs(t, mustEvent(t, alice.Events, proto.EventOnlineUsers))
	if !slices.Equal(ids, []int64{1}) {
		t.Fatalf("expected [1] after bob left, got %v", ids)
	}
}

func TestReconnectKeepsSingleEntry(t *testing.T) {
	gw := newTestGateway()

	alice1 := NewConn("a1")
	peer := NewConn("p")
	gw.Register(1, alice1)
	gw.Register(2, peer)
	drain(peer.Events)

	// Alice reconnects on a new handle before the old one disconnects.
	alice2 := NewConn("a2")
	gw.Register(1, alice2)

	ids := onlineIDs(t, mustEvent(t, peer.Events, proto.EventOnlineUsers))
	if !slices.Equal(ids, []int64{1, 2}) {
		t.Fatalf("expected single entry for reconnected user, got %v", ids)
	}

	// The old handle's disconnect arrives late; presence must not change
	// and no broadcast goes out.
	drain(peer.Events)
	gw.Unregister(1, alice1)

	select {
	case ev := <-peer.Events:
		t.Fatalf("unexpected broadcast after stale disconnect: %+v", ev)
	default:
	}

	got, ok := gw.Registry().Lookup(1)
	if !ok || got != alice2 {
		t.Fatalf("expected newest handle to survive, got %v (ok=%v)", got, ok)
	}
}

func TestSendEventDeliversAndDrops(t *testing.T) {
	gw := newTestGateway()

	alice := NewConn("a")
	gw.Register(1, alice)
	drain(alice.Events)

	gw.SendEvent(1, proto.EventNewMessage, "hello")
	ev := mustEvent(t, alice.Events, proto.EventNewMessage)
	if ev.Data != "hello" {
		t.Fatalf("unexpected payload: %v", ev.Data)
	}

	// Unknown target: silently dropped, nothing to assert beyond no panic.
	gw.SendEvent(99, proto.EventNewMessage, "into the void")
}
