package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/echoline/echochat-server/internal/proto"
)

type outboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, ctx context.Context, env *testEnv, userID int64) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + fmt.Sprintf("/ws?user_id=%d", userID)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial user %d: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	return conn
}

// readEvent reads frames until one with the wanted event name arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read %s: %v", event, err)
		}
		if frame.Event == event {
			return frame.Data
		}
	}
}

func onlineFrom(t *testing.T, data json.RawMessage) []int64 {
	t.Helper()

	var payload proto.OnlineUsersPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal online users: %v", err)
	}
	return payload.UserIDs
}

func TestWebSocketPresenceBroadcast(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.signupUser(t, "Alice", "alice@example.com")
	bob, _ := env.signupUser(t, "Bob", "bob@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, env, alice.ID)

	ids := onlineFrom(t, readEvent(t, ctx, connA, proto.EventOnlineUsers))
	if len(ids) != 1 || ids[0] != alice.ID {
		t.Fatalf("expected only alice online, got %v", ids)
	}

	connB := dialWS(t, ctx, env, bob.ID)

	// Both connections observe the two-user roster.
	for _, conn := range []*websocket.Conn{connA, connB} {
		ids = onlineFrom(t, readEvent(t, ctx, conn, proto.EventOnlineUsers))
		if len(ids) != 2 || ids[0] != alice.ID || ids[1] != bob.ID {
			t.Fatalf("expected [%d %d] online, got %v", alice.ID, bob.ID, ids)
		}
	}

	// Bob disconnects and Alice sees the shrunken roster.
	_ = connB.Close(websocket.StatusNormalClosure, "bye")

	ids = onlineFrom(t, readEvent(t, ctx, connA, proto.EventOnlineUsers))
	if len(ids) != 1 || ids[0] != alice.ID {
		t.Fatalf("expected only alice online after disconnect, got %v", ids)
	}
}

func TestWebSocketRequiresUserID(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Server accepts then closes with a policy violation. Nobody gets
	// registered, so no presence frame ever arrives.
	_, _, err = conn.Read(ctx)
	if err == nil {
		t.Fatal("expected connection to be closed")
	}
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}

	if ids := env.gateway.Registry().SnapshotIDs(); len(ids) != 0 {
		t.Fatalf("expected empty registry, got %v", ids)
	}
}

func TestLiveMessageDelivery(t *testing.T) {
	env := newTestEnv(t)
	alice, tokenA := env.signupUser(t, "Alice", "alice@example.com")
	bob, _ := env.signupUser(t, "Bob", "bob@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, env, alice.ID)
	connB := dialWS(t, ctx, env, bob.ID)

	// Alice sends through the REST endpoint.
	reqBody := bytes.NewBufferString(`{"text":"hello bob"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/messages/send/%d", env.ts.URL, bob.ID), reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenA)

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("send request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}

	// Bob receives newMsg, Alice receives the newMsgSent mirror.
	var got proto.MessagePayload
	if err := json.Unmarshal(readEvent(t, ctx, connB, proto.EventNewMessage), &got); err != nil {
		t.Fatalf("unmarshal newMsg: %v", err)
	}
	if got.SenderID != alice.ID || got.Text != "hello bob" {
		t.Fatalf("unexpected newMsg payload: %+v", got)
	}

	var mirror proto.MessagePayload
	if err := json.Unmarshal(readEvent(t, ctx, connA, proto.EventMessageSent), &mirror); err != nil {
		t.Fatalf("unmarshal newMsgSent: %v", err)
	}
	if mirror.ID != got.ID {
		t.Fatalf("mirror id %d does not match delivered id %d", mirror.ID, got.ID)
	}
}
