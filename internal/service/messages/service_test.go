package messages

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/core"
	"github.com/echoline/echochat-server/internal/media"
	"github.com/echoline/echochat-server/internal/proto"
	"github.com/echoline/echochat-server/internal/store"
	"github.com/echoline/echochat-server/internal/store/sqlite"
)

type fixture struct {
	svc     *Service
	store   store.Store
	gateway *core.ConnectionGateway
	alice   *store.User
	bob     *store.User
}

func newFixture(t *testing.T, mediaStore media.Store) *fixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	alice, err := st.CreateUser(ctx, "Alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "Bob", "bob@example.com", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	logger := zerolog.Nop()
	gateway := core.NewGateway(core.NewPresenceRegistry(), &logger)
	if mediaStore == nil {
		mediaStore = media.NewMemStore()
	}

	return &fixture{
		svc:     New(st, mediaStore, gateway, &logger),
		store:   st,
		gateway: gateway,
		alice:   alice,
		bob:     bob,
	}
}

func awaitEvent(t *testing.T, ch <-chan proto.Outbound, event string) proto.Outbound {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Event == event {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event %q not received", event)
		}
	}
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, "   ", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage for whitespace-only text, got %v", err)
	}

	if _, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, "hello", ""); err != nil {
		t.Fatalf("text-only send should succeed, got %v", err)
	}

	payload := base64.StdEncoding.EncodeToString([]byte("img"))
	msg, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, "", payload)
	if err != nil {
		t.Fatalf("image-only send should succeed, got %v", err)
	}
	if msg.ImageURL == nil || *msg.ImageURL == "" {
		t.Fatalf("expected resolved image url, got %+v", msg)
	}
}

func TestSendPassesThroughResolvedURL(t *testing.T) {
	f := newFixture(t, media.UploadFunc(func(ctx context.Context, data string) (string, error) {
		t.Fatalf("already-resolved urls must not be re-uploaded")
		return "", nil
	}))

	msg, err := f.svc.Send(context.Background(), f.alice.ID, f.bob.ID, "", "https://cdn.example.com/pic.png")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.ImageURL == nil || *msg.ImageURL != "https://cdn.example.com/pic.png" {
		t.Fatalf("expected url passed through, got %+v", msg.ImageURL)
	}
}

func TestSendMediaFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, media.UploadFunc(func(ctx context.Context, data string) (string, error) {
		return "", errors.New("blob store down")
	}))
	ctx := context.Background()

	if _, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, "caption", "aGVsbG8="); !errors.Is(err, ErrMediaUpload) {
		t.Fatalf("expected ErrMediaUpload, got %v", err)
	}

	msgs, err := f.svc.ListHistory(ctx, f.alice.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("nothing should be persisted after upload failure, got %d messages", len(msgs))
	}
}

func TestSendPushesLiveEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	aliceConn := core.NewConn("a")
	bobConn := core.NewConn("b")
	f.gateway.Register(f.alice.ID, aliceConn)
	f.gateway.Register(f.bob.ID, bobConn)

	msg, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, "hi", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	recv := awaitEvent(t, bobConn.Events, proto.EventNewMessage)
	recvPayload, ok := recv.Data.(proto.MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", recv.Data)
	}
	if recvPayload.ID != msg.ID || recvPayload.SenderID != f.alice.ID || recvPayload.Text != "hi" {
		t.Fatalf("unexpected newMsg payload: %+v", recvPayload)
	}

	sent := awaitEvent(t, aliceConn.Events, proto.EventMessageSent)
	sentPayload, ok := sent.Data.(proto.MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", sent.Data)
	}
	if sentPayload.ID != msg.ID {
		t.Fatalf("newMsgSent should carry the same message, got %+v", sentPayload)
	}
}

func TestSendToOfflineReceiverStillPersists(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, "you there?", ""); err != nil {
		t.Fatalf("send to offline receiver should succeed, got %v", err)
	}

	msgs, err := f.svc.ListHistory(ctx, f.bob.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "you there?" {
		t.Fatalf("expected persisted message, got %+v", msgs)
	}
}

func TestHistoryOrderedAndComplete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, text, ""); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}
	if _, err := f.svc.Send(ctx, f.bob.ID, f.alice.ID, "four", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	msgs, err := f.svc.ListHistory(ctx, f.alice.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}

	seen := make(map[int64]bool)
	for i, m := range msgs {
		if seen[m.ID] {
			t.Fatalf("message %d appears more than once", m.ID)
		}
		seen[m.ID] = true
		if i > 0 && m.CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("history not ascending at index %d", i)
		}
	}
}

func TestDeleteHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.svc.DeleteHistory(ctx, f.alice.ID, f.bob.ID); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}

	if _, err := f.svc.Send(ctx, f.alice.ID, f.bob.ID, "hello", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if err := f.svc.DeleteHistory(ctx, f.bob.ID, f.alice.ID); err != nil {
		t.Fatalf("delete history failed: %v", err)
	}

	msgs, err := f.svc.ListHistory(ctx, f.alice.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty history after delete, got %d", len(msgs))
	}
}

func TestListContactsExcludesRequester(t *testing.T) {
	f := newFixture(t, nil)

	contacts, err := f.svc.ListContacts(context.Background(), f.alice.ID)
	if err != nil {
		t.Fatalf("list contacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != f.bob.ID {
		t.Fatalf("expected only bob, got %+v", contacts)
	}
}
