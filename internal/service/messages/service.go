package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/core"
	"github.com/echoline/echochat-server/internal/media"
	"github.com/echoline/echochat-server/internal/proto"
	"github.com/echoline/echochat-server/internal/store"
)

// Common errors for message operations.
var (
	// ErrEmptyMessage is returned when both text and image are empty.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrMediaUpload is returned when the inline image cannot be stored.
	ErrMediaUpload = errors.New("media upload failed")
	// ErrNoHistory is returned when deleting a conversation with no messages.
	ErrNoHistory = errors.New("no messages found to delete")
)

// Service validates, persists and dispatches direct messages. Persistence
// comes first; the live push afterwards is best effort, so a crash between
// the two loses only the push, never the message.
type Service struct {
	store   store.Store
	media   media.Store
	gateway *core.ConnectionGateway
	log     *zerolog.Logger
}

// New creates a new message service.
func New(st store.Store, mediaStore media.Store, gateway *core.ConnectionGateway, logger *zerolog.Logger) *Service {
	return &Service{
		store:   st,
		media:   mediaStore,
		gateway: gateway,
		log:     logger,
	}
}

// ListContacts returns every user except the requester. Credential fields
// are stripped by the transport mapping, never serialized.
func (s *Service) ListContacts(ctx context.Context, requesterID int64) ([]*store.User, error) {
	users, err := s.store.ListUsersExcept(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return users, nil
}

// ListHistory returns all messages between the two users in either
// direction, ascending by creation time.
func (s *Service) ListHistory(ctx context.Context, userA, userB int64) ([]*store.Message, error) {
	msgs, err := s.store.ListConversation(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return msgs, nil
}

// Send validates, persists and dispatches a message. An image that is not
// already a resolved URL is uploaded first; an upload failure aborts the
// whole operation with nothing persisted. After a successful save the
// message is pushed live to the receiver (newMsg) and mirrored to the
// sender's own connection (newMsgSent) for multi-tab sync.
func (s *Service) Send(ctx context.Context, senderID, receiverID int64, text, image string) (*store.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return nil, ErrEmptyMessage
	}

	var imageURL *string
	if image != "" {
		resolved, err := s.resolveImage(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMediaUpload, err)
		}
		imageURL = &resolved
	}

	msg := &store.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		ImageURL:   imageURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	payload := PayloadFor(msg)
	s.gateway.SendEvent(receiverID, proto.EventNewMessage, payload)
	s.gateway.SendEvent(senderID, proto.EventMessageSent, payload)

	s.log.Debug().
		Int64("message_id", msg.ID).
		Int64("sender_id", senderID).
		Int64("receiver_id", receiverID).
		Msg("message sent")

	return msg, nil
}

// DeleteHistory removes every message between the two users. Fails with
// ErrNoHistory when there is nothing to delete. The counterpart gets no
// live notification; it discovers the deletion on its next history fetch.
func (s *Service) DeleteHistory(ctx context.Context, userA, userB int64) error {
	deleted, err := s.store.DeleteConversation(ctx, userA, userB)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if deleted == 0 {
		return ErrNoHistory
	}

	s.log.Info().
		Int64("user_a", userA).
		Int64("user_b", userB).
		Int64("deleted", deleted).
		Msg("conversation deleted")

	return nil
}

// resolveImage passes through already-resolved URLs and uploads inline
// payloads to the media store.
func (s *Service) resolveImage(ctx context.Context, image string) (string, error) {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image, nil
	}
	return s.media.Upload(ctx, image)
}

// PayloadFor converts a persisted message into its wire form.
func PayloadFor(msg *store.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		ImageURL:   msg.ImageURL,
		CreatedAt:  proto.FormatTime(msg.CreatedAt),
	}
}
