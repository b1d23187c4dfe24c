package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/service/messages"
)

// MessageHandlers provides HTTP handlers for the message endpoints.
type MessageHandlers struct {
	svc *messages.Service
	log *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *messages.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		svc: svc,
		log: logger,
	}
}

// SendMessageRequest represents the send message request body. Image may be
// an inline base64 payload or an already-resolved URL.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// ListContacts returns every user except the requester.
// GET /api/messages/users
func (h *MessageHandlers) ListContacts(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.svc.ListContacts(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list contacts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, userResponses(users))
}

// ListHistory returns the ordered conversation with the counterpart.
// GET /api/messages/:id
func (h *MessageHandlers) ListHistory(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	counterpart, ok := pathUserID(c)
	if !ok {
		return
	}

	msgs, err := h.svc.ListHistory(c.Request.Context(), uid, counterpart)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("counterpart", counterpart).Msg("failed to list history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageResponses(msgs))
}

// Send validates, persists and dispatches a message to the counterpart.
// POST /api/messages/send/:id
func (h *MessageHandlers) Send(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	counterpart, ok := pathUserID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), uid, counterpart, req.Text, req.Image)
	if err != nil {
		switch {
		case errors.Is(err, messages.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message cannot be empty"})
		case errors.Is(err, messages.ErrMediaUpload):
			h.log.Warn().Err(err).Int64("user_id", uid).Msg("image upload failed")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to upload image, please try again"})
		default:
			h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to send message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, messages.PayloadFor(msg))
}

// DeleteHistory removes every message exchanged with the counterpart.
// DELETE /api/messages/:id
func (h *MessageHandlers) DeleteHistory(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	counterpart, ok := pathUserID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteHistory(c.Request.Context(), uid, counterpart); err != nil {
		if errors.Is(err, messages.ErrNoHistory) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "no messages found to delete"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", uid).Int64("counterpart", counterpart).Msg("failed to delete history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "chat history deleted"})
}

// pathUserID parses the :id path parameter, replying 400 on failure.
func pathUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return 0, false
	}
	return id, true
}
