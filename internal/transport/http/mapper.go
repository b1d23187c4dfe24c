package http

import (
	"github.com/echoline/echochat-server/internal/proto"
	"github.com/echoline/echochat-server/internal/service/messages"
	"github.com/echoline/echochat-server/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserResponse is a user in API responses. Credential fields are never
// part of this shape.
type UserResponse struct {
	ID         int64  `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profile_pic,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  proto.FormatTime(u.CreatedAt),
	}
}

func userResponses(users []*store.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return out
}

func messageResponses(msgs []*store.Message) []proto.MessagePayload {
	out := make([]proto.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messages.PayloadFor(m))
	}
	return out
}
