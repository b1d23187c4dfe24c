package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/auth"
	"github.com/echoline/echochat-server/internal/media"
	"github.com/echoline/echochat-server/internal/store"
)

// AuthHandlers provides HTTP handlers for authentication endpoints.
type AuthHandlers struct {
	authService *auth.Service
	media       media.Store
	store       store.UserStore
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, mediaStore media.Store, userStore store.UserStore, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		media:       mediaStore,
		store:       userStore,
		log:         logger,
	}
}

// SignupRequest represents the signup request body.
type SignupRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UpdateProfileRequest represents the profile update request body.
type UpdateProfileRequest struct {
	ProfilePic string `json:"profile_pic" binding:"required"`
}

// Signup handles user registration.
// POST /api/auth/signup
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid signup request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.authService.Signup(c.Request.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrInvalidName),
			errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid signup data"})
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to sign up user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("email", user.Email).Int64("user_id", user.ID).Msg("user signed up")
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: userResponse(user)})
}

// Login handles user login.
// POST /api/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("email", user.Email).Int64("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: userResponse(user)})
}

// Logout acknowledges a logout. Tokens are stateless; the client discards
// its copy.
// POST /api/auth/logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Check returns the authenticated user.
// GET /api/auth/check
func (h *AuthHandlers) Check(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load user")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}

// UpdateProfile uploads a new profile picture and stores its URL.
// PUT /api/auth/update-profile
func (h *AuthHandlers) UpdateProfile(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "profile pic is required"})
		return
	}

	url, err := h.media.Upload(c.Request.Context(), req.ProfilePic)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", uid).Msg("profile pic upload failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to upload image"})
		return
	}

	user, err := h.store.UpdateProfilePic(c.Request.Context(), uid, url)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to update profile pic")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}
