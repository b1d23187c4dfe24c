package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/auth"
	"github.com/echoline/echochat-server/internal/config"
	"github.com/echoline/echochat-server/internal/core"
	"github.com/echoline/echochat-server/internal/media"
	"github.com/echoline/echochat-server/internal/service/messages"
	"github.com/echoline/echochat-server/internal/store"
	"github.com/echoline/echochat-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// testEnv holds everything a handler test needs.
type testEnv struct {
	server      *stdhttp.Server
	ts          *httptest.Server
	store       store.Store
	authService *auth.Service
	gateway     *core.ConnectionGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := createTestStore(t)
	t.Cleanup(func() { _ = st.Close() })

	authService := createTestAuthService(t, st, "test-secret")

	disabledLogger := zerolog.New(nil)
	gateway := core.NewGateway(core.NewPresenceRegistry(), &disabledLogger)
	msgService := messages.New(st, media.NewMemStore(), gateway, &disabledLogger)

	cfg := config.Config{
		Addr:              ":0",
		JWTSecret:         "test-secret",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}

	server := NewServer(gateway, authService, msgService, media.NewMemStore(), st, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		server:      server,
		ts:          ts,
		store:       st,
		authService: authService,
		gateway:     gateway,
	}
}

// signupUser registers a user and returns it with a valid token.
func (e *testEnv) signupUser(t *testing.T, fullName, email string) (*store.User, string) {
	t.Helper()

	user, token, err := e.authService.Signup(context.Background(), fullName, email, "password123")
	if err != nil {
		t.Fatalf("failed to sign up %s: %v", email, err)
	}
	return user, token
}
