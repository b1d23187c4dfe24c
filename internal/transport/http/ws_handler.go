package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/core"
)

// WSHandler upgrades HTTP connections and bridges them to the gateway.
// The handshake must carry a user_id query parameter; connections without
// one are closed before any registration happens.
type WSHandler struct {
	gateway *core.ConnectionGateway
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gateway *core.ConnectionGateway, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{gateway: gateway, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		h.log.Warn().Str("remote", r.RemoteAddr).Msg("ws handshake without user_id")
		conn, acceptErr := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if acceptErr == nil {
			conn.Close(websocket.StatusPolicyViolation, "user_id is required")
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	handle := core.NewConn(uuid.NewString())
	h.gateway.Register(userID, handle)
	defer h.gateway.Unregister(userID, handle)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, handle)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Int64("user_id", userID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop discards inbound frames. The channel is push-only; reading
// exists to detect the transport-level close.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, handle *core.Conn) error {
	for {
		select {
		case event := <-handle.Events:
			if err := wsjson.Write(ctx, conn, event); err != nil {
				h.log.Error().Err(err).Str("conn_id", handle.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
