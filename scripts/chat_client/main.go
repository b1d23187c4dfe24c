// Command chat_client is a small terminal client for manual testing:
// it logs in over REST, attaches to the websocket event stream and lets
// you chat with one contact at a time.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/echoline/echochat-server/internal/client"
	"github.com/echoline/echochat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat_client: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	flag.Parse()

	if *email == "" || *password == "" {
		return fmt.Errorf("both -email and -password are required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	api := &apiClient{base: *addr, http: http.DefaultClient}

	user, err := api.login(ctx, *email, *password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Printf("Logged in as %s (id %d)\n", user.FullName, user.ID)

	session := client.New(user.ID)

	contacts, err := api.listContacts(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	session.SetContacts(contacts)

	wsURL := strings.Replace(*addr, "http", "ws", 1) + fmt.Sprintf("/ws?user_id=%d", user.ID)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	src := newWSSource()
	session.Subscribe(src)
	src.On(proto.EventNewMessage, printIncoming(session))
	src.On(proto.EventOnlineUsers, func(json.RawMessage) {
		printRoster(session)
	})

	go func() {
		defer cancel()
		src.readLoop(ctx, conn)
	}()

	printContacts(session)
	fmt.Println("Commands: /chat <id> to open a conversation, /contacts, /quit.")
	fmt.Println("Anything else is sent to the open conversation.")

	inputLoop(ctx, cancel, api, session)

	stop()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func inputLoop(ctx context.Context, cancel context.CancelFunc, api *apiClient, session *client.ChatSessionClient) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				cancel()
				return
			}
			handleLine(ctx, api, session, strings.TrimSpace(line))
		}
	}
}

func handleLine(ctx context.Context, api *apiClient, session *client.ChatSessionClient, line string) {
	switch {
	case line == "":
	case line == "/quit":
		os.Exit(0)
	case line == "/contacts":
		printContacts(session)
	case strings.HasPrefix(line, "/chat "):
		id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/chat ")), 10, 64)
		if err != nil {
			fmt.Println("usage: /chat <id>")
			return
		}
		openChat(ctx, api, session, id)
	default:
		sendText(ctx, api, session, line)
	}
}

func openChat(ctx context.Context, api *apiClient, session *client.ChatSessionClient, peerID int64) {
	session.Select(peerID)

	history, err := api.listHistory(ctx, peerID)
	if err != nil {
		log.Printf("load history: %v", err)
		return
	}
	session.SetHistory(history)
	session.MarkSeen()

	fmt.Printf("--- conversation with %d (%d messages) ---\n", peerID, len(history))
	for _, m := range history {
		printMessage(session, m)
	}
}

func sendText(ctx context.Context, api *apiClient, session *client.ChatSessionClient, text string) {
	peer := session.Counterpart()
	if session.State() != client.StateReady {
		fmt.Println("open a conversation first with /chat <id>")
		return
	}

	pending := session.AppendOptimistic(text, nil)

	confirmed, err := api.send(ctx, peer, text)
	if err != nil {
		log.Printf("send: %v", err)
		return
	}
	session.Confirm(pending.ID, confirmed)
}

func printIncoming(session *client.ChatSessionClient) func(json.RawMessage) {
	return func(data json.RawMessage) {
		var payload proto.MessagePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		printMessage(session, client.FromPayload(payload))
	}
}

func printMessage(session *client.ChatSessionClient, m client.Message) {
	who := fmt.Sprintf("user %d", m.SenderID)
	for _, c := range session.Contacts() {
		if c.ID == m.SenderID {
			who = c.FullName
			break
		}
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt, who, m.Text)
}

func printContacts(session *client.ChatSessionClient) {
	fmt.Println("Contacts:")
	for _, c := range session.Contacts() {
		marker := " "
		if session.IsOnline(c.ID) {
			marker = "*"
		}
		fmt.Printf("  %s %d  %s\n", marker, c.ID, c.FullName)
	}
}

func printRoster(session *client.ChatSessionClient) {
	online := 0
	for _, c := range session.Contacts() {
		if session.IsOnline(c.ID) {
			online++
		}
	}
	fmt.Printf("(%d contacts online)\n", online)
}

// wsSource adapts a websocket read loop to the session's EventSource.
type wsSource struct {
	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
}

func newWSSource() *wsSource {
	return &wsSource{handlers: make(map[string][]func(json.RawMessage))}
}

func (s *wsSource) On(event string, handler func(json.RawMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], handler)
}

func (s *wsSource) Off(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

func (s *wsSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			if ctx.Err() == nil {
				log.Printf("read error: %v", err)
			}
			return
		}

		s.mu.Lock()
		handlers := append([]func(json.RawMessage){}, s.handlers[frame.Event]...)
		s.mu.Unlock()

		for _, h := range handlers {
			h(frame.Data)
		}
	}
}

// apiClient is a thin wrapper over the REST surface.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

type userPayload struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Pic      string `json:"profile_pic"`
}

func (a *apiClient) login(ctx context.Context, email, password string) (*userPayload, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	var resp struct {
		Token string      `json:"token"`
		User  userPayload `json:"user"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}

	a.token = resp.Token
	return &resp.User, nil
}

func (a *apiClient) listContacts(ctx context.Context) ([]client.Contact, error) {
	var users []userPayload
	if err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users); err != nil {
		return nil, err
	}

	contacts := make([]client.Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, client.Contact{ID: u.ID, FullName: u.FullName, ProfilePic: u.Pic})
	}
	return contacts, nil
}

func (a *apiClient) listHistory(ctx context.Context, peerID int64) ([]client.Message, error) {
	var payloads []proto.MessagePayload
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/messages/%d", peerID), nil, &payloads); err != nil {
		return nil, err
	}

	msgs := make([]client.Message, 0, len(payloads))
	for _, p := range payloads {
		msgs = append(msgs, client.FromPayload(p))
	}
	return msgs, nil
}

func (a *apiClient) send(ctx context.Context, peerID int64, text string) (client.Message, error) {
	body, _ := json.Marshal(map[string]string{"text": text})

	var payload proto.MessagePayload
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/api/messages/send/%d", peerID), body, &payload); err != nil {
		return client.Message{}, err
	}
	return client.FromPayload(payload), nil
}

func (a *apiClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
