package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

// defaultScope is the matchmaking namespace used when a client names none.
const defaultScope = "lobby"

type gamePlay interface {
	Dispatch(ctx context.Context, identity, scope, target string, action protocol.Action) error
	ShowMenu(ctx context.Context, target string)
	Invite(ctx context.Context, inviter, inviteeHint, inviteeTarget string) error
	RecentResults(ctx context.Context, identity string) error
}

// Server is the chat-style surface of the engine: it upgrades connections,
// feeds tapped action tokens into the gameplay service and implements the
// service's Notifier port. Render targets it mints are simply the client
// identities, so renders addressed by identity reach the right socket.
type Server struct {
	logger *slog.Logger
	game   gamePlay

	upgrader websocket.Upgrader

	clientsMutex sync.RWMutex
	clients      map[string]*client
}

// client wraps one connection; gorilla allows a single concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (that *client) send(msg Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func New(logger *slog.Logger) *Server {
	return &Server{
		logger: logger,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		clients: make(map[string]*client),
	}
}

// SetGamePlay wires the gameplay service in. The server is constructed first
// because the service needs it as its Notifier.
func (that *Server) SetGamePlay(game gamePlay) {
	that.game = game
}

// Start - starts the WebSocket server and blocks until ctx is cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down WebSocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	identity, cl, err := that.registerClient(conn)
	if err != nil {
		log.Error("failed to register client", "error", err)
		return
	}
	defer that.unregisterClient(identity, cl)

	log = log.With("identity", identity)
	log.Info("client connected")

	that.game.ShowMenu(ctx, identity)

	that.readLoop(ctx, identity, conn, log)

	log.Info("client disconnected")
}

// registerClient expects the first message to be a connect carrying the
// client's identity token.
func (that *Server) registerClient(conn *websocket.Conn) (string, *client, error) {
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return "", nil, fmt.Errorf("failed to read connect message: %w", err)
	}

	if msg.Action != actionConnect {
		return "", nil, fmt.Errorf("expected %q action, got %q", actionConnect, msg.Action)
	}

	var payload connectPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal connect payload: %w", err)
	}

	if payload.ID == "" {
		return "", nil, errors.New("connect payload carries no id")
	}

	cl := &client{conn: conn}

	that.clientsMutex.Lock()
	that.clients[payload.ID] = cl
	that.clientsMutex.Unlock()

	return payload.ID, cl, nil
}

func (that *Server) unregisterClient(identity string, cl *client) {
	that.clientsMutex.Lock()
	defer that.clientsMutex.Unlock()

	// a reconnect may already have replaced the entry
	if current, ok := that.clients[identity]; ok && current == cl {
		delete(that.clients, identity)
	}
}

func (that *Server) readLoop(ctx context.Context, identity string, conn *websocket.Conn, log *slog.Logger) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("failed to read message", "error", err)
			}
			return
		}

		if err := that.handleMessage(ctx, identity, &msg); err != nil {
			log.Error("failed to handle message", "action", msg.Action, "error", err)
		}
	}
}

func (that *Server) lookupClient(identity string) (*client, bool) {
	that.clientsMutex.RLock()
	defer that.clientsMutex.RUnlock()

	cl, ok := that.clients[identity]
	return cl, ok
}
