// ABOUTME: Network control surface for the deck
// ABOUTME: Serves the WebSocket control endpoint and the REST API on one echo instance
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/auth"
	"github.com/Sendspin/sendspin-deck/internal/control"
	"github.com/Sendspin/sendspin-deck/internal/deck"
	"github.com/Sendspin/sendspin-deck/internal/discovery"
	"github.com/Sendspin/sendspin-deck/internal/protocol"
	"github.com/Sendspin/sendspin-deck/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/rs/zerolog"
)

const (
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	helloTimeout  = 10 * time.Second
	sendBuffer    = 64
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	Secret     string // HMAC secret; empty disables authentication
	EnableMDNS bool
	Logger     zerolog.Logger
}

// Deck is the deck as seen by the network surfaces.
type Deck interface {
	control.Deck
	Watch() (<-chan deck.State, func())
}

// Server exposes one deck over WebSocket and REST.
type Server struct {
	config   Config
	log      zerolog.Logger
	serverID string

	deck       Deck
	dispatcher *control.Dispatcher

	upgrader websocket.Upgrader
	echo     *echo.Echo

	clients   map[string]*Client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is one connected WebSocket controller
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan protocol.Message
}

// New creates a server for d.
func New(config Config, d Deck) *Server {
	s := &Server{
		config:     config,
		log:        config.Logger.With().Str("component", "server").Logger(),
		serverID:   uuid.New().String(),
		deck:       d,
		dispatcher: control.NewDispatcher(d, config.Logger),
		clients:    make(map[string]*Client),
		stopChan:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin != "" {
				s.log.Debug().Str("origin", origin).Msg("Accepting WebSocket from browser origin")
			}
			return true
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(s.log))
	e.GET(discovery.Path, s.handleWebSocket)
	s.registerREST(e)
	s.echo = e

	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled or Stop is called.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("name", s.config.Name).Str("id", s.serverID).Msg("Server starting")

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Version:     version.Version,
			Logger:      s.config.Logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to start mDNS advertisement")
		}
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchDeck(watchCtx)
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Info().Str("addr", addr).Msg("Control server listening")

	errChan := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
	case <-s.stopChan:
	case serverErr = <-errChan:
		s.log.Error().Err(serverErr).Msg("HTTP server error")
	}

	s.shutdown()
	cancelWatch()
	s.wg.Wait()
	s.log.Info().Msg("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop makes Run return
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	// hijacked connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.clientsMu.RUnlock()
}

// watchDeck pushes a status snapshot to every client on each state change.
func (s *Server) watchDeck(ctx context.Context) {
	states, cancel := s.deck.Watch()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-states:
			if !ok {
				return
			}
			s.broadcast(control.StatusMessage(s.deck.Status()))
		}
	}
}

func (s *Server) broadcast(msg protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if err := s.send(c, msg); err != nil {
			s.log.Warn().Str("client", c.Name).Err(err).Msg("Dropping status push")
		}
	}
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return nil
	}

	s.log.Debug().Str("remote", c.Request().RemoteAddr).Msg("New WebSocket connection")
	s.handleConnection(conn)
	return nil
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		s.log.Debug().Msg("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	hello, err := readHello(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("Handshake failed")
		return
	}

	if s.config.Secret != "" {
		if _, err := auth.Validate(hello.Token, s.config.Secret); err != nil {
			s.log.Warn().Str("client", hello.Name).Err(err).Msg("Rejecting unauthenticated client")
			writeError(conn, "unauthorized", err.Error())
			return
		}
	}

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan protocol.Message, sendBuffer),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		s.log.Warn().Str("id", client.ID).Str("name", existing.Name).Msg("Rejecting duplicate client ID")
		writeError(conn, "duplicate_client_id", "Client ID already connected")
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	s.log.Info().Str("client", client.Name).Str("id", client.ID).Msg("Client connected")

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		s.log.Info().Str("client", client.Name).Msg("Client disconnected")
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	s.send(client, protocol.Message{Type: protocol.TypeServerHello, Payload: serverHello})
	s.send(client, control.StatusMessage(s.deck.Status()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
		s.handleClientMessage(client, data)
	}
}

func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("error reading hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("error unmarshaling message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return hello, err
	}
	if hello.ClientID == "" {
		return hello, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return hello, errors.New("client hello missing name")
	}
	return hello, nil
}

func writeError(conn *websocket.Conn, code, message string) {
	msg := protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ServerError{Error: code, Message: message},
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteJSON(msg)
}

// clientWriter owns all writes to a client connection
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Error().Err(err).Str("type", msg.Type).Msg("Error marshaling message")
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug().Err(err).Msg("Error writing message")
				client.Conn.Close()
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				client.Conn.Close()
				return
			}
		}
	}
}

func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn().Err(err).Str("client", client.Name).Msg("Error unmarshaling message")
		s.send(client, control.ErrorMessage(fmt.Errorf("malformed message: %w", err)))
		return
	}

	s.log.Debug().Str("client", client.Name).Str("type", msg.Type).Msg("Received")
	if err := s.send(client, s.dispatcher.Handle(msg)); err != nil {
		s.log.Warn().Err(err).Str("client", client.Name).Msg("Dropping reply")
	}
}

func (s *Server) send(client *Client, msg protocol.Message) error {
	select {
	case client.sendChan <- msg:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

// ClientCount returns the number of connected WebSocket clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
