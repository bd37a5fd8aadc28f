// ABOUTME: WebSocket client for the deck control protocol
// ABOUTME: Handles connection, handshake, request/reply matching and status pushes
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/protocol"
	"github.com/Sendspin/sendspin-deck/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrTimeout       = errors.New("timed out waiting for reply")
	ErrNotConnected  = errors.New("not connected")
	ErrCommandFailed = errors.New("command failed")
)

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string // defaults to /deck
	ClientID   string // defaults to a random UUID
	Name       string
	Token      string
	Timeout    time.Duration // reply timeout, defaults to one second
	Logger     zerolog.Logger
}

// Client is a connection to one deck
type Client struct {
	config Config
	log    zerolog.Logger
	conn   *websocket.Conn
	mu     sync.RWMutex
	wmu    sync.Mutex

	pending   map[string]chan protocol.Message
	pendingMu sync.Mutex

	// Status receives every status pushed by the deck. Slow readers miss updates.
	Status chan protocol.Status

	server    protocol.ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/deck"
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  config,
		log:     config.Logger.With().Str("component", "client").Logger(),
		pending: make(map[string]chan protocol.Message),
		Status:  make(chan protocol.Status, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.log.Debug().Str("url", u.String()).Msg("Connecting")

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.config.Timeout
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		Token:    c.config.Token,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     "deck-remote",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
		if err := protocol.DecodePayload(msg.Payload, &c.server); err != nil {
			return err
		}
	case protocol.TypeServerError:
		var se protocol.ServerError
		protocol.DecodePayload(msg.Payload, &se)
		return fmt.Errorf("refused: %s: %s", se.Error, se.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	c.log.Debug().Str("server", c.server.Name).Msg("Handshake complete")
	return nil
}

// Server returns the deck's hello
func (c *Client) Server() protocol.ServerHello {
	return c.server
}

func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) readMessages() {
	defer c.Close()

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.log.Debug().Err(err).Msg("Read error")
			}
			return
		}
		c.route(msg)
	}
}

func (c *Client) route(msg protocol.Message) {
	if msg.ID != "" {
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
		if ok {
			ch <- msg
			return
		}
	}

	switch msg.Type {
	case protocol.TypeStatus:
		var st protocol.Status
		if err := protocol.DecodePayload(msg.Payload, &st); err != nil {
			c.log.Warn().Err(err).Msg("Bad status push")
			return
		}
		select {
		case c.Status <- st:
		default:
		}
	default:
		c.log.Debug().Str("type", msg.Type).Str("id", msg.ID).Msg("Unsolicited message")
	}
}

// Request sends a message and waits for the reply carrying the same ID.
func (c *Client) Request(ctx context.Context, typ string, payload interface{}) (protocol.Message, error) {
	id := uuid.New().String()
	ch := make(chan protocol.Message, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.sendJSON(protocol.Message{ID: id, Type: typ, Payload: payload}); err != nil {
		return protocol.Message{}, err
	}

	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return protocol.Message{}, fmt.Errorf("%s: %w", typ, ErrTimeout)
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	case <-c.ctx.Done():
		return protocol.Message{}, ErrNotConnected
	}
}

// Command sends a deck command and returns its ack. A refused command
// returns the ack and an error wrapping ErrCommandFailed.
func (c *Client) Command(ctx context.Context, typ string, payload interface{}) (protocol.Ack, error) {
	var ack protocol.Ack

	reply, err := c.Request(ctx, typ, payload)
	if err != nil {
		return ack, err
	}
	if reply.Type != protocol.TypeAck {
		return ack, fmt.Errorf("unexpected reply %s", reply.Type)
	}
	if err := protocol.DecodePayload(reply.Payload, &ack); err != nil {
		return ack, err
	}
	if !ack.OK {
		return ack, fmt.Errorf("%w: %s", ErrCommandFailed, ack.Error)
	}
	return ack, nil
}

// Query sends a query and decodes the reply payload into v.
func (c *Client) Query(ctx context.Context, typ string, v interface{}) error {
	reply, err := c.Request(ctx, typ, nil)
	if err != nil {
		return err
	}
	if reply.Type == protocol.TypeError && typ != protocol.TypeGetError {
		var e protocol.ErrorReply
		protocol.DecodePayload(reply.Payload, &e)
		return errors.New(e.Error)
	}
	if v == nil {
		return nil
	}
	return protocol.DecodePayload(reply.Payload, v)
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.conn.Close()
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
