package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/mazeflight/simulator/pkg/streaming"
)

const (
	outboxSize   = 10_000
	ackBacklog   = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection owns a WebSocket to the replay viewer. All frames go out
// through a single writer goroutine feeding off the outbox channel; a reader
// goroutine routes server acks back to waiters.
type connection struct {
	mu     sync.Mutex
	sock   *ws.Conn
	closed bool

	outbox chan []byte
	acks   chan streaming.AckMessage
	quit   chan struct{}

	wsURL  string
	secret string

	// The start_flight envelope is replayed after every reconnect so the
	// viewer re-associates the stream with the right flight.
	startMsg []byte

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBacklog),
		quit:   make(chan struct{}),
		logger: logger,
	}
}

// setStartMessage caches the start_flight envelope for reconnect replay.
// Pass nil once the flight has ended.
func (c *connection) setStartMessage(data []byte) {
	c.mu.Lock()
	c.startMsg = data
	c.mu.Unlock()
}

// dial connects to the viewer and starts the reader and writer goroutines.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	sock, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.swapSocket(sock)

	go c.writeLoop()
	go c.readLoop()
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	sock, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return sock, nil
}

func (c *connection) swapSocket(sock *ws.Conn) {
	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
}

func (c *connection) socket() *ws.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock
}

// writeFrame writes one text frame under the write deadline.
func writeFrame(sock *ws.Conn, data []byte) error {
	if err := sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return sock.WriteMessage(ws.TextMessage, data)
}

// writeLoop drains the outbox. It exits on shutdown or on the first write
// error, handing off to reconnect.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.quit:
			return
		case data := <-c.outbox:
			sock := c.socket()
			if sock == nil {
				continue
			}
			if err := writeFrame(sock, data); err != nil {
				c.logger.Warn("WebSocket write failed", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop decodes server messages, forwarding acks to waiting senders.
func (c *connection) readLoop() {
	for {
		sock := c.socket()
		if sock == nil {
			return
		}

		_, message, err := sock.ReadMessage()
		if err != nil {
			select {
			case <-c.quit:
				return
			default:
			}
			c.logger.Warn("WebSocket read failed", "error", err)
			go c.reconnect()
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Ignoring non-ack message", "raw", string(message))
			continue
		}

		select {
		case c.acks <- ack:
		default:
			c.logger.Debug("Ack backlog full, dropping", "for", ack.For)
		}
	}
}

// reconnect re-dials with exponential backoff, replays the cached
// start_flight envelope, and restarts the reader and writer.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.quit:
			return
		default:
		}

		c.logger.Info("Reconnecting to replay viewer", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}

		sock, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		c.sock = sock
		replay := c.startMsg
		c.mu.Unlock()

		if replay != nil {
			if err := writeFrame(sock, replay); err != nil {
				c.logger.Warn("start_flight replay failed", "error", err)
				_ = sock.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("Gave up reconnecting to replay viewer", "attempts", maxReconnect)
}

// send queues data for the writer. Telemetry frames are fire-and-forget: if
// the outbox is full the frame is dropped rather than stalling the flight.
func (c *connection) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
		c.logger.Warn("WebSocket outbox full, dropping frame")
	}
}

// sendAndWait queues data and blocks until the viewer acks it or the timeout
// expires. Used for the flight lifecycle envelopes where delivery matters.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.quit:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops both goroutines. Safe to call twice.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.quit)
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	if sock != nil {
		_ = sock.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return sock.Close()
	}
	return nil
}
