package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const defaultSendQueueSize = 64

// Client represents one connected websocket session.
//
// The send queue is intentionally never closed by broadcasters; done signals
// the pump to stop, and Close is idempotent.
type Client struct {
	ConnID string
	UserID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient builds a client with a bounded send queue.
func NewClient(userID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Client{
		ConnID: uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue offers a frame to the send queue without blocking. It reports false
// when the queue is full or the client is shutting down; a hung peer must
// never stall the mutation that triggered the event.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// WritePump drains the send queue into the websocket connection, bounding
// each write by writeTimeout. It returns when the client closes or a write
// fails.
func (c *Client) WritePump(ctx context.Context, conn *websocket.Conn, writeTimeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case frame := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.Close()
				return
			}
		}
	}
}
