package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 1 * time.Second
	maxMessageSize = 8192
	pingResolution = time.Millisecond * 500
	pongWait       = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client is one player's websocket connection to a room: it publishes
// outbound frames from updates and dispatches parsed inbound messages to
// onMessage. Adapted from fastview.client[T], generalized from a
// publish-only view stream to the bidirectional protocol spec.md §6 needs.
type Client struct {
	ConnectionID string

	ws      *websock
	updates <-chan interface{}
	onMessage func(InboundMessage)
}

// NewClientFromConn wraps an already-upgraded websocket.Conn.
func NewClientFromConn(connectionID string, ws *websocket.Conn, updates <-chan interface{}, onMessage func(InboundMessage)) *Client {
	ws.SetReadLimit(maxMessageSize)
	return &Client{
		ConnectionID: connectionID,
		ws:           newWebsock(ws),
		updates:      updates,
		onMessage:    onMessage,
	}
}

// Sync runs the read, ping/pong, and publish pumps until the connection
// closes or the context is cancelled, returning the first pump error.
func (c *Client) Sync(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return c.readMessages(groupCtx) })
	group.Go(func() error { return c.pingPong(groupCtx) })
	group.Go(func() error { return c.publish(groupCtx) })

	return group.Wait()
}

func (c *Client) Close() { c.ws.Close() }

func (c *Client) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	defer close(pong)
	c.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		case <-ctx.Done():
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return fmt.Errorf("transport: pong deadline exceeded for %s", c.ConnectionID)
			}
			if err := c.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (c *Client) ping(ctx context.Context) error {
	return c.ws.Write(ctx, func(ws *websocket.Conn) error {
		return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	})
}

// readMessages blocks on inbound JSON messages and dispatches each to
// onMessage. Per spec.md §7, a message that fails to parse is logged and
// dropped rather than tearing down the connection.
func (c *Client) readMessages(ctx context.Context) error {
	for {
		var raw json.RawMessage
		err := c.ws.Read(ctx, func(ws *websocket.Conn) error {
			_, payload, readErr := ws.ReadMessage()
			raw = payload
			return readErr
		})
		if err != nil {
			return err
		}
		if raw == nil {
			continue
		}

		var msg InboundMessage
		if jsonErr := json.Unmarshal(raw, &msg); jsonErr != nil {
			log.Println("transport: dropping malformed message:", jsonErr)
			continue
		}
		c.onMessage(msg)
	}
}

func (c *Client) publish(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-c.updates:
			if !ok {
				return nil
			}
			envelope := envelopeFor(msg)
			err := c.ws.Write(ctx, func(ws *websocket.Conn) error {
				if setErr := ws.SetWriteDeadline(time.Now().Add(writeWait)); setErr != nil {
					return fmt.Errorf("transport: set write deadline: %w", setErr)
				}
				if writeErr := ws.WriteJSON(envelope); writeErr != nil && isUnexpectedError(writeErr) {
					return fmt.Errorf("transport: publish failed: %w", writeErr)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}
