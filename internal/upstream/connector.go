// Package upstream maintains the relay's single connection to the Solana RPC
// WebSocket endpoint.
package upstream

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"pumpfun-relay/internal/events"
	"pumpfun-relay/internal/hub"
	"pumpfun-relay/internal/observability"
	"pumpfun-relay/internal/solana"
)

// DefaultReconnectDelay is how long the connector waits after a failed dial.
// Subscribe and read failures reconnect immediately.
const DefaultReconnectDelay = 5 * time.Second

const handshakeTimeout = 10 * time.Second

// Connector owns the upstream connection lifecycle: dial, subscribe, read,
// reconnect. Every inbound text frame is fed to the normalizer and the result
// is published to the hub; frames the normalizer declines are published
// verbatim so nothing is silently lost.
type Connector struct {
	// URL is the Solana RPC WebSocket endpoint.
	URL string
	// ProgramID is the program whose account changes are subscribed to.
	ProgramID string
	// Hub receives every normalized or passed-through frame.
	Hub *hub.Hub
	// Logger receives connection lifecycle and error lines.
	Logger *log.Logger
	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration
}

// Run dials and re-dials the upstream endpoint until ctx is cancelled. There
// is no retry limit and no backoff growth: connect failures wait a fixed
// delay, everything else retries immediately.
func (c *Connector) Run(ctx context.Context) error {
	delay := c.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := dialer.DialContext(ctx, c.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Logger.Printf("Failed to connect to %s: %v", c.URL, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		c.Logger.Println("Connected to Solana RPC")
		observability.RecordUpstreamConnect()

		if err := conn.WriteJSON(solana.SubscribeRequest(c.ProgramID)); err != nil {
			c.Logger.Printf("Subscription error: %v", err)
			conn.Close()
			continue
		}
		c.Logger.Printf("Subscribed to program %s", c.ProgramID)

		c.readLoop(ctx, conn)
		conn.Close()

		if err := ctx.Err(); err != nil {
			return err
		}
		c.Logger.Println("Disconnected. Reconnecting...")
	}
}

// readLoop consumes frames until a read error or cancellation. A watcher
// goroutine closes the connection on cancellation so a blocked read returns.
func (c *Connector) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.Logger.Printf("WebSocket read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if event, ok := events.Parse(data, c.ProgramID, time.Now()); ok {
			observability.RecordEventNormalized()
			c.Hub.Publish(event)
		} else {
			// Unrecognized shape: relay the raw frame for debugging.
			observability.RecordRawPassthrough()
			c.Hub.Publish(string(data))
		}
	}
}
