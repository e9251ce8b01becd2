package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pumpfun-relay/internal/events"
	"pumpfun-relay/internal/hub"
)

const testProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConnector_SubscribeAndRelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// First frame must be the programSubscribe request.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req struct {
			JSONRPC string        `json:"jsonrpc"`
			ID      uint64        `json:"id"`
			Method  string        `json:"method"`
			Params  []interface{} `json:"params"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal subscribe request: %v", err)
			return
		}
		if req.Method != "programSubscribe" {
			t.Errorf("expected programSubscribe, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[0] != testProgram {
			t.Errorf("unexpected params: %v", req.Params)
		}

		// A notification the normalizer accepts.
		notification := `{"method":"programNotification","params":{"result":{` +
			`"context":{"slot":100},` +
			`"value":{"pubkey":"ABCDEFGH1234","account":{"owner":"` + testProgram + `"}}}}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(notification)); err != nil {
			return
		}

		// A frame the normalizer declines.
		if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	h := hub.New(16)
	defer h.Close()
	sub := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &Connector{
		URL:            wsURL(server),
		ProgramID:      testProgram,
		Hub:            h,
		Logger:         testLogger(),
		ReconnectDelay: 10 * time.Millisecond,
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	// First hub message is the normalized event.
	select {
	case msg := <-sub.C():
		var event events.TokenEvent
		if err := json.Unmarshal([]byte(msg), &event); err != nil {
			t.Fatalf("unmarshal relayed event: %v", err)
		}
		if event.TransactionSignature != "ABCDEFGH_100" {
			t.Errorf("expected signature ABCDEFGH_100, got %s", event.TransactionSignature)
		}
		if event.Token.MintAddress != "ABCDEFGH1234" {
			t.Errorf("expected mint ABCDEFGH1234, got %s", event.Token.MintAddress)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for normalized event")
	}

	// Second is the raw frame, untouched.
	select {
	case msg := <-sub.C():
		if msg != "not json" {
			t.Errorf("expected raw passthrough, got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for raw passthrough")
	}

	cancel()
	select {
	case err := <-runErr:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestConnector_ReconnectAfterReadError(t *testing.T) {
	var connects atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connects.Add(1)

		// Read the subscribe request, then drop the connection to force a
		// read error on the connector side.
		conn.ReadMessage()
		conn.Close()
	}))
	defer server.Close()

	h := hub.New(16)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &Connector{
		URL:            wsURL(server),
		ProgramID:      testProgram,
		Hub:            h,
		Logger:         testLogger(),
		ReconnectDelay: 10 * time.Millisecond,
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for connects.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 connections, got %d", connects.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-runErr:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestConnector_CancelDuringConnectRetry(t *testing.T) {
	h := hub.New(16)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())

	c := &Connector{
		// Nothing listens here; every dial fails.
		URL:            "ws://127.0.0.1:1",
		ProgramID:      testProgram,
		Hub:            h,
		Logger:         testLogger(),
		ReconnectDelay: 10 * time.Millisecond,
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-runErr:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
