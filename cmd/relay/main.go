// Package main runs the pump.fun WebSocket relay: one upstream Solana RPC
// programSubscribe feed fanned out to any number of downstream WebSocket
// clients.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pumpfun-relay/internal/hub"
	"pumpfun-relay/internal/observability"
	"pumpfun-relay/internal/server"
	"pumpfun-relay/internal/solana"
	"pumpfun-relay/internal/upstream"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_RPC_WS"), "Solana RPC WebSocket endpoint")
	port := flag.Int("port", envInt("SERVER_PORT", 8765), "Downstream WebSocket listen port")
	programID := flag.String("program-id", solana.PumpFunProgram, "Program ID to subscribe to")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[relay] ", log.LstdFlags|log.Lshortfile)

	logger.Println("Starting Pump.fun WebSocket Service...")

	// Validate required flags
	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required (or set SOLANA_RPC_WS)")
	}
	if err := solana.ValidatePubkey(*programID); err != nil {
		logger.Fatalf("Invalid --program-id %q: %v", *programID, err)
	}

	logger.Printf("Configuration loaded - Server port: %d, Solana RPC: %s", *port, *wsEndpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.New(hub.DefaultCapacity)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		sig = <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	errCh := make(chan error, 2)

	// Upstream connector task
	connector := &upstream.Connector{
		URL:       *wsEndpoint,
		ProgramID: *programID,
		Hub:       h,
		Logger:    log.New(os.Stdout, "[upstream] ", log.LstdFlags|log.Lshortfile),
	}
	go func() {
		if err := connector.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("upstream: %w", err)
		}
	}()

	// Downstream WebSocket server task
	srv := server.New(h, log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile))
	go func() {
		if err := srv.Run(ctx, *port); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	start := time.Now()
	go startStatusServer(*metricsAddr, srv, start, logger)

	logger.Println("Service running. Press Ctrl+C to shutdown...")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Fatalf("Fatal error: %v", err)
	}

	// Abrupt shutdown: tasks are cancelled without draining, so in-flight
	// client sends may be cut mid-frame.
	h.Close()
	logger.Println("Service shutdown complete.")
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status            string `json:"status"`
	Uptime            string `json:"uptime"`
	ActiveConnections int64  `json:"active_connections"`
	TotalConnections  uint64 `json:"total_connections"`
}

// startStatusServer serves /health, /metrics and /status.
func startStatusServer(addr string, srv *server.Server, start time.Time, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status:            "running",
			Uptime:            time.Since(start).String(),
			ActiveConnections: srv.Active(),
			TotalConnections:  srv.Accepted(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	logger.Printf("Starting status HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Status HTTP server error: %v", err)
	}
}

// envInt reads an integer environment variable with a fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s=%q: %v", key, v, err)
	}
	return n
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
