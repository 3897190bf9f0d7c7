package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/m4xw311/hybrid/agent"
	"github.com/m4xw311/hybrid/agent/acp"
	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/metrics"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	toolsetFlag := flag.String("t", "", "Toolset to use (defaults to 'default')")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	m := metrics.New()
	hybridAgent, closeCapabilities, err := agent.Setup(context.Background(), cfg, *toolsetFlag, m, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing agent: %+v\n", err)
		os.Exit(1)
	}
	defer closeCapabilities()

	logger.Info().Str("addr", *addr).Msg("ACP WebSocket server running on /ws, metrics on /metrics")
	if err := http.ListenAndServe(*addr, newMux(hybridAgent, m, logger)); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		closeCapabilities()
		os.Exit(1)
	}
}

func newMux(a *agent.Agent, m *metrics.Metrics, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handleWS(a, logger))
	mux.Handle("/metrics", m.Handler())
	return mux
}

// handleWS runs one ACP server per connection. Each text message is one
// JSON-RPC message.
func handleWS(a *agent.Agent, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("upgrade error")
			return
		}
		defer conn.Close()

		log := logger.With().Str("remote", r.RemoteAddr).Logger()
		log.Info().Msg("client connected")

		in, inW := io.Pipe()
		// WebSocket messages → ACP input
		go func() {
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					log.Debug().Err(err).Msg("WS read ended")
					inW.Close()
					return
				}
				if _, err := inW.Write(append(msg, '\n')); err != nil {
					return
				}
			}
		}()

		out := &lineWriter{conn: conn}
		if err := acp.Run(r.Context(), a, in, out, log); err != nil {
			log.Warn().Err(err).Msg("ACP session failed")
		}
		in.Close()
		log.Info().Msg("client disconnected")
	}
}

// lineWriter sends every complete newline-terminated line as one WebSocket
// text message.
type lineWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
	buf  bytes.Buffer
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			return len(p), nil
		}
		line := make([]byte, i)
		copy(line, l.buf.Next(i+1))
		if err := l.conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return 0, err
		}
	}
}
