package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/clawplaza/searchchat/internal/chat"
)

// maxPortRetries is the number of ports to try before giving up.
const maxPortRetries = 10

// Chatter answers one chat request. *chat.Orchestrator implements it.
type Chatter interface {
	Run(ctx context.Context, req chat.Request) (string, error)
}

// Server is the HTTP front end of the agent loop.
type Server struct {
	chat    Chatter
	hub     *EventHub
	handler http.Handler
	httpSrv *http.Server
}

// New creates a server for listenAddr (host:port). hub may be nil, in which
// case the /events endpoints are not served.
func New(c Chatter, hub *EventHub, listenAddr string) *Server {
	s := &Server{chat: c, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if hub != nil {
		mux.HandleFunc("GET /events", s.handleSSE)
		mux.HandleFunc("GET /events/history", s.handleHistory)
	}

	s.handler = cors.New(cors.Options{
		AllowOriginFunc: func(string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(mux)

	s.httpSrv = &http.Server{
		Addr:              listenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening on the configured address. Non-blocking.
// Unless pinned, a busy port makes it try the next ones up to
// maxPortRetries. Returns the actual port.
func (s *Server) Start(pinned bool) (int, error) {
	host, portStr, err := net.SplitHostPort(s.httpSrv.Addr)
	if err != nil {
		return 0, fmt.Errorf("listen address %q: %w", s.httpSrv.Addr, err)
	}
	port, _ := strconv.Atoi(portStr)

	tries := maxPortRetries
	if pinned || port == 0 {
		tries = 1
	}
	for i := 0; i < tries; i++ {
		tryAddr := net.JoinHostPort(host, strconv.Itoa(port+i))
		ln, err := net.Listen("tcp", tryAddr)
		if err != nil {
			if tries == 1 {
				return 0, fmt.Errorf("http port %d: %w", port, err)
			}
			continue
		}
		s.httpSrv.Addr = ln.Addr().String()
		go func() {
			if err := s.httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
		return ln.Addr().(*net.TCPAddr).Port, nil
	}
	return 0, fmt.Errorf("no available port in range %d-%d", port, port+maxPortRetries-1)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type chatRequest struct {
	Message *string         `json:"message"`
	History json.RawMessage `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body: " + err.Error()})
		return
	}
	if req.Message == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "message required"})
		return
	}

	// history is not validated; anything that is not an array is dropped.
	var history []json.RawMessage
	_ = json.Unmarshal(req.History, &history)

	reply, err := s.chat.Run(r.Context(), chat.Request{Message: *req.Message, History: history})
	if err != nil {
		slog.Error("chat request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.hub.History()})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, _ := json.Marshal(e)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
