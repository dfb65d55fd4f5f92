// Package rpcserver implements the HTTP/WS Server (C8): the loopback-only
// listener that exposes the RPC Dispatcher over the Transmission-RPC HTTP
// envelope at /transmission/rpc, pushes snapshot/patch/event frames over
// /ws, and serves the packed UI for every other path.
package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/assets"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/logging"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/rpc"
)

// maxRPCBody bounds a single /transmission/rpc request, well above any
// legitimate torrent-add metainfo payload but far short of unbounded.
const maxRPCBody = 16 << 20

// Server binds a single loopback address and serves the control surface
// (RPC, WS, static UI) described above. Construct with New, then Start.
type Server struct {
	dispatcher     *rpc.Dispatcher
	hub            *hub
	assets         *assets.Provider
	logger         *logging.Logger
	token          string
	trustedOrigins map[string]bool

	listener   net.Listener
	httpServer *http.Server
}

// Config carries the construction-time knobs a caller may override; Addr
// defaults to "127.0.0.1:0" (OS-assigned loopback port) when empty.
type Config struct {
	Addr           string
	Token          string
	TrustedOrigins []string
	Snapshots      SnapshotSource
}

// New builds a Server bound to cfg.Addr (an ephemeral 127.0.0.1 port when
// empty), refusing non-loopback hosts, but does not yet
// accept connections; call Start to begin serving.
func New(dispatcher *rpc.Dispatcher, cfg Config) (*Server, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rpcserver: listen: %w", err)
	}
	host, _, _ := net.SplitHostPort(ln.Addr().String())
	if host != "127.0.0.1" && host != "::1" {
		ln.Close()
		return nil, fmt.Errorf("rpcserver: refusing non-loopback bind %q", ln.Addr().String())
	}

	trusted := make(map[string]bool, len(cfg.TrustedOrigins))
	for _, o := range cfg.TrustedOrigins {
		trusted[o] = true
	}

	s := &Server{
		dispatcher:     dispatcher,
		hub:            newHub(cfg.Snapshots),
		assets:         assets.New(),
		logger:         logging.New("http"),
		token:          cfg.Token,
		trustedOrigins: trusted,
		listener:       ln,
	}

	router := mux.NewRouter()
	router.HandleFunc("/transmission/rpc", s.withAuth(s.handleRPC)).Methods(http.MethodPost)
	router.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	router.PathPrefix("/").HandlerFunc(s.withAuth(s.handleAsset))

	s.httpServer = &http.Server{Handler: router}
	return s, nil
}

// Addr returns the bound loopback address, including the OS-assigned port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// OnSnapshot is the Engine.OnPublish hook: it forwards every published
// snapshot to the debounced WS broadcast hub. The process entry point wires
// this directly with engine.OnPublish(server.OnSnapshot).
func (s *Server) OnSnapshot(snap model.SessionSnapshot) {
	s.hub.onSnapshot(snap)
}

// BroadcastEvent fans a named WS event out to every connected client, used
// by the process entry point for app-shutdown and by command handlers that
// need to surface a one-shot notice (torrent-added, torrent-finished,
// blocklist-updated, error).
func (s *Server) BroadcastEvent(name string, data interface{}) {
	s.hub.broadcastEvent(name, data)
}

// Start begins serving in the background; it returns immediately.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("serve exited: %v", err)
		}
	}()
}

// Stop drains in-flight requests up to the given timeout, then closes the
// listener. WS clients are not forcibly closed; app-shutdown should be
// broadcast before calling Stop so they can react to it first.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRPCBody+1))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if len(body) > maxRPCBody {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp := s.dispatcher.Handle(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	data, ctype, ok := s.assets.Open(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Write(data)
}
