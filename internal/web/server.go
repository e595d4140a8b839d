// Package web provides an HTTP status server for the pir-presets daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/pir-presets/internal/status"
)

// Switch toggles motion sensing. Implemented by *motion.Controller.
type Switch interface {
	SetEnabled(on bool)
	Enabled() bool
}

// StateJSON is the motion sensing part of the WLED /json/state object.
type StateJSON struct {
	MotionSensingState *bool `json:"motionSensingState,omitempty"`
	Verbose            bool  `json:"v,omitempty"`
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	sw         Switch
}

// New creates a Server that reads state from the given tracker and toggles
// motion sensing through sw.
func New(addr string, tracker *status.Tracker, sw Switch) *Server {
	s := &Server{tracker: tracker, sw: sw}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/json/state", s.handleState)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: withCORS(mux),
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.writeState(w)
	case http.MethodPost:
		var req StateJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":9}`))
			return
		}
		if req.MotionSensingState != nil {
			on := *req.MotionSensingState
			s.sw.SetEnabled(on)
			s.tracker.SetEnabled(on)
			log.Info().Bool("enabled", on).Str("remote", r.RemoteAddr).Msg("http: motion sensing toggled")
		}
		if req.Verbose {
			s.writeState(w)
			return
		}
		w.Write([]byte(`{"success":true}`))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeState(w http.ResponseWriter) {
	on := s.sw.Enabled()
	data, _ := json.Marshal(StateJSON{MotionSensingState: &on})
	w.Write(data)
}
