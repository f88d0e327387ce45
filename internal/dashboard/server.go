// Package dashboard serves a small password-protected web page that streams
// the bot's log records over a websocket.
package dashboard

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

//go:embed static/index.html
var staticFiles embed.FS

const dashboardUser = "admin"

// RunCounter reports how many scripted runs are in flight.
type RunCounter interface {
	ActiveRuns() int64
}

// Server handles the dashboard HTTP and WS endpoints.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	runs     RunCounter
	password string
}

// NewServer creates a dashboard server. runs may be nil.
func NewServer(hub *Hub, runs RunCounter, password string) *Server {
	return &Server{
		hub:      hub,
		runs:     runs,
		password: password,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return false
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return u.Host == r.Host
			},
		},
	}
}

// Handler returns the HTTP handler for the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	// If no password set, return 403 for all dashboard routes
	if s.password == "" {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Dashboard disabled (no password set)", http.StatusForbidden)
		})
		return mux
	}

	mux.Handle("/", s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data, err := staticFiles.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	})))

	mux.Handle("/ws", s.requireAuth(http.HandlerFunc(s.handleWS)))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if s.runs != nil {
		status["active_runs"] = s.runs.ActiveRuns()
	}
	if s.hub != nil {
		status["clients"] = s.hub.Clients()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(dashboardUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="gatherbot"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
