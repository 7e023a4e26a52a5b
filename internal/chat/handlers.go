// Package chat exposes the HTTP surface: WebSocket upgrades, health and
// stats endpoints, the administrative ban API, and the built-in chat page.
package chat

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Service ties the hub to its HTTP handlers.
type Service struct {
	hub      *Hub
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewService creates the HTTP layer for hub, enforcing the configured origin
// allow-list on WebSocket upgrades.
func NewService(hub *Hub, cfg Config, log zerolog.Logger) *Service {
	cfg = sanitizeConfig(cfg)
	origins := newOriginChecker(cfg.AllowedOrigins, log)

	return &Service{
		hub: hub,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// WebSocketHandler upgrades the HTTP connection and registers the resulting
// client with the hub, which launches the pump goroutines.
func (s *Service) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	s.hub.Register(NewClient(conn, s.hub, r.RemoteAddr))
}

// HealthHandler reports liveness plus uptime and the current online count.
func (s *Service) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.hub.Health())
}

// StatsHandler reports a snapshot of hub state.
func (s *Service) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.hub.Stats())
}

// adminRequest is the JSON body accepted by the ban and unban endpoints.
type adminRequest struct {
	Username string `json:"username"`
}

// BanHandler adds a username to the ban list and evicts any live holder.
func (s *Service) BanHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := s.adminUsername(w, r)
	if !ok {
		return
	}

	s.hub.Ban(username)
	s.log.Info().Str("user", username).Msg("ban requested via admin API")
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// UnbanHandler removes a username from the ban list.
func (s *Service) UnbanHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := s.adminUsername(w, r)
	if !ok {
		return
	}

	s.hub.Unban(username)
	s.log.Info().Str("user", username).Msg("unban requested via admin API")
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// adminUsername authenticates an admin request and extracts the target
// username. On failure it writes the error response and reports !ok.
func (s *Service) adminUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}

	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return "", false
	}

	username := sanitizeUsername(req.Username)
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return "", false
	}
	return username, true
}

// authorized compares the bearer token against the configured admin token in
// constant time. With no token configured the admin API is disabled.
func (s *Service) authorized(r *http.Request) bool {
	if s.cfg.AdminToken == "" {
		return false
	}

	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) == 1
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn().Err(err).Msg("error writing JSON response")
	}
}

// ChatPageHandler serves the embedded browser client.
func (s *Service) ChatPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(chatPageHTML)); err != nil {
		s.log.Warn().Err(err).Msg("error writing chat page")
	}
}
