// Package chat wires HTTP handlers into a ServeMux via routing helpers.
package chat

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the chat page, WebSocket endpoint, health and stats endpoints, and
// the administrative ban API. Every response carries the security headers.
func (s *Service) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.ChatPageHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/stats", s.StatsHandler)
	mux.HandleFunc("/admin/ban", s.BanHandler)
	mux.HandleFunc("/admin/unban", s.UnbanHandler)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
