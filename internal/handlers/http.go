// internal/handlers/http.go
package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthHandler reports liveness plus a couple of cheap gauges.
func HealthHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"users":  s.Registry.Count(),
			"rooms":  len(s.Rooms.List()),
		})
	}
}

// ListRoomsHandler serves the public room directory over plain HTTP, for
// clients that want the list before opening a websocket.
func ListRoomsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Rooms.List())
	}
}
