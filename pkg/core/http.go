/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/routerwatch/pkg/broadcast"
	"github.com/carverauto/routerwatch/pkg/db"
	httpx "github.com/carverauto/routerwatch/pkg/http"
	"github.com/carverauto/routerwatch/pkg/models"
)

// Handler returns the HTTP surface: the realtime websocket, the snapshot
// cold-read and the health check.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.Handle("/ws", broadcast.NewHandler(s.hub, s.live, s.config.AllowedOrigins, s.component("websocket")))

	api := router.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return httpx.CommonMiddleware(next, httpx.CORSConfig{AllowedOrigins: s.config.AllowedOrigins}, s.component("http"))
	})
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return router
}

// handleSnapshot returns the latest dashboard snapshot of one device.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ref := models.DeviceRef{
		WorkspaceID: r.URL.Query().Get("workspace"),
		DeviceID:    r.URL.Query().Get("device"),
	}

	if ref.WorkspaceID == "" || ref.DeviceID == "" {
		writeError(w, "workspace and device are required", http.StatusBadRequest)

		return
	}

	snap, err := s.snapshots.Latest(r.Context(), ref)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		writeError(w, "no snapshot for device", http.StatusNotFound)

		return
	}

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("workspace_id", ref.WorkspaceID).
			Str("device_id", ref.DeviceID).
			Msg("Failed to load snapshot")

		writeError(w, "failed to load snapshot", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:          "ok",
		Connections:     s.pool.Size(),
		LiveDevices:     len(s.live.Subscriptions()),
		DatabaseDriver:  s.config.Database.Driver,
		OutboundEnabled: s.config.OutboundEnabled(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
