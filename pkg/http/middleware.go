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

// Package http holds middleware shared by the REST endpoints.
package http

import (
	"net/http"
	"time"

	"github.com/carverauto/routerwatch/pkg/logger"
)

// CORSConfig lists the origins allowed to read the REST API from a browser.
// An empty list allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

func (c CORSConfig) allow(origin string) (string, bool) {
	if len(c.AllowedOrigins) == 0 {
		return "*", true
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == origin {
			return origin, true
		}
	}

	return "", false
}

// CommonMiddleware applies CORS headers and logs each request at debug level.
func CommonMiddleware(next http.Handler, cors CORSConfig, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if origin := r.Header.Get("Origin"); origin != "" {
			if value, ok := cors.allow(origin); ok {
				w.Header().Set("Access-Control-Allow-Origin", value)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "3600")
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)

			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Debug().
			Str("remote_addr", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
