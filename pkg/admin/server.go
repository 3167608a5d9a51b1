/*
 * Copyright 2026 Yem Networks.
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

// Package admin serves a read-only HTTP view of the mirrored registry
// state: resource listings with optional filter and projection, device
// connection hrefs and sender transport files.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/query"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Reader is the mirrored read path the server answers from. Satisfied by
// *mirror.StoreReader.
type Reader interface {
	Resources(ctx context.Context, rt models.ResourceType, filter *query.Filter) ([]models.Resource, error)
}

// ManifestSource fetches sender transport files from the live registry.
// Satisfied by *controller.Controller.
type ManifestSource interface {
	Manifest(ctx context.Context, senderID string) (string, error)
}

// Server is the admin HTTP frontend.
type Server struct {
	router    *mux.Router
	reader    Reader
	manifests ManifestSource
	apiKey    string
	addr      string
	log       logger.Logger
	httpSrv   *http.Server
}

// New builds a server over the given mirrored reader.
func New(reader Reader, log logger.Logger, options ...func(*Server)) *Server {
	s := &Server{
		router: mux.NewRouter(),
		reader: reader,
		addr:   ":8080",
		log:    log.WithComponent("admin"),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithAPIKey protects every route with a shared key.
func WithAPIKey(key string) func(*Server) {
	return func(s *Server) { s.apiKey = key }
}

// WithListenAddr overrides the default listen address.
func WithListenAddr(addr string) func(*Server) {
	return func(s *Server) { s.addr = addr }
}

// WithManifestSource enables the /api/manifest route.
func WithManifestSource(m ManifestSource) func(*Server) {
	return func(s *Server) { s.manifests = m }
}

func (s *Server) setupRoutes() {
	s.router.Use(CommonMiddleware(s.log))
	s.router.Use(APIKeyMiddleware(s.apiKey, s.log))

	// OPTIONS is routed so the CORS middleware can answer preflight.
	s.router.HandleFunc("/api/connection_href/{id}", s.getConnectionHref).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/manifest/{id}", s.getManifest).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/{resource}", s.listResources).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/{resource}/{id}", s.getResource).Methods(http.MethodGet, http.MethodOptions)
}

// Router exposes the handler, e.g. for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info().Str("addr", s.addr).Msg("admin API listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}

// listResources answers GET /api/{resource}. An optional single filter is
// given as ?key=<field>&value=<v>, and ?fields=a,b projects the result.
func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	rt := models.ResourceType(mux.Vars(r)["resource"])
	if !models.ValidResourceType(rt) {
		http.Error(w, "unknown resource type", http.StatusNotFound)
		return
	}

	var filter *query.Filter

	if key := r.URL.Query().Get("key"); key != "" {
		filter = &query.Filter{Key: key, Value: r.URL.Query().Get("value")}
	}

	records, err := s.reader.Resources(r.Context(), rt, filter)
	if err != nil {
		s.respondReadError(w, err)
		return
	}

	if fields := r.URL.Query().Get("fields"); fields != "" {
		records = query.Project(records, strings.Split(fields, ",")...)
	}

	s.encodeJSONResponse(w, records)
}

// getResource answers GET /api/{resource}/{id}.
func (s *Server) getResource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rt := models.ResourceType(vars["resource"])
	if !models.ValidResourceType(rt) {
		http.Error(w, "unknown resource type", http.StatusNotFound)
		return
	}

	records, err := s.reader.Resources(r.Context(), rt, &query.Filter{Key: "id", Value: vars["id"]})
	if err != nil {
		s.respondReadError(w, err)
		return
	}

	s.encodeJSONResponse(w, records[0])
}

// getConnectionHref resolves a device's Connection API control href.
func (s *Server) getConnectionHref(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	records, err := s.reader.Resources(r.Context(), models.ResourceDevices, &query.Filter{Key: "id", Value: id})
	if err != nil {
		s.respondReadError(w, err)
		return
	}

	href, err := query.ConnectionHrefFromDevice(records[0])
	if err != nil {
		http.Error(w, "device has no connection control", http.StatusNotFound)
		return
	}

	s.encodeJSONResponse(w, map[string]string{"id": id, "href": href})
}

// getManifest returns a sender's transport file as plain text.
func (s *Server) getManifest(w http.ResponseWriter, r *http.Request) {
	if s.manifests == nil {
		http.Error(w, "manifest retrieval not configured", http.StatusNotImplemented)
		return
	}

	id := mux.Vars(r)["id"]

	text, err := s.manifests.Manifest(r.Context(), id)
	if err != nil {
		if errors.Is(err, query.ErrManifestUnavailable) || errors.Is(err, query.ErrNoResults) {
			http.Error(w, "manifest not available", http.StatusNotFound)
			return
		}

		s.log.Error().Err(err).Str("sender", id).Msg("manifest retrieval failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/sdp")
	_, _ = w.Write([]byte(text))
}

func (s *Server) respondReadError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrNoResults) {
		http.Error(w, "no matching resources", http.StatusNotFound)
		return
	}

	s.log.Error().Err(err).Msg("mirror read failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) encodeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("error encoding response")
	}
}
