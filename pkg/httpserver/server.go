/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package httpserver hosts the connector's REST handlers on a gorilla/mux
// router behind CORS and pluggable authorization, with a health-check
// endpoint.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("httpserver")

const healthCheckEndpoint = "/healthcheck"

// HTTPHandler registers one REST endpoint with the router.
type HTTPHandler interface {
	Path() string
	Method() string
	Handler() http.HandlerFunc
}

// paramHolder lets a handler declare query-string matchers.
type paramHolder interface {
	Params() map[string]string
}

// Authorizer validates an inbound request's credentials. Implementations
// live in pkg/httpserver/auth.
type Authorizer interface {
	Verify(req *http.Request) bool
}

// Option configures a Server.
type Option func(s *Server)

// WithTLS serves TLS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// WithAuthorizer requires every request (except the health check) to pass
// the given Authorizer.
func WithAuthorizer(auth Authorizer) Option {
	return func(s *Server) { s.auth = auth }
}

// WithMiddleware installs additional router middleware (e.g. tracing).
func WithMiddleware(mw ...mux.MiddlewareFunc) Option {
	return func(s *Server) { s.middleware = mw }
}

// Server is an HTTP server hosting a set of HTTPHandlers behind CORS and
// optional authorization.
type Server struct {
	httpServer *http.Server
	started    uint32
	certFile   string
	keyFile    string
	auth       Authorizer
	middleware []mux.MiddlewareFunc
}

// New returns a new HTTP server bound to addr hosting the given handlers.
func New(addr string, handlers []HTTPHandler, opts ...Option) *Server {
	s := &Server{}

	for _, opt := range opts {
		opt(s)
	}

	router := mux.NewRouter()

	router.HandleFunc(healthCheckEndpoint, healthCheckHandler).Methods(http.MethodGet)

	for _, mw := range s.middleware {
		router.Use(mw)
	}

	if s.auth != nil {
		router.Use(authorizationMiddleware(s.auth))
	}

	for _, handler := range handlers {
		logger.Info("registering handler", log.WithServiceEndpoint(handler.Path()))

		router.HandleFunc(handler.Path(), handler.Handler()).
			Methods(handler.Method()).
			Queries(params(handler)...)
	}

	corsHandler := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	}).Handler(router)

	s.httpServer = &http.Server{Addr: addr, Handler: corsHandler}

	return s
}

// Start starts the HTTP server in a separate goroutine.
func (s *Server) Start() error {
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return dcerrors.NewTransientf("server already started")
	}

	go func() {
		logger.Info("listening for requests", log.WithServiceEndpoint(s.httpServer.Addr))

		var err error
		if s.keyFile != "" && s.certFile != "" {
			err = s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", log.WithError(err))
		}

		atomic.StoreUint32(&s.started, 0)

		logger.Info("server has stopped")
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&s.started, 1, 0) {
		return dcerrors.NewTransientf("cannot stop HTTP server since it hasn't been started")
	}

	return s.httpServer.Shutdown(ctx)
}

func authorizationMiddleware(auth Authorizer) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == healthCheckEndpoint {
				next.ServeHTTP(w, r)
				return
			}

			if !auth.Verify(r) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("Unauthorized.\n"))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type healthCheckResp struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"currentTime"`
}

func healthCheckHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(rw).Encode(&healthCheckResp{
		Status:      "success",
		CurrentTime: time.Now().UTC(),
	}); err != nil {
		logger.Warn("healthcheck response failure", log.WithError(err))
	}
}

func params(handler HTTPHandler) []string {
	var queries []string

	if p, ok := handler.(paramHolder); ok {
		for name, value := range p.Params() {
			queries = append(queries, name, value)
		}
	}

	return queries
}
