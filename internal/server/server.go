// Package server provides the HTTP server for the SMP.
//
// The same registry operations are mounted once per wire dialect, all
// sharing one manager set:
//
//   - {basePath}/peppol/... - PEPPOL SMP 1.0
//   - {basePath}/bdxr1/...  - OASIS BDXR SMP 1.0
//   - {basePath}/bdxr2/...  - OASIS BDXR SMP 2.0
//
// # Registry operations (per dialect mount)
//
//   - GET    /{participantID}                        - Service group + references
//   - PUT    /{participantID}                        - Create or update (auth)
//   - DELETE /{participantID}                        - Delete with children (auth)
//   - GET    /{participantID}/services/{docTypeID}   - Resolve registration or redirect
//   - PUT    /{participantID}/services/{docTypeID}   - Save registration or redirect (auth)
//   - DELETE /{participantID}/services/{docTypeID}   - Delete one (auth)
//   - DELETE /{participantID}/services               - Delete all registrations (auth)
//   - GET    /list/{userID}                          - Service groups of a user (auth)
//   - GET    /complete/{participantID}               - Full export
//   - GET|PUT|DELETE /businesscard/{participantID}   - Business card sub-resource
//
// # Health, Metrics & Admin
//
//   - GET /health                              - Liveness probe
//   - GET /ready                               - Store connectivity probe
//   - GET /metrics                             - Prometheus metrics (if enabled)
//   - GET /admin/sml/verify/{participantID}    - SML DNS verification (admin key)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sirosfoundation/go-smp/internal/auth"
	"github.com/sirosfoundation/go-smp/internal/config"
	"github.com/sirosfoundation/go-smp/internal/metrics"
	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/smp"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/wire"
	"github.com/sirosfoundation/go-smp/internal/wire/bdxr1"
	"github.com/sirosfoundation/go-smp/internal/wire/bdxr2"
	"github.com/sirosfoundation/go-smp/internal/wire/peppol"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// maxBodySize bounds registry PUT bodies
const maxBodySize = 10 << 20

// Deps carries the collaborators the server orchestrates. Everything is
// constructed at process start and passed in; the server owns no
// manager wiring of its own.
type Deps struct {
	Config        *config.Config
	Store         storage.Store
	IDs           *identifier.Factory
	Groups        *smp.ServiceGroupManager
	Services      *smp.ServiceInformationManager
	Redirects     *smp.RedirectManager
	Cards         *smp.BusinessCardManager
	Authenticator *auth.Authenticator
	Metrics       *metrics.Metrics
	Verifier      *sml.Verifier
	Logger        *slog.Logger
}

// Server is the SMP HTTP server
type Server struct {
	config    *config.Config
	logger    *slog.Logger
	httpSrv   *http.Server
	store     storage.Store
	ids       *identifier.Factory
	groups    *smp.ServiceGroupManager
	services  *smp.ServiceInformationManager
	redirects *smp.RedirectManager
	cards     *smp.BusinessCardManager
	authn     *auth.Authenticator
	gate      auth.OwnershipGate
	metrics   *metrics.Metrics
	verifier  *sml.Verifier
}

// New creates a new SMP server
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    deps.Config,
		logger:    logger,
		store:     deps.Store,
		ids:       deps.IDs,
		groups:    deps.Groups,
		services:  deps.Services,
		redirects: deps.Redirects,
		cards:     deps.Cards,
		authn:     deps.Authenticator,
		metrics:   deps.Metrics,
		verifier:  deps.Verifier,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr, "tls", s.config.Server.TLS.Enabled)
	if s.config.Server.TLS.Enabled {
		return s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return err
	}
	if s.store != nil {
		return s.store.Close(ctx)
	}
	return nil
}

// Handler exposes the route set for tests
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	basePath := strings.TrimSuffix(s.config.Server.BasePath, "/")

	// Health checks (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	if s.config.Metrics.Metrics.Enabled && s.metrics != nil {
		mux.Handle("GET "+s.config.Metrics.Metrics.Path, s.metrics.Handler())
	}

	// Admin diagnostics
	mux.HandleFunc("GET /admin/sml/verify/{participantID}", s.withAdmin(s.handleSMLVerify))

	// One registry per wire dialect, all against the same managers
	for _, reg := range []*registry{
		{server: s, name: "peppol", translator: peppol.New(s.ids)},
		{server: s, name: "bdxr1", translator: bdxr1.New(s.ids)},
		{server: s, name: "bdxr2", translator: bdxr2.New(s.ids)},
	} {
		mount := basePath + "/" + reg.name
		reg.mount = mount

		mux.HandleFunc("GET "+mount+"/{participantID}", reg.handleGetServiceGroup)
		mux.HandleFunc("PUT "+mount+"/{participantID}", reg.handlePutServiceGroup)
		mux.HandleFunc("DELETE "+mount+"/{participantID}", reg.handleDeleteServiceGroup)

		mux.HandleFunc("GET "+mount+"/{participantID}/services/{docTypeID}", reg.handleGetServiceMetadata)
		mux.HandleFunc("PUT "+mount+"/{participantID}/services/{docTypeID}", reg.handlePutServiceMetadata)
		mux.HandleFunc("DELETE "+mount+"/{participantID}/services/{docTypeID}", reg.handleDeleteServiceMetadata)
		mux.HandleFunc("DELETE "+mount+"/{participantID}/services", reg.handleDeleteAllServices)
		mux.HandleFunc("DELETE "+mount+"/{participantID}/services/{$}", reg.handleDeleteAllServices)

		mux.HandleFunc("GET "+mount+"/list/{userID}", reg.handleList)
		mux.HandleFunc("GET "+mount+"/complete/{participantID}", reg.handleComplete)

		mux.HandleFunc("GET "+mount+"/businesscard/{participantID}", reg.handleGetBusinessCard)
		mux.HandleFunc("PUT "+mount+"/businesscard/{participantID}", reg.handlePutBusinessCard)
		mux.HandleFunc("DELETE "+mount+"/businesscard/{participantID}", reg.handleDeleteBusinessCard)
	}
}

// Middleware

// withAdmin gates admin endpoints behind the configured API key
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-Admin-Key")
		if s.config.Server.AdminKey == "" || apiKey != s.config.Server.AdminKey {
			s.jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.jsonError(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// Admin handlers

func (s *Server) handleSMLVerify(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		s.jsonError(w, "SML verification not configured", http.StatusServiceUnavailable)
		return
	}

	p := s.ids.ParseParticipant(r.PathValue("participantID"))
	if p == nil {
		s.jsonError(w, "malformed participant identifier", http.StatusBadRequest)
		return
	}

	dnsName := sml.ParticipantDNSName(*p, s.verifier.Zone)
	target, err := s.verifier.Verify(r.Context(), *p)
	if err != nil {
		if errors.Is(err, sml.ErrNotInDNS) {
			s.jsonResponse(w, map[string]any{
				"participant": p.String(),
				"dnsName":     dnsName,
				"registered":  false,
			}, http.StatusOK)
			return
		}
		s.logger.Error("SML DNS verification failed", "participant", p.String(), "error", err)
		s.jsonError(w, "SML DNS lookup failed", http.StatusBadGateway)
		return
	}

	s.jsonResponse(w, map[string]any{
		"participant": p.String(),
		"dnsName":     dnsName,
		"registered":  true,
		"target":      target,
	}, http.StatusOK)
}

// Error mapping. Managers raise typed errors; this is the single point
// where they become wire statuses. Internal detail stays out of
// responses unless debug mode is on.

func (s *Server) writeOperationError(w http.ResponseWriter, operation string, err error) {
	status, message := s.mapError(err)
	if s.metrics != nil {
		s.metrics.Error(operation)
	}
	s.logger.Error("operation failed", "operation", operation, "status", status, "error", err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="SMP"`)
	}
	s.jsonError(w, message, status)
}

func (s *Server) mapError(err error) (int, string) {
	var smlErr *sml.Error

	switch {
	case errors.Is(err, auth.ErrNoCredentials):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrNotOwner):
		return http.StatusUnauthorized, "not the owner of this resource"
	case errors.Is(err, errAuthMismatch):
		return http.StatusUnauthorized, errAuthMismatch.Error()
	case errors.Is(err, smp.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, smp.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.As(err, &smlErr):
		// The saga already compensated; the client retries the whole
		// operation.
		return http.StatusBadGateway, "SML operation failed"
	default:
		if s.config.Server.Debug {
			return http.StatusInternalServerError, err.Error()
		}
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) operationOK(operation string) {
	if s.metrics != nil {
		s.metrics.Success(operation)
	}
}

// badRequest reports a client-caused failure. The message is shown to
// the client; parse problems are theirs to fix.
func (s *Server) badRequest(w http.ResponseWriter, operation, message string) {
	if s.metrics != nil {
		s.metrics.Error(operation)
	}
	s.logger.Warn("bad request", "operation", operation, "reason", message)
	s.jsonError(w, message, http.StatusBadRequest)
}

func (s *Server) notFound(w http.ResponseWriter, operation, message string) {
	if s.metrics != nil {
		s.metrics.Error(operation)
	}
	s.jsonError(w, message, http.StatusNotFound)
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}

func (s *Server) xmlResponse(w http.ResponseWriter, contentType string, data []byte, status int) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(data)
}

// externalURL reconstructs the absolute URL of a dialect mount for
// reference hrefs.
func (s *Server) externalURL(r *http.Request, mount string) string {
	scheme := "http"
	if r.TLS != nil || s.config.Server.TLS.Enabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, mount)
}

// wire.Translator is satisfied by all three dialect packages.
var (
	_ wire.Translator = (*peppol.Translator)(nil)
	_ wire.Translator = (*bdxr1.Translator)(nil)
	_ wire.Translator = (*bdxr2.Translator)(nil)
)
