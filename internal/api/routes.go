package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/orderharvest/internal/api/errs"
	appsession "github.com/ahrav/orderharvest/internal/app/session"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

func (s *Server) routes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/start", s.handleStart)
			r.Post("/progress", s.handleProgress)
			r.Post("/reset", s.handleReset)
			r.Post("/cancel", s.handleCancelCollection)
			r.Get("/context", s.handlePageContext)
			r.Get("/filters", s.handleFilters)
			r.Route("/invoices", func(r chi.Router) {
				r.Post("/cancel", s.handleCancelInvoices)
				r.Post("/retry", s.handleRetryInvoices)
			})
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Post("/notifications/test", s.handleTestNotification)
	})
}

// envelope is the uniform response shape for every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		s.logger.Error(r.Context(), "failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsError(err):
		status = errs.GetError(err).HTTPStatus()
	case isConflict(err):
		status = http.StatusConflict
	default:
		var fields errs.FieldErrors
		if errors.As(err, &fields) {
			status = http.StatusBadRequest
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()})
}

// isConflict reports whether err is one of the domain's operation-rejected
// sentinels, all of which describe a state the client can observe and resolve.
func isConflict(err error) bool {
	return errors.Is(err, domain.ErrAlreadyRunning) ||
		errors.Is(err, domain.ErrDownloadsRunning) ||
		errors.Is(err, domain.ErrNoFailedInvoices) ||
		errors.Is(err, domain.ErrNotCompleted)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type startRequest struct {
	Filter              domain.TimeFilter `json:"filter"`
	DownloadInvoices    bool              `json:"download_invoices"`
	ReuseExistingOrders bool              `json:"reuse_existing_orders"`
	Host                string            `json:"host" validate:"omitempty,url"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errs.New(errs.InvalidArgument, err))
		return
	}
	if err := errs.Check(req); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.svc.Start(r.Context(), appsession.StartRequest{
		Filter:              req.Filter,
		DownloadInvoices:    req.DownloadInvoices,
		ReuseExistingOrders: req.ReuseExistingOrders,
		Host:                req.Host,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, sess)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var p domain.ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, r, errs.New(errs.InvalidArgument, err))
		return
	}

	res := s.svc.Progress(r.Context(), p)
	s.respond(w, r, http.StatusOK, map[string]bool{"should_continue": res.ShouldContinue})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, nil)
}

func (s *Server) handleCancelCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CancelCollection(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, nil)
}

func (s *Server) handlePageContext(w http.ResponseWriter, r *http.Request) {
	pc, err := s.svc.PageContext(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, pc)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]any{
		"filters": s.svc.AvailableFilters(r.Context()),
	})
}

func (s *Server) handleCancelInvoices(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CancelInvoiceDownloads(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, nil)
}

func (s *Server) handleRetryInvoices(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RetryFailedInvoices(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, nil)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Settings(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var st domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		s.respondError(w, r, errs.New(errs.InvalidArgument, err))
		return
	}

	if err := s.svc.UpdateSettings(r.Context(), st); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, st)
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.TestNotification(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, nil)
}
