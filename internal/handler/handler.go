// Package handler serves the election operations over HTTP as JSON.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// ElectionService is the operations surface the handler serves.
type ElectionService interface {
	Lookup(ctx context.Context, slot int) (model.Identity, error)
	ListIdentities(ctx context.Context) ([]model.Identity, error)
	Enroll(ctx context.Context, name string, slot int, p model.Privilege) (model.Identity, error)
	Unenroll(ctx context.Context, slot int) error
	CreateIdentity(ctx context.Context, name string, slot int, p model.Privilege) (model.Identity, error)
	RemoveIdentity(ctx context.Context, slot int) error
	ListRegistrants(ctx context.Context) ([]model.Registrant, error)
	CreateRegistrant(ctx context.Context, name string) (model.Registrant, error)
	RenameRegistrant(ctx context.Context, id int64, name string) (model.Registrant, error)
	RemoveRegistrant(ctx context.Context, id int64) error
	CastVote(ctx context.Context, identityID, registrantID int64) (model.Vote, error)
	Tally(ctx context.Context) (model.Tally, error)
	ExportTally(ctx context.Context, w io.Writer) error
	Audit(ctx context.Context, f store.AuditFilter) ([]model.AuditEvent, error)
}

// RouterDeps groups what NewRouter needs.
type RouterDeps struct {
	Service     ElectionService
	RateLimiter *RateLimiter
	Gatherer    prometheus.Gatherer
	Health      func(ctx context.Context) error
	Logger      *slog.Logger
}

// NewRouter builds the HTTP routes.
//
// Middleware order: RequestID -> RealIP -> Logging -> Recoverer. Vote
// submission is additionally rate limited per client.
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: deps.Service, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthz(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/identities", func(r chi.Router) {
			r.Get("/", h.ListIdentities)
			r.Post("/", h.CreateIdentity)
			r.Get("/{slot}", h.GetIdentity)
			r.Delete("/{slot}", h.RemoveIdentity)
		})

		r.Route("/registrants", func(r chi.Router) {
			r.Get("/", h.ListRegistrants)
			r.Post("/", h.CreateRegistrant)
			r.Patch("/{id}", h.RenameRegistrant)
			r.Delete("/{id}", h.RemoveRegistrant)
		})

		votes := r.With()
		if deps.RateLimiter != nil {
			votes = r.With(deps.RateLimiter.Middleware)
		}
		votes.Post("/votes", h.CastVote)

		r.Get("/tally", h.Tally)
		r.Get("/tally.csv", h.ExportTally)
		r.Get("/audit", h.Audit)
	})

	return r
}

// Handler implements the /api routes.
type Handler struct {
	svc    ElectionService
	logger *slog.Logger
}

type identityRequest struct {
	Name      string          `json:"name"`
	Slot      int             `json:"slot"`
	Privilege model.Privilege `json:"privilege"`
	// Enroll captures the template on the reader before binding the slot.
	Enroll bool `json:"enroll"`
}

type registrantRequest struct {
	Name string `json:"name"`
}

type voteRequest struct {
	IdentityID   int64 `json:"identity_id"`
	RegistrantID int64 `json:"registrant_id"`
}

// GET /api/identities
func (h *Handler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := h.svc.ListIdentities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identities)
}

// GET /api/identities/{slot}
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	slot, ok := intParam(w, r, "slot")
	if !ok {
		return
	}
	ident, err := h.svc.Lookup(r.Context(), slot)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// CreateIdentity binds a slot, capturing the template first when enroll is
// set.
// POST /api/identities
func (h *Handler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		ident model.Identity
		err   error
	)
	if req.Enroll {
		ident, err = h.svc.Enroll(r.Context(), req.Name, req.Slot, req.Privilege)
	} else {
		ident, err = h.svc.CreateIdentity(r.Context(), req.Name, req.Slot, req.Privilege)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ident)
}

// RemoveIdentity unbinds a slot. ?unenroll=true also deletes the template
// from the reader.
// DELETE /api/identities/{slot}
func (h *Handler) RemoveIdentity(w http.ResponseWriter, r *http.Request) {
	slot, ok := intParam(w, r, "slot")
	if !ok {
		return
	}

	var err error
	if r.URL.Query().Get("unenroll") == "true" {
		err = h.svc.Unenroll(r.Context(), slot)
	} else {
		err = h.svc.RemoveIdentity(r.Context(), slot)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/registrants
func (h *Handler) ListRegistrants(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListRegistrants(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

// POST /api/registrants
func (h *Handler) CreateRegistrant(w http.ResponseWriter, r *http.Request) {
	var req registrantRequest
	if !decode(w, r, &req) {
		return
	}
	reg, err := h.svc.CreateRegistrant(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// PATCH /api/registrants/{id}
func (h *Handler) RenameRegistrant(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req registrantRequest
	if !decode(w, r, &req) {
		return
	}
	reg, err := h.svc.RenameRegistrant(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// DELETE /api/registrants/{id}
func (h *Handler) RemoveRegistrant(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.RemoveRegistrant(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CastVote records a vote. A second vote for the same identity is 409.
// POST /api/votes
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !decode(w, r, &req) {
		return
	}
	vote, err := h.svc.CastVote(r.Context(), req.IdentityID, req.RegistrantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

// GET /api/tally
func (h *Handler) Tally(w http.ResponseWriter, r *http.Request) {
	tally, err := h.svc.Tally(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tally.Rows == nil {
		tally.Rows = []model.TallyRow{}
	}
	writeJSON(w, http.StatusOK, tally)
}

// ExportTally streams the tally as CSV. The body is buffered so a store
// failure still yields a clean error status.
// GET /api/tally.csv
func (h *Handler) ExportTally(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportTally(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Audit lists audit events. Query: event, after, limit.
// GET /api/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AuditFilter{Kind: model.EventKind(q.Get("event"))}
	if f.Kind != "" && !f.Kind.Valid() {
		writeBadRequest(w, fmt.Sprintf("unknown event %q", f.Kind))
		return
	}
	if v := q.Get("after"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			writeBadRequest(w, "after must be a non-negative integer")
			return
		}
		f.AfterID = after
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = limit
	}

	events, err := h.svc.Audit(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// requestID tags each request with a UUIDv7 and echoes it back.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
