// Package handler exposes the wizard service over HTTP and streams draft
// changes over a websocket.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"deedwizard/internal/draft"
	"deedwizard/internal/enrichment"
	"deedwizard/internal/finalize"
	"deedwizard/internal/flow"
	"deedwizard/internal/ratelimit"
	"deedwizard/internal/wizard"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
	"deedwizard/pkg/platform/httputil"
	"deedwizard/pkg/requestcontext"
)

// Service is the wizard surface the handler drives.
type Service interface {
	Start(ctx context.Context, ref wizard.Ref, rawType string) (wizard.DraftView, error)
	Draft(ctx context.Context, ref wizard.Ref) wizard.DraftView
	Answer(ctx context.Context, ref wizard.Ref, patch draft.Answers) (wizard.DraftView, error)
	Clear(ctx context.Context, ref wizard.Ref) error
	VerifyProperty(ctx context.Context, ref wizard.Ref, address enrichment.AddressFacts) (draft.PropertyFacts, error)
	Step(ctx context.Context, ref wizard.Ref, index int) (flow.StepView, error)
	Advance(ctx context.Context, ref wizard.Ref, index int) (flow.StepView, error)
	Retreat(ctx context.Context, ref wizard.Ref, index int) (flow.StepView, error)
	JumpTo(ctx context.Context, ref wizard.Ref, field string) (flow.StepView, error)
	Review(ctx context.Context, ref wizard.Ref) (wizard.Review, error)
	Finalize(ctx context.Context, ref wizard.Ref, meta finalize.Meta) (finalize.Result, error)
	Generate(ctx context.Context, ref wizard.Ref, meta finalize.Meta) (finalize.Document, error)
	Subscribe(ctx context.Context, ref wizard.Ref) (<-chan draft.Change, func())
}

// Handler handles the wizard endpoints.
type Handler struct {
	service        Service
	logger         *slog.Logger
	requestTimeout time.Duration
	events         eventsConfig
	limiter        *ratelimit.Middleware
}

// Option configures a Handler.
type Option func(*Handler)

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.requestTimeout = d }
}

// WithPingInterval sets how often idle event streams are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Handler) { h.events.pingInterval = d }
}

// WithAllowedOrigins limits which browser origins may open event streams.
// Empty allows same-origin requests only.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.events.allowedOrigins = origins }
}

// WithRateLimiter charges draft writes and commits to per-session budgets.
func WithRateLimiter(l *ratelimit.Middleware) Option {
	return func(h *Handler) { h.limiter = l }
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		logger:         logger,
		requestTimeout: 55 * time.Second,
		events:         defaultEventsConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the wizard routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/sessions/{session}/{mode}", func(r chi.Router) {
		r.Get("/events", h.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(h.requestTimeout))
			r.Get("/draft", h.handleGetDraft)
			r.Get("/steps", h.handleStep)
			r.Post("/steps/advance", h.handleAdvance)
			r.Post("/steps/retreat", h.handleRetreat)
			r.Post("/steps/jump", h.handleJump)
			r.Get("/review", h.handleReview)

			r.Group(func(r chi.Router) {
				h.limit(r, ratelimit.ClassWrite)
				r.Delete("/draft", h.handleClearDraft)
				r.Post("/draft/start", h.handleStart)
				r.Patch("/draft/answers", h.handleAnswers)
				r.Post("/draft/verify", h.handleVerify)
			})
			r.Group(func(r chi.Router) {
				h.limit(r, ratelimit.ClassCommit)
				r.Post("/finalize", h.handleFinalize)
				r.Post("/generate", h.handleGenerate)
			})
		})
	})
}

func (h *Handler) limit(r chi.Router, class ratelimit.Class) {
	if h.limiter != nil {
		r.Use(h.limiter.Limit(class, sessionKey))
	}
}

// sessionKey charges budgets to the session in the path.
func sessionKey(r *http.Request) string {
	return chi.URLParam(r, "session")
}

// ref reads the session and mode path parameters.
func ref(r *http.Request) (wizard.Ref, error) {
	session, err := domain.ParseSessionID(chi.URLParam(r, "session"))
	if err != nil {
		return wizard.Ref{}, err
	}
	mode, err := domain.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		return wizard.Ref{}, err
	}
	return wizard.Ref{Session: session, Mode: mode}, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "wizard request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "wizard request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

// withRef parses the path and hands the ref to fn.
func (h *Handler) withRef(op string, fn func(w http.ResponseWriter, r *http.Request, ref wizard.Ref)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := ref(r)
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		fn(w, r, ref)
	}
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	h.withRef("draft", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		httputil.WriteJSON(w, http.StatusOK, h.service.Draft(r.Context(), ref))
	})(w, r)
}

func (h *Handler) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	h.withRef("clear", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		if err := h.service.Clear(r.Context(), ref); err != nil {
			h.fail(w, r, "clear", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.withRef("start", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		ctx := r.Context()
		req, ok := httputil.DecodeAndPrepare[StartRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		view, err := h.service.Start(ctx, ref, req.DocumentType)
		if err != nil {
			h.fail(w, r, "start", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	})(w, r)
}

func (h *Handler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	h.withRef("answer", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		ctx := r.Context()
		req, ok := httputil.DecodeAndPrepare[AnswersRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		view, err := h.service.Answer(ctx, ref, req.Answers)
		if err != nil {
			h.fail(w, r, "answer", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	})(w, r)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.withRef("verify", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		ctx := r.Context()
		req, ok := httputil.DecodeAndPrepare[enrichment.AddressFacts](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		facts, err := h.service.VerifyProperty(ctx, ref, *req)
		if err != nil {
			h.fail(w, r, "verify", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, facts)
	})(w, r)
}

func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	h.withRef("step", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		index := 0
		if raw := r.URL.Query().Get("index"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				h.fail(w, r, "step", dErrors.New(dErrors.CodeBadRequest, "index must be a non-negative integer"))
				return
			}
			index = n
		}
		view, err := h.service.Step(r.Context(), ref, index)
		if err != nil {
			h.fail(w, r, "step", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	})(w, r)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "advance", h.service.Advance)
}

func (h *Handler) handleRetreat(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "retreat", h.service.Retreat)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, wizard.Ref, int) (flow.StepView, error)) {
	h.withRef(op, func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		ctx := r.Context()
		req, ok := httputil.DecodeAndPrepare[MoveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		view, err := fn(ctx, ref, req.Index)
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	})(w, r)
}

func (h *Handler) handleJump(w http.ResponseWriter, r *http.Request) {
	h.withRef("jump", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		ctx := r.Context()
		req, ok := httputil.DecodeAndPrepare[JumpRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		view, err := h.service.JumpTo(ctx, ref, req.Field)
		if err != nil {
			h.fail(w, r, "jump", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	})(w, r)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	h.withRef("review", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		review, err := h.service.Review(r.Context(), ref)
		if err != nil {
			h.fail(w, r, "review", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, review)
	})(w, r)
}

// meta collects the provenance headers of the calling UI.
func meta(r *http.Request) finalize.Meta {
	ctx := r.Context()
	return finalize.Meta{
		ClientFlow:  requestcontext.ClientFlow(ctx),
		UIComponent: truncate(r.Header.Get(finalize.HeaderUIComponent), 128),
		RequestID:   requestcontext.RequestID(ctx),
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	h.withRef("finalize", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		res, err := h.service.Finalize(r.Context(), ref, meta(r))
		if err != nil {
			h.fail(w, r, "finalize", err)
			return
		}
		if !res.Success {
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, res)
	})(w, r)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	h.withRef("generate", func(w http.ResponseWriter, r *http.Request, ref wizard.Ref) {
		doc, err := h.service.Generate(r.Context(), ref, meta(r))
		if err != nil {
			h.fail(w, r, "generate", err)
			return
		}
		contentType := doc.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "deed-"+ref.Mode.String()+".pdf"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc.Body)
	})(w, r)
}
