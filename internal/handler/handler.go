package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/model"
)

const maxBodyBytes = 1 << 20

// Engine is the part of the interview engine the API drives.
type Engine interface {
	Start(ctx context.Context, role string) (string, *interview.NextQuestion, error)
	Submit(ctx context.Context, sessionID, answer string) (*model.EvaluationResult, *model.NextActionDirective, error)
	SubmitAt(ctx context.Context, sessionID string, questionIndex int, answer string) (*model.EvaluationResult, *model.NextActionDirective, error)
	SubmitFollowUp(ctx context.Context, sessionID, followUp, answer string) (*model.EvaluationResult, *model.NextActionDirective, error)
	NextQuestion(ctx context.Context, sessionID string) (*interview.NextQuestion, error)
	CurrentQuestion(ctx context.Context, sessionID string) (*interview.NextQuestion, error)
	Finalize(ctx context.Context, sessionID string) (*model.FinalReport, error)
	Session(ctx context.Context, sessionID string) (*model.SessionView, error)
}

// RoleLister lists the roles of the question bank.
type RoleLister interface {
	Roles() []string
}

// Handler serves the interview JSON API.
type Handler struct {
	engine Engine
	roles  RoleLister
}

// New creates a new Handler.
func New(e Engine, roles RoleLister) *Handler {
	return &Handler{engine: e, roles: roles}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/roles", h.handleRoles)
		r.Post("/interviews", h.handleStart)
		r.Get("/interviews/{sessionID}", h.handleSession)
		r.Get("/interviews/{sessionID}/question", h.handleCurrentQuestion)
		r.Post("/interviews/{sessionID}/answers", h.handleAnswer)
		r.Post("/interviews/{sessionID}/next", h.handleNext)
		r.Post("/interviews/{sessionID}/report", h.handleReport)
	})
}

type startRequest struct {
	Role string `json:"role"`
}

type startResponse struct {
	SessionID     string `json:"session_id"`
	QuestionIndex int    `json:"question_index"`
	Question      string `json:"question"`
}

// answerRequest answers the outstanding question. FollowUp carries the
// judge's follow-up question when the answer responds to it; QuestionIndex
// guards against answering a question that is no longer outstanding.
type answerRequest struct {
	Answer        string `json:"answer"`
	QuestionIndex *int   `json:"question_index,omitempty"`
	FollowUp      string `json:"follow_up,omitempty"`
}

type answerResponse struct {
	Evaluation *model.EvaluationResult    `json:"evaluation"`
	NextAction *model.NextActionDirective `json:"next_action"`
}

type nextResponse struct {
	*interview.NextQuestion
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"roles": h.roles.Roles()})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sessionID, first, err := h.engine.Start(r.Context(), req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, startResponse{
		SessionID:     sessionID,
		QuestionIndex: first.Index,
		Question:      first.Text,
	})
}

func (h *Handler) handleCurrentQuestion(w http.ResponseWriter, r *http.Request) {
	current, err := h.engine.CurrentQuestion(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		eval      *model.EvaluationResult
		directive *model.NextActionDirective
		err       error
	)
	switch {
	case req.FollowUp != "":
		eval, directive, err = h.engine.SubmitFollowUp(r.Context(), sessionID, req.FollowUp, req.Answer)
	case req.QuestionIndex != nil:
		eval, directive, err = h.engine.SubmitAt(r.Context(), sessionID, *req.QuestionIndex, req.Answer)
	default:
		eval, directive, err = h.engine.Submit(r.Context(), sessionID, req.Answer)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{Evaluation: eval, NextAction: directive})
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	next, err := h.engine.NextQuestion(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := nextResponse{NextQuestion: next}
	if next.Done {
		resp.Message = appI18n.T(r.Context(), "InterviewComplete", nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Finalize(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeError maps engine errors to a status code and a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := classify(err)

	var data map[string]any
	if msgID == "UnknownRole" {
		data = map[string]any{"Roles": strings.Join(h.roles.Roles(), ", ")}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: appI18n.T(r.Context(), msgID, data)})
}

func classify(err error) (int, string) {
	var (
		contractErr *model.JudgeContractError
		callErr     *model.JudgeCallError
	)
	switch {
	case errors.Is(err, model.ErrUnknownRole):
		return http.StatusBadRequest, "UnknownRole"
	case errors.Is(err, model.ErrEmptyAnswer):
		return http.StatusBadRequest, "EmptyAnswer"
	case errors.Is(err, model.ErrStaleQuestion), errors.Is(err, model.ErrIndexOutOfRange):
		return http.StatusBadRequest, "StaleQuestion"
	case errors.Is(err, model.ErrInvalidSession):
		return http.StatusNotFound, "InvalidSession"
	case errors.Is(err, model.ErrNoData):
		return http.StatusNotFound, "NoData"
	case errors.Is(err, model.ErrSessionFinished):
		return http.StatusConflict, "SessionFinished"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "SessionConflict"
	case errors.As(err, &contractErr):
		return http.StatusBadGateway, "JudgeFailed"
	case errors.As(err, &callErr) && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "JudgeTimeout"
	case errors.As(err, &callErr):
		return http.StatusBadGateway, "JudgeUnavailable"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		slog.Debug("invalid request body", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: appI18n.T(r.Context(), "InvalidRequest", nil)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
