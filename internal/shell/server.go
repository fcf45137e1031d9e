package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "finhub-workers/internal/common/errors"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/models"
	"finhub-workers/internal/transaction"
	extractintent "finhub-workers/internal/workers/ai-conversation/extract-intent"
)

const maxRequestBytes = 64 << 10

// IntentExtractor turns one user message into a structured intent.
type IntentExtractor interface {
	Extract(ctx context.Context, message string, history []models.ConversationEntry) (*models.ExtractedIntent, error)
}

// Dispatcher submits one transaction.
type Dispatcher interface {
	Dispatch(ctx context.Context, t models.TransactionType, intent models.ExtractedIntent, creds models.Credentials) transaction.Result
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type ServerOptions struct {
	Sessions   *SessionStore
	History    models.ConversationStore
	Extractor  IntentExtractor
	Dispatcher Dispatcher
	Registry   *transaction.Registry
	Logger     logger.Logger
	Readiness  map[string]ReadinessCheck
}

type Server struct {
	sessions   *SessionStore
	history    models.ConversationStore
	extractor  IntentExtractor
	dispatcher Dispatcher
	registry   *transaction.Registry
	logger     logger.Logger
	readiness  map[string]ReadinessCheck
}

func NewServer(opts ServerOptions) *Server {
	if opts.Registry == nil {
		opts.Registry = transaction.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Server{
		sessions:   opts.Sessions,
		history:    opts.History,
		extractor:  opts.Extractor,
		dispatcher: opts.Dispatcher,
		registry:   opts.Registry,
		logger:     opts.Logger,
		readiness:  opts.Readiness,
	}
}

// Routes builds the HTTP API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/operations", s.handleOperations)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)

			r.Put("/credentials", s.handleSaveCredentials)
			r.Get("/credentials", s.handleGetCredentials)
			r.Delete("/credentials", s.handleClearCredentials)

			r.Post("/messages", s.handleMessage)
			r.Get("/history", s.handleHistory)
			r.Post("/dispatch", s.handleDispatch)
		})
	})

	return r
}

// ==========================
// Probes
// ==========================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.readiness))
	status := http.StatusOK
	for name, check := range s.readiness {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations": s.registry.Operations(),
	})
}

// ==========================
// Sessions & credentials
// ==========================

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	info := s.sessions.Create()
	s.logger.Info("Session created", map[string]interface{}{"sessionId": info.ID})
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Get(sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if !s.sessions.Delete(id) {
		s.writeError(w, r, ErrSessionNotFound)
		return
	}
	s.dropHistory(r.Context(), id)
	s.logger.Info("Session deleted", map[string]interface{}{"sessionId": id})
	w.WriteHeader(http.StatusNoContent)
}

// DropHistory clears a session's history, for sessions removed by expiry.
func (s *Server) DropHistory(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.dropHistory(ctx, id)
}

func (s *Server) dropHistory(ctx context.Context, id string) {
	if err := s.history.Clear(ctx, id); err != nil {
		s.logger.Warn("Failed to clear history", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
	}
}

type credentialsRequest struct {
	Host   string `json:"host"`
	Tenant string `json:"tenant"`
	User   string `json:"user"`
	Secret string `json:"secret"`
}

type credentialsResponse struct {
	Credentials models.Credentials `json:"credentials"`
	Missing     []string           `json:"missing,omitempty"`
}

func (s *Server) handleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	creds := models.Credentials{Host: req.Host, Tenant: req.Tenant, User: req.User, Secret: req.Secret}
	if err := s.sessions.SaveCredentials(sessionID(r), creds); err != nil {
		s.writeError(w, r, err)
		return
	}

	fields := creds.LogFields()
	fields["sessionId"] = sessionID(r)
	s.logger.Info("Credentials saved", fields)

	writeJSON(w, http.StatusOK, credentialsResponse{Credentials: creds, Missing: creds.Missing()})
}

func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.sessions.Credentials(sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialsResponse{Credentials: creds, Missing: creds.Missing()})
}

func (s *Server) handleClearCredentials(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.ClearCredentials(sessionID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// Conversation & dispatch
// ==========================

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply  string                  `json:"reply"`
	Intent *models.ExtractedIntent `json:"intent,omitempty"`
	Result *transaction.Result     `json:"result,omitempty"`
}

// handleMessage records the message, extracts an intent and dispatches it
// with the session's credentials.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	ctx := r.Context()

	var req messageRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Message == "" {
		s.writeError(w, r, apperrors.NewInputValidationFailedError("message is required"))
		return
	}

	creds, err := s.sessions.Credentials(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prior, err := s.history.List(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.appendHistory(ctx, id, models.RoleUser, req.Message)

	intent, err := s.extractor.Extract(ctx, req.Message, prior)
	if errors.Is(err, extractintent.ErrNoTransactionIntent) {
		reply := "I could not find a transaction in that message."
		s.appendHistory(ctx, id, models.RoleAssistant, reply)
		writeJSON(w, http.StatusOK, messageResponse{Reply: reply})
		return
	}
	if err != nil {
		s.writeError(w, r, extractionError(err))
		return
	}

	if err := s.sessions.SetLastIntent(id, *intent); err != nil {
		s.writeError(w, r, err)
		return
	}

	result := s.dispatch(ctx, id, intent.TransactionType, *intent, creds)
	reply := replyFor(result)
	s.appendHistory(ctx, id, models.RoleAssistant, reply)

	writeJSON(w, http.StatusOK, messageResponse{Reply: reply, Intent: intent, Result: &result})
}

type dispatchRequest struct {
	TransactionType models.TransactionType `json:"transactionType"`
}

// handleDispatch re-dispatches the session's last extracted intent,
// optionally under a different transaction type.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)

	var req dispatchRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	intent, err := s.sessions.LastIntent(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if intent == nil {
		s.writeError(w, r, apperrors.NewNoTransactionIntentError())
		return
	}
	creds, err := s.sessions.Credentials(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	txType := req.TransactionType
	if txType == "" {
		txType = intent.TransactionType
	}

	result := s.dispatch(r.Context(), id, txType, *intent, creds)
	s.appendHistory(r.Context(), id, models.RoleAssistant, replyFor(result))

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) dispatch(ctx context.Context, id string, t models.TransactionType, intent models.ExtractedIntent, creds models.Credentials) transaction.Result {
	return s.dispatcher.Dispatch(transaction.WithOrigin(ctx, "session:"+id), t, intent, creds)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := s.sessions.Get(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.history.List(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (s *Server) appendHistory(ctx context.Context, id string, role models.Role, content string) {
	entry := models.ConversationEntry{Role: role, Content: content, CreatedAt: time.Now().UTC()}
	if err := s.history.Append(ctx, id, entry); err != nil {
		s.logger.Warn("Failed to append history", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
	}
}

func replyFor(result transaction.Result) string {
	if result.OK() {
		return fmt.Sprintf("Submitted %s successfully.", result.Operation)
	}
	return result.Message
}

func extractionError(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, extractintent.ErrIntentAPITimeout):
		return apperrors.NewIntentAPITimeoutError()
	case errors.Is(err, extractintent.ErrInputValidationFailed):
		return apperrors.NewInputValidationFailedError(err.Error())
	default:
		return apperrors.NewIntentParsingFailedError(err)
	}
}

// ==========================
// Helpers
// ==========================

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

// decodeBody reads a JSON body. An empty body is accepted when optional.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.NewInputValidationFailedError("invalid JSON body: " + err.Error())
	}
	return nil
}

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrSessionNotFound) {
		err = apperrors.NewSessionNotFoundError(sessionID(r))
	}
	stdErr, ok := apperrors.AsStandardError(err)
	if !ok {
		stdErr = apperrors.NewInternalError(err)
	}

	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"code":  string(stdErr.Code),
			"error": stdErr.Details,
		})
	}

	body := errorBody{Code: stdErr.Code, Message: stdErr.Message}
	if stdErr.Code != apperrors.ErrCodeInternal {
		body.Details = stdErr.Details
	}
	writeJSON(w, status, map[string]interface{}{"error": body})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInputValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeNoTransactionIntent:
		return http.StatusConflict
	case apperrors.ErrCodeIntentParsingFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodeIntentAPITimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
