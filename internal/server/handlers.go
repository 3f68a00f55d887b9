package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vansh-rautela/sage-health-assistant/apimodels"
	"github.com/vansh-rautela/sage-health-assistant/internal/analyzer"
	"github.com/vansh-rautela/sage-health-assistant/internal/pdftext"
	"github.com/vansh-rautela/sage-health-assistant/internal/prompts"
	"github.com/vansh-rautela/sage-health-assistant/internal/supabase"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadSize = 20 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, apimodels.HealthResponse{
		Status:    "ok",
		Time:      s.now().UTC().Format(time.RFC3339),
		RateLimit: s.analyzer.RateStatus(),
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req apimodels.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Name, email and password are required.")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid email address.")
		return
	}

	user, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, supabase.ErrEmailTaken) {
			respondError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		slog.Error("Sign up failed", "error", err)
		respondError(w, http.StatusBadRequest, "Sign up failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, apimodels.UserResponse{User: *user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req apimodels.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Valid email and password are required.")
		return
	}

	user, token, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, supabase.ErrUserDataMissing) {
			respondError(w, http.StatusUnauthorized, "User data not found")
			return
		}
		respondError(w, http.StatusUnauthorized, "Invalid login credentials")
		return
	}
	respondJSON(w, http.StatusOK, apimodels.LoginResponse{
		User:  apimodels.LoginUser{User: *user, Token: token},
		Token: token,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "Invalid user ID.")
	if !ok {
		return
	}
	if !s.canAccessUser(r, userID) {
		respondError(w, http.StatusForbidden, "Not allowed to access these sessions.")
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), userID)
	if err != nil {
		slog.Error("Listing sessions failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve sessions.")
		return
	}
	if sessions == nil {
		sessions = []supabase.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req apimodels.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "User ID is required.")
		return
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID.")
		return
	}
	if !s.canAccessUser(r, req.UserID) {
		respondError(w, http.StatusForbidden, "Not allowed to create sessions for this user.")
		return
	}

	session, err := s.store.CreateSession(r.Context(), req.UserID, req.Title)
	if err != nil {
		slog.Error("Creating session failed", "user_id", req.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session.")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "Invalid session ID.")
	if !ok || !s.authorizeSession(w, r, sessionID) {
		return
	}

	if err := s.store.DeleteSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, supabase.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Session not found.")
			return
		}
		slog.Error("Deleting session failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, apimodels.MessageResponse{Message: "Session deleted successfully."})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "Invalid session ID.")
	if !ok || !s.authorizeSession(w, r, sessionID) {
		return
	}

	messages, err := s.store.ListMessages(r.Context(), sessionID)
	if err != nil {
		slog.Error("Listing messages failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve messages.")
		return
	}
	if messages == nil {
		messages = []supabase.Message{}
	}
	respondJSON(w, http.StatusOK, messages)
}

func (s *Server) handleAnalyzeInitial(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form data.")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	patientName := strings.TrimSpace(r.FormValue("patient_name"))
	gender := strings.TrimSpace(r.FormValue("gender"))
	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if patientName == "" || gender == "" || sessionID == "" {
		respondError(w, http.StatusBadRequest, "patient_name, age, gender and session_id are required.")
		return
	}
	age, err := strconv.Atoi(strings.TrimSpace(r.FormValue("age")))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Age must be an integer.")
		return
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID.")
		return
	}
	if !s.authorizeSession(w, r, sessionID) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "A PDF file is required.")
		return
	}
	defer file.Close()

	text, err := s.extractor.Extract(file, header.Size)
	if err != nil {
		slog.Info("Rejected uploaded report", "filename", header.Filename, "error", err)
		respondError(w, http.StatusBadRequest, extractionDetail(err))
		return
	}

	report := map[string]any{
		"patient_name": patientName,
		"age":          age,
		"gender":       gender,
		"report":       text,
	}

	s.saveMessage(r, sessionID, "user",
		fmt.Sprintf("Analyzing report for patient: %s, Age: %d, Gender: %s.", patientName, age, gender))

	result := s.analyzer.Analyze(r.Context(), report, prompts.MustGet(prompts.ComprehensiveAnalyst), nil)
	if !result.Success {
		respondFailure(w, result, "")
		return
	}

	s.saveMessage(r, sessionID, "assistant", result.Content)
	respondJSON(w, http.StatusOK, apimodels.AnalysisResponse{Analysis: result, ReportContext: report})
}

func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	var req apimodels.FollowUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" || req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "prompt and session_id are required.")
		return
	}
	if req.ReportContext == nil {
		respondError(w, http.StatusBadRequest, "report_context is required.")
		return
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID.")
		return
	}
	if !s.authorizeSession(w, r, req.SessionID) {
		return
	}

	s.saveMessage(r, req.SessionID, "user", req.Prompt)

	var history []analyzer.ChatTurn
	messages, err := s.store.ListMessages(r.Context(), req.SessionID)
	if err != nil {
		slog.Warn("Loading chat history failed, continuing without it", "session_id", req.SessionID, "error", err)
	}
	for _, m := range messages {
		history = append(history, analyzer.ChatTurn{Role: m.Role, Content: m.Content})
	}

	data := maps.Clone(req.ReportContext)
	data["question"] = req.Prompt

	result := s.analyzer.Analyze(r.Context(), data, prompts.MustGet(prompts.ComprehensiveAnalyst), history)
	if !result.Success {
		respondFailure(w, result, "")
		return
	}

	s.saveMessage(r, req.SessionID, "assistant", result.Content)
	respondJSON(w, http.StatusOK, apimodels.FollowUpResponse{Response: result})
}

func (s *Server) handleRiskScore(w http.ResponseWriter, r *http.Request) {
	var req apimodels.RiskScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReportContext == nil {
		respondError(w, http.StatusBadRequest, "report_context is required.")
		return
	}

	result := s.analyzer.Analyze(r.Context(), req.ReportContext, prompts.MustGet(prompts.RiskScorer), nil)
	if !result.Success {
		respondFailure(w, result, "AI model failed to generate risk scores.")
		return
	}

	scores, err := parseRiskScores(result.Content)
	if err != nil {
		slog.Warn("Risk scorer returned unusable content", "model", result.ModelUsed, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, scores)
}

// saveMessage records a chat turn. Failures are logged and do not fail the request.
func (s *Server) saveMessage(r *http.Request, sessionID, role, content string) {
	if _, err := s.store.SaveMessage(r.Context(), sessionID, role, content); err != nil {
		slog.Error("Saving chat message failed", "session_id", sessionID, "role", role, "error", err)
	}
}

func extractionDetail(err error) string {
	switch {
	case errors.Is(err, pdftext.ErrTooManyPages):
		return "Error: " + err.Error() + "."
	case errors.Is(err, pdftext.ErrNoText):
		return "Error: Could not extract text from PDF. Please ensure it's not a scanned document."
	case errors.Is(err, pdftext.ErrNotMedical):
		return "Error: Uploaded file does not appear to be a medical report."
	default:
		return "Error extracting text from PDF."
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, detail string) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, detail)
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return false
	}
	return true
}

// failureStatus maps a failed analysis to an HTTP status.
func failureStatus(kind analyzer.FailureKind) int {
	switch kind {
	case analyzer.FailureQuotaExceeded:
		return http.StatusTooManyRequests
	case analyzer.FailureInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondFailure(w http.ResponseWriter, result analyzer.Result, fallback string) {
	detail := result.Error
	if detail == "" {
		detail = fallback
	}
	respondError(w, failureStatus(result.Kind), detail)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, apimodels.ErrorResponse{Detail: detail})
}
