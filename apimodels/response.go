package apimodels

import (
	"github.com/vansh-rautela/sage-health-assistant/internal/analyzer"
	"github.com/vansh-rautela/sage-health-assistant/internal/supabase"
)

type UserResponse struct {
	User supabase.User `json:"user"`
}

// LoginUser is the user row with the access token folded in, the shape the
// frontend stores after login.
type LoginUser struct {
	supabase.User
	Token string `json:"token"`
}

type LoginResponse struct {
	User  LoginUser `json:"user"`
	Token string    `json:"token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type AnalysisResponse struct {
	Analysis analyzer.Result `json:"analysis"`

	// ReportContext is echoed back so follow-ups can resend it.
	ReportContext map[string]any `json:"report_context"`
}

type FollowUpResponse struct {
	Response analyzer.Result `json:"response"`
}

type HealthResponse struct {
	Status    string              `json:"status"`
	Time      string              `json:"time"`
	RateLimit analyzer.RateStatus `json:"rate_limit"`
}

// ErrorResponse matches the {"detail": ...} body the frontend reads.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
