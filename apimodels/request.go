package apimodels

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateSessionRequest struct {
	UserID string `json:"user_id"`
	// Title is optional; the store picks a date-based title when empty.
	Title string `json:"title,omitempty"`
}

type FollowUpRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`

	// ReportContext is the report_context returned by the initial analysis.
	ReportContext map[string]any `json:"report_context"`
}

type RiskScoreRequest struct {
	ReportContext map[string]any `json:"report_context"`
}
