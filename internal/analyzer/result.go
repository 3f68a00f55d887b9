package analyzer

// FailureKind classifies a failed Result for callers that map it to a status.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureQuotaExceeded FailureKind = "quota_exceeded"
	FailureExhausted     FailureKind = "exhausted"
	FailureCancelled     FailureKind = "cancelled"
	FailureInvalidInput  FailureKind = "invalid_input"
)

// Result is the envelope returned by every analysis. Exactly one of
// Content or Error is meaningful, depending on Success.
type Result struct {
	Success   bool        `json:"success"`
	Content   string      `json:"content,omitempty"`
	ModelUsed string      `json:"model_used,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      FailureKind `json:"-"`
}

func success(content, modelUsed string) Result {
	return Result{Success: true, Content: content, ModelUsed: modelUsed}
}

func failure(kind FailureKind, msg string) Result {
	return Result{Success: false, Error: msg, Kind: kind}
}
