package llm

import (
	"errors"
	"strings"
)

var (
	// ErrRateLimited marks provider errors caused by rate limiting or quota exhaustion.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrNoClient indicates that no client is configured for a tier's provider.
	ErrNoClient = errors.New("no client available for provider")

	// ErrEmptyCompletion is returned when the provider answers without any choices.
	ErrEmptyCompletion = errors.New("provider returned no choices")
)

var rateLimitMarkers = []string{"rate limit", "quota"}

// IsRateLimited reports whether err signals a transient rate-limit or quota
// condition. Providers only expose this in the error text, so the check is a
// case-insensitive substring match.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
