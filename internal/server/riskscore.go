package server

import (
	"encoding/json"
	"errors"
	"regexp"
)

var (
	errMalformedScores = errors.New("AI returned a malformed JSON object.")
	errMissingScores   = errors.New("AI did not return a valid JSON object.")
)

// jsonObject matches from the first opening brace to the last closing brace.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseRiskScores decodes model output as a JSON object, falling back to the
// outermost brace-delimited block when the model wrapped it in prose.
func parseRiskScores(content string) (map[string]any, error) {
	var scores map[string]any
	if err := json.Unmarshal([]byte(content), &scores); err == nil && scores != nil {
		return scores, nil
	}

	block := jsonObject.FindString(content)
	if block == "" {
		return nil, errMissingScores
	}
	if err := json.Unmarshal([]byte(block), &scores); err != nil || scores == nil {
		return nil, errMalformedScores
	}
	return scores, nil
}
