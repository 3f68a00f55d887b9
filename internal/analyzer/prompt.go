package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// historyWindow is how many trailing chat turns are replayed to the model.
	historyWindow = 4
	minHistory    = 2
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReportData is the fixed-key projection of a report or follow-up request.
// Question is nil when no follow-up was asked, which is distinct from an
// empty follow-up.
type ReportData struct {
	PatientName string  `json:"patient_name"`
	Age         string  `json:"age"`
	Gender      string  `json:"gender"`
	Report      string  `json:"report"`
	Question    *string `json:"question,omitempty"`
}

// Normalize projects loosely typed request data onto ReportData.
func Normalize(data map[string]any) ReportData {
	d := ReportData{
		PatientName: stringField(data, "patient_name"),
		Age:         stringField(data, "age"),
		Gender:      stringField(data, "gender"),
		Report:      stringField(data, "report"),
	}
	if v, ok := data["question"]; ok && v != nil {
		q := stringify(v)
		d.Question = &q
	}
	return d
}

// Payload serializes the data for the user turn.
func (d ReportData) Payload() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("encoding report data: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Compose appends recent session history to the system prompt. With fewer
// than two turns the prompt is returned as is.
func Compose(systemPrompt string, history []ChatTurn) string {
	session := sessionContext(history)
	if session == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n## Current Session History\n" + session
}

func sessionContext(history []ChatTurn) string {
	if len(history) < minHistory {
		return ""
	}
	start := len(history) - historyWindow
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, len(history)-start)
	for _, turn := range history[start:] {
		lines = append(lines, turn.Role+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
