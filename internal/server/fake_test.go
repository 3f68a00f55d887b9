package server

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vansh-rautela/sage-health-assistant/internal/analyzer"
	"github.com/vansh-rautela/sage-health-assistant/internal/config"
	"github.com/vansh-rautela/sage-health-assistant/internal/supabase"
)

const (
	testUserID     = "0b7c7f4e-3a59-4c3e-9f51-5d6a3f1d0a01"
	testSessionID  = "6a1f0c9d-2e44-4b7a-8d0e-7f3b2c1a9e02"
	otherSessionID = "9d2e4c1b-7a3f-4e0d-b5c6-1f8a2b3c4d03"
)

type analyzeCall struct {
	Data         map[string]any
	SystemPrompt string
	History      []analyzer.ChatTurn
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	result analyzer.Result
	calls  []analyzeCall
}

func (f *fakeAnalyzer) Analyze(_ context.Context, data map[string]any, systemPrompt string, history []analyzer.ChatTurn) analyzer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, analyzeCall{Data: data, SystemPrompt: systemPrompt, History: history})
	return f.result
}

func (f *fakeAnalyzer) RateStatus() analyzer.RateStatus {
	return analyzer.RateStatus{Count: 2, Limit: 15, Window: 24 * time.Hour}
}

type savedMessage struct {
	SessionID, Role, Content string
}

type fakeStore struct {
	mu        sync.Mutex
	sessions  []supabase.Session
	messages  []supabase.Message
	saved     []savedMessage
	listErr   error
	deleteErr error
	created   []string
}

func (f *fakeStore) CreateSession(_ context.Context, userID, title string) (*supabase.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, userID)
	if title == "" {
		title = "01-01-2025 | 10:00:00"
	}
	return &supabase.Session{ID: testSessionID, UserID: userID, Title: title}, nil
}

func (f *fakeStore) GetSession(_ context.Context, sessionID string) (*supabase.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == sessionID {
			return &s, nil
		}
	}
	return nil, supabase.ErrNotFound
}

func (f *fakeStore) ListSessions(_ context.Context, _ string) ([]supabase.Session, error) {
	return f.sessions, f.listErr
}

func (f *fakeStore) DeleteSession(_ context.Context, _ string) error {
	return f.deleteErr
}

func (f *fakeStore) SaveMessage(_ context.Context, sessionID, role, content string) (*supabase.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedMessage{SessionID: sessionID, Role: role, Content: content})
	f.messages = append(f.messages, supabase.Message{SessionID: sessionID, Role: role, Content: content})
	return &supabase.Message{SessionID: sessionID, Role: role, Content: content}, nil
}

func (f *fakeStore) ListMessages(_ context.Context, _ string) ([]supabase.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]supabase.Message(nil), f.messages...), nil
}

type fakeAuth struct {
	signUpErr error
	signInErr error
}

func (f *fakeAuth) SignUp(_ context.Context, email, _, name string) (*supabase.User, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &supabase.User{ID: testUserID, Email: email, Name: name}, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (*supabase.User, string, error) {
	if f.signInErr != nil {
		return nil, "", f.signInErr
	}
	return &supabase.User{ID: testUserID, Email: email, Name: "Asha"}, "access-token", nil
}

type fakeExtractor struct {
	text string
	err  error
	got  []byte
}

func (f *fakeExtractor) Extract(r io.ReaderAt, size int64) (string, error) {
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	f.got = buf
	return f.text, f.err
}

// fakeVerifier accepts tokens of the form "user:<id>".
type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (string, error) {
	if id, ok := strings.CutPrefix(token, "user:"); ok && id != "" {
		return id, nil
	}
	return "", supabase.ErrInvalidToken
}

type testEnv struct {
	server    *Server
	analyzer  *fakeAnalyzer
	store     *fakeStore
	auth      *fakeAuth
	extractor *fakeExtractor
}

func newTestEnv(opts ...Option) *testEnv {
	env := &testEnv{
		analyzer: &fakeAnalyzer{result: analyzer.Result{
			Success: true, Content: "analysis text", ModelUsed: "groq/llama3-8b-8192",
		}},
		store:     &fakeStore{},
		auth:      &fakeAuth{},
		extractor: &fakeExtractor{text: "Patient hemoglobin 10.2 g/dL"},
	}
	cfg := config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	env.server = New(cfg, Deps{
		Analyzer:  env.analyzer,
		Store:     env.store,
		Auth:      env.auth,
		Extractor: env.extractor,
	}, opts...)
	env.server.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return env
}
