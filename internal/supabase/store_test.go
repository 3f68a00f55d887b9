package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vansh-rautela/sage-health-assistant/internal/config"
)

type gqlRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// gqlServer answers GraphQL operations by name and records what it received.
type gqlServer struct {
	t         *testing.T
	mu        sync.Mutex
	requests  []gqlRequest
	responses map[string]string
}

func newGQLServer(t *testing.T, responses map[string]string) (*gqlServer, *httptest.Server) {
	g := &gqlServer{t: t, responses: responses}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql/v1", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		g.mu.Lock()
		g.requests = append(g.requests, req)
		g.mu.Unlock()

		body, ok := responses[req.OperationName]
		if !ok {
			body = `{"errors":[{"message":"unexpected operation"}]}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return g, ts
}

func (g *gqlServer) Requests() []gqlRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gqlRequest(nil), g.requests...)
}

func newTestStore(ts *httptest.Server) *Store {
	s := NewStore(&config.SupabaseConfig{URL: ts.URL + "/", Key: "service-key", Timeout: 5 * time.Second})
	s.now = func() time.Time { return time.Date(2025, 2, 3, 14, 5, 6, 0, time.UTC) }
	return s
}

func TestStoreCreateSessionDefaultTitle(t *testing.T) {
	g, ts := newGQLServer(t, map[string]string{
		"CreateSession": `{"data":{"insertIntochat_sessionsCollection":{"records":[
			{"id":"5f0c0a8e-0000-4000-8000-000000000001","user_id":"u1","title":"03-02-2025 | 14:05:06","created_at":"2025-02-03T14:05:06"}]}}}`,
	})
	s := newTestStore(ts)

	session, err := s.CreateSession(context.Background(), "u1", "")
	require.NoError(t, err)

	assert.Equal(t, "5f0c0a8e-0000-4000-8000-000000000001", session.ID)
	assert.Equal(t, "03-02-2025 | 14:05:06", session.Title)
	assert.Equal(t, 2025, session.CreatedAt.Year())

	reqs := g.Requests()
	require.Len(t, reqs, 1)
	objects := reqs[0].Variables["objects"].([]any)
	obj := objects[0].(map[string]any)
	assert.Equal(t, "u1", obj["user_id"])
	assert.Equal(t, "03-02-2025 | 14:05:06", obj["title"])
}

func TestStoreListSessions(t *testing.T) {
	g, ts := newGQLServer(t, map[string]string{
		"ListSessions": `{"data":{"chat_sessionsCollection":{"edges":[
			{"node":{"id":"s2","user_id":"u1","title":"b","created_at":"2025-02-04T10:00:00+00:00"}},
			{"node":{"id":"s1","user_id":"u1","title":"a","created_at":"2025-02-03T10:00:00+00:00"}}]}}}`,
	})
	s := newTestStore(ts)

	sessions, err := s.ListSessions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Equal(t, "s1", sessions[1].ID)

	req := g.Requests()[0]
	assert.Equal(t, "u1", req.Variables["userId"])
	assert.Contains(t, req.Query, "DescNullsLast")
}

func TestStoreMessages(t *testing.T) {
	g, ts := newGQLServer(t, map[string]string{
		"SaveMessage": `{"data":{"insertIntochat_messagesCollection":{"records":[
			{"id":"41","session_id":"s1","role":"user","content":"hello","created_at":"2025-02-03T14:05:06.123456"}]}}}`,
		"ListMessages": `{"data":{"chat_messagesCollection":{"edges":[
			{"node":{"id":"41","session_id":"s1","role":"user","content":"hello","created_at":"2025-02-03T14:05:06"}},
			{"node":{"id":"42","session_id":"s1","role":"assistant","content":"hi","created_at":"2025-02-03T14:05:09"}}]}}}`,
	})
	s := newTestStore(ts)

	msg, err := s.SaveMessage(context.Background(), "s1", "user", "hello")
	require.NoError(t, err)
	assert.Equal(t, "41", msg.ID)

	messages, err := s.ListMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[1].Role)

	reqs := g.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].Query, "AscNullsLast")
}

func TestStoreDeleteSessionDeletesMessagesFirst(t *testing.T) {
	g, ts := newGQLServer(t, map[string]string{
		"DeleteSessionMessages": `{"data":{"deleteFromchat_messagesCollection":{"affectedCount":3}}}`,
		"DeleteSession":         `{"data":{"deleteFromchat_sessionsCollection":{"affectedCount":1}}}`,
	})
	s := newTestStore(ts)

	require.NoError(t, s.DeleteSession(context.Background(), "s1"))

	reqs := g.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "DeleteSessionMessages", reqs[0].OperationName)
	assert.Equal(t, "DeleteSession", reqs[1].OperationName)
}

func TestStoreDeleteMissingSession(t *testing.T) {
	_, ts := newGQLServer(t, map[string]string{
		"DeleteSessionMessages": `{"data":{"deleteFromchat_messagesCollection":{"affectedCount":0}}}`,
		"DeleteSession":         `{"data":{"deleteFromchat_sessionsCollection":{"affectedCount":0}}}`,
	})
	s := newTestStore(ts)

	err := s.DeleteSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGetUser(t *testing.T) {
	_, ts := newGQLServer(t, map[string]string{
		"GetUser": `{"data":{"usersCollection":{"edges":[{"node":{"id":"u1","email":"a@b.c","name":"Asha"}}]}}}`,
	})
	s := newTestStore(ts)

	user, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
}

func TestStoreGetUserNotFound(t *testing.T) {
	_, ts := newGQLServer(t, map[string]string{
		"GetUser": `{"data":{"usersCollection":{"edges":[]}}}`,
	})
	s := newTestStore(ts)

	_, err := s.GetUser(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGraphQLError(t *testing.T) {
	_, ts := newGQLServer(t, map[string]string{})
	s := newTestStore(ts)

	_, err := s.ListMessages(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ListMessages")
}

func TestDefaultSessionTitle(t *testing.T) {
	ts := time.Date(2024, 12, 9, 7, 3, 1, 0, time.UTC)
	assert.Equal(t, "09-12-2024 | 07:03:01", DefaultSessionTitle(ts))
}

func TestTimestampUnmarshal(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-02-03T14:05:06.5+05:30"`), &ts))
	assert.Equal(t, 14, ts.Hour())

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestStoreGetSession(t *testing.T) {
	g, ts := newGQLServer(t, map[string]string{
		"GetSession": `{"data":{"chat_sessionsCollection":{"edges":[
			{"node":{"id":"s1","user_id":"u1","title":"t","created_at":"2025-02-03T10:00:00"}}]}}}`,
	})
	s := newTestStore(ts)

	session, err := s.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "s1", g.Requests()[0].Variables["id"])
}

func TestStoreGetSessionNotFound(t *testing.T) {
	_, ts := newGQLServer(t, map[string]string{
		"GetSession": `{"data":{"chat_sessionsCollection":{"edges":[]}}}`,
	})
	s := newTestStore(ts)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
