package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Khan/genqlient/graphql"

	"github.com/vansh-rautela/sage-health-assistant/internal/config"
)

// pageSize is the row cap requested from list queries; the server may apply a lower max_rows.
const pageSize = 1000

// Store reads and writes application tables through the Supabase GraphQL API.
type Store struct {
	client graphql.Client
	now    func() time.Time
}

func NewStore(cfg *config.SupabaseConfig) *Store {
	endpoint := baseURL(cfg) + graphqlPath
	slog.Info("Creating Supabase store", "endpoint", endpoint)
	return newStore(graphql.NewClient(endpoint, newHTTPClient(cfg)))
}

func newStore(client graphql.Client) *Store {
	return &Store{client: client, now: time.Now}
}

func (s *Store) execute(ctx context.Context, opName, query string, variables map[string]any, out any) error {
	req := &graphql.Request{
		OpName:    opName,
		Query:     query,
		Variables: variables,
	}
	resp := &graphql.Response{Data: out}

	if err := s.client.MakeRequest(ctx, req, resp); err != nil {
		slog.Error("Supabase operation failed", "operation", opName, "error", err)
		return fmt.Errorf("supabase %s: %w", opName, err)
	}
	return nil
}

const insertUserMutation = `mutation InsertUser($objects: [usersInsertInput!]!) {
  insertIntousersCollection(objects: $objects) {
    records { id email name }
  }
}`

func (s *Store) CreateUser(ctx context.Context, u User) (*User, error) {
	var data struct {
		Insert struct {
			Records []User `json:"records"`
		} `json:"insertIntousersCollection"`
	}
	vars := map[string]any{
		"objects": []map[string]any{{"id": u.ID, "email": u.Email, "name": u.Name}},
	}
	if err := s.execute(ctx, "InsertUser", insertUserMutation, vars, &data); err != nil {
		return nil, err
	}
	if len(data.Insert.Records) == 0 {
		return &u, nil
	}
	return &data.Insert.Records[0], nil
}

const getUserQuery = `query GetUser($id: UUID!) {
  usersCollection(filter: {id: {eq: $id}}, first: 1) {
    edges { node { id email name } }
  }
}`

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var data struct {
		Users struct {
			Edges []struct {
				Node User `json:"node"`
			} `json:"edges"`
		} `json:"usersCollection"`
	}
	if err := s.execute(ctx, "GetUser", getUserQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if len(data.Users.Edges) == 0 {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &data.Users.Edges[0].Node, nil
}

const createSessionMutation = `mutation CreateSession($objects: [chat_sessionsInsertInput!]!) {
  insertIntochat_sessionsCollection(objects: $objects) {
    records { id user_id title created_at }
  }
}`

// CreateSession starts a chat session for userID. An empty title is
// replaced by the creation date and time.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	now := s.now()
	if title == "" {
		title = DefaultSessionTitle(now)
	}

	var data struct {
		Insert struct {
			Records []Session `json:"records"`
		} `json:"insertIntochat_sessionsCollection"`
	}
	vars := map[string]any{
		"objects": []map[string]any{{
			"user_id":    userID,
			"title":      title,
			"created_at": now.Format(time.RFC3339Nano),
		}},
	}
	if err := s.execute(ctx, "CreateSession", createSessionMutation, vars, &data); err != nil {
		return nil, err
	}
	if len(data.Insert.Records) == 0 {
		return nil, fmt.Errorf("supabase CreateSession: no record returned")
	}
	return &data.Insert.Records[0], nil
}

const getSessionQuery = `query GetSession($id: UUID!) {
  chat_sessionsCollection(filter: {id: {eq: $id}}, first: 1) {
    edges { node { id user_id title created_at } }
  }
}`

// GetSession returns the session with id, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var data struct {
		Sessions struct {
			Edges []struct {
				Node Session `json:"node"`
			} `json:"edges"`
		} `json:"chat_sessionsCollection"`
	}
	if err := s.execute(ctx, "GetSession", getSessionQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if len(data.Sessions.Edges) == 0 {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return &data.Sessions.Edges[0].Node, nil
}

const listSessionsQuery = `query ListSessions($userId: UUID!, $first: Int!) {
  chat_sessionsCollection(filter: {user_id: {eq: $userId}}, orderBy: [{created_at: DescNullsLast}], first: $first) {
    edges { node { id user_id title created_at } }
  }
}`

// ListSessions returns the user's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	var data struct {
		Sessions struct {
			Edges []struct {
				Node Session `json:"node"`
			} `json:"edges"`
		} `json:"chat_sessionsCollection"`
	}
	vars := map[string]any{"userId": userID, "first": pageSize}
	if err := s.execute(ctx, "ListSessions", listSessionsQuery, vars, &data); err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(data.Sessions.Edges))
	for _, e := range data.Sessions.Edges {
		sessions = append(sessions, e.Node)
	}
	slog.Debug("Fetched sessions", "user_id", userID, "count", len(sessions))
	return sessions, nil
}

const deleteSessionMessagesMutation = `mutation DeleteSessionMessages($sessionId: UUID!) {
  deleteFromchat_messagesCollection(filter: {session_id: {eq: $sessionId}}, atMost: 10000) {
    affectedCount
  }
}`

const deleteSessionMutation = `mutation DeleteSession($id: UUID!) {
  deleteFromchat_sessionsCollection(filter: {id: {eq: $id}}, atMost: 1) {
    affectedCount
  }
}`

// DeleteSession removes a session's messages and then the session itself.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	var messages struct {
		Delete struct {
			AffectedCount int `json:"affectedCount"`
		} `json:"deleteFromchat_messagesCollection"`
	}
	if err := s.execute(ctx, "DeleteSessionMessages", deleteSessionMessagesMutation,
		map[string]any{"sessionId": sessionID}, &messages); err != nil {
		return err
	}

	var session struct {
		Delete struct {
			AffectedCount int `json:"affectedCount"`
		} `json:"deleteFromchat_sessionsCollection"`
	}
	if err := s.execute(ctx, "DeleteSession", deleteSessionMutation,
		map[string]any{"id": sessionID}, &session); err != nil {
		return err
	}
	if session.Delete.AffectedCount == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	slog.Info("Deleted session", "session_id", sessionID, "messages", messages.Delete.AffectedCount)
	return nil
}

const saveMessageMutation = `mutation SaveMessage($objects: [chat_messagesInsertInput!]!) {
  insertIntochat_messagesCollection(objects: $objects) {
    records { id session_id role content created_at }
  }
}`

func (s *Store) SaveMessage(ctx context.Context, sessionID, role, content string) (*Message, error) {
	var data struct {
		Insert struct {
			Records []Message `json:"records"`
		} `json:"insertIntochat_messagesCollection"`
	}
	vars := map[string]any{
		"objects": []map[string]any{{
			"session_id": sessionID,
			"role":       role,
			"content":    content,
			"created_at": s.now().Format(time.RFC3339Nano),
		}},
	}
	if err := s.execute(ctx, "SaveMessage", saveMessageMutation, vars, &data); err != nil {
		return nil, err
	}
	if len(data.Insert.Records) == 0 {
		return nil, fmt.Errorf("supabase SaveMessage: no record returned")
	}
	return &data.Insert.Records[0], nil
}

const listMessagesQuery = `query ListMessages($sessionId: UUID!, $first: Int!) {
  chat_messagesCollection(filter: {session_id: {eq: $sessionId}}, orderBy: [{created_at: AscNullsLast}], first: $first) {
    edges { node { id session_id role content created_at } }
  }
}`

// ListMessages returns a session's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var data struct {
		Messages struct {
			Edges []struct {
				Node Message `json:"node"`
			} `json:"edges"`
		} `json:"chat_messagesCollection"`
	}
	vars := map[string]any{"sessionId": sessionID, "first": pageSize}
	if err := s.execute(ctx, "ListMessages", listMessagesQuery, vars, &data); err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(data.Messages.Edges))
	for _, e := range data.Messages.Edges {
		messages = append(messages, e.Node)
	}
	return messages, nil
}
