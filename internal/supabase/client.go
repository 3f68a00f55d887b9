package supabase

import (
	"net/http"
	"strings"
	"time"

	"github.com/vansh-rautela/sage-health-assistant/internal/config"
)

const (
	graphqlPath = "/graphql/v1"
	authPath    = "/auth/v1"
)

// keyedTransport adds the Supabase API key headers to every request.
type keyedTransport struct {
	key  string
	base http.RoundTripper
}

func (t *keyedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("apikey", t.key)
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+t.key)
	}
	return t.base.RoundTrip(req)
}

func newHTTPClient(cfg *config.SupabaseConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &keyedTransport{key: cfg.Key, base: http.DefaultTransport},
	}
}

func baseURL(cfg *config.SupabaseConfig) string {
	return strings.TrimRight(cfg.URL, "/")
}
