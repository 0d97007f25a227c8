package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"affiliate-gateway/internal/config"
	"affiliate-gateway/internal/storage"
)

var (
	genericCreds = config.Credentials{Key: "gen-key", Secret: "gen-secret"}
	socialCreds  = config.Credentials{Key: "soc-key", Secret: "soc-secret"}
)

const (
	genericToken = "tok-generic"
	socialToken  = "tok-social"
)

// fakeUpstream imitates the upstream API: it issues one token per credential pair,
// rejects calls without one of those tokens, and records every call.
type fakeUpstream struct {
	mu       sync.Mutex
	srv      *httptest.Server
	routes   map[string]http.HandlerFunc
	calls    map[string]int
	authKeys []string
	auths    map[string]string
	bodies   map[string]map[string]any
	queries  map[string]url.Values
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		routes:  map[string]http.HandlerFunc{},
		calls:   map[string]int{},
		auths:   map[string]string{},
		bodies:  map[string]map[string]any{},
		queries: map[string]url.Values{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

func (f *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	raw, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(raw))

	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()

	if key == http.MethodPost+" "+pathAuthenticate {
		f.authenticate(w, raw)
		return
	}

	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	auth := r.Header.Get("Authorization")

	f.mu.Lock()
	f.auths[key] = auth
	f.bodies[key] = body
	f.queries[key] = r.URL.Query()
	h := f.routes[key]
	f.mu.Unlock()

	if auth != "Bearer "+genericToken && auth != "Bearer "+socialToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
		return
	}
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (f *fakeUpstream) authenticate(w http.ResponseWriter, raw []byte) {
	var req authRequest
	_ = json.Unmarshal(raw, &req)

	f.mu.Lock()
	f.authKeys = append(f.authKeys, req.ConsumerKey)
	f.mu.Unlock()

	exp := time.Now().Add(time.Hour).Unix()
	switch {
	case req.ConsumerKey == genericCreds.Key && req.ConsumerSecret == genericCreds.Secret:
		writeTestJSON(w, http.StatusOK, map[string]any{"token": genericToken, "expires": exp})
	case req.ConsumerKey == socialCreds.Key && req.ConsumerSecret == socialCreds.Secret:
		writeTestJSON(w, http.StatusOK, map[string]any{"token": socialToken, "expires": exp})
	default:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid consumer"}`))
	}
}

func (f *fakeUpstream) callCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

func (f *fakeUpstream) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeUpstream) lastAuth(method, path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auths[method+" "+path]
}

func (f *fakeUpstream) lastBody(method, path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method+" "+path]
}

func (f *fakeUpstream) lastQuery(method, path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[method+" "+path]
}

func (f *fakeUpstream) keysSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authKeys...)
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// countingAuth counts credential exchanges per channel.
type countingAuth struct {
	next  Authenticator
	mu    sync.Mutex
	calls map[Channel]int
}

func (c *countingAuth) Authenticate(ctx context.Context, ch Channel) (Token, error) {
	c.mu.Lock()
	c.calls[ch]++
	c.mu.Unlock()
	return c.next.Authenticate(ctx, ch)
}

func (c *countingAuth) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *countingAuth) countFor(ch Channel) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[ch]
}

type stubRecorder struct {
	mu   sync.Mutex
	recs []storage.CampaignRecord
	err  error
}

func (s *stubRecorder) RecordCampaign(_ context.Context, rec storage.CampaignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func newTestClient(f *fakeUpstream, rec CampaignRecorder) (*Client, *countingAuth) {
	broker := NewBroker(f.srv.URL, genericCreds, socialCreds, f.srv.Client())
	auth := &countingAuth{next: broker, calls: map[Channel]int{}}
	return NewClient(f.srv.URL, auth, rec, f.srv.Client()), auth
}
