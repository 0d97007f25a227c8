package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate-gateway/internal/config"
)

const jwtSecret = "server-test-secret"

// fakeUpstream issues a token for the generic pair only and serves the catalog
// and campaign creation.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/jwt/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["consumer_key"] != "gk" || req["consumer_secret"] != "gs" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad consumer"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"t-1","expires":4102444800}`))
	})
	mux.HandleFunc("/privileged/v3/countries/list", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"code":"US","name":"United States"}]`))
	})
	mux.HandleFunc("/privileged/v3/campaign/create", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":31337,"name":"Launch"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) config.Config {
	var cfg config.Config
	cfg.Server.RequestTimeout = 5
	cfg.Upstream.BaseURL = baseURL
	cfg.Upstream.TimeoutSeconds = 5
	cfg.Upstream.Generic = config.Credentials{Key: "gk", Secret: "gs"}
	cfg.Auth.JWTSecret = jwtSecret
	cfg.Auth.AdminEmail = "admin@admin.com"
	return cfg
}

func buildApp(t *testing.T) *App {
	t.Helper()
	app, err := Build(context.Background(), testConfig(fakeUpstream(t).URL))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	require.NotNil(t, app.Memory)
	return app
}

func serve(app *App, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, req)
	return rr
}

func token(t *testing.T, userID uuid.UUID, email string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func TestGateway_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		url        string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"healthz", http.MethodGet, "/healthz", "", http.StatusOK, "ok"},
		{"preflight", http.MethodOptions, "/functions/countries", "", http.StatusOK, ""},
		{"countries", http.MethodGet, "/functions/countries", "", http.StatusOK, `"United States"`},
		{"social pair missing", http.MethodGet, "/functions/countries?isFacebook=true", "", http.StatusInternalServerError, "not configured"},
		{"no states", http.MethodPost, "/functions/list-campaigns", `{"states":[]}`, http.StatusBadRequest, "campaign state"},
		{"unknown route", http.MethodGet, "/functions/nope", "", http.StatusNotFound, ""},
	}

	app := buildApp(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(app, tt.method, tt.url, tt.body, "")
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}

func TestGateway_CreatedCampaignIsOwned(t *testing.T) {
	app := buildApp(t)
	user := uuid.New()

	rr := serve(app, http.MethodPost, "/functions/create-campaign",
		`{"countryId":"US","offerId":"9","name":"Launch","targetDomain":"example.com","userId":"`+user.String()+`"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"id":"31337"`)

	recs, err := app.Memory.CampaignsForUser(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "31337", recs[0].CampaignID)

	rr = serve(app, http.MethodGet, "/api/campaigns/mine", "", token(t, user, "op@example.com"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"campaign_id":"31337"`)
}

func TestGateway_AdminNeedsPrivilege(t *testing.T) {
	app := buildApp(t)
	user := uuid.New()
	tok := token(t, user, "admin@admin.com")

	rr := serve(app, http.MethodPost, "/api/session/resolve", `{"surface":"admin"}`, tok)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redirect":"operator"`)

	app.Memory.GrantAdmin(user)
	rr = serve(app, http.MethodPost, "/api/session/resolve", `{"surface":"admin"}`, tok)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"allowed":true`)
}

func TestShutdown_DrainsBeforeCancel(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/jwt/authenticate", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":"t-1","expires":4102444800}`))
	})
	mux.HandleFunc("/privileged/v3/countries/list", func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write([]byte(`[{"code":"US","name":"United States"}]`))
	})
	up := httptest.NewServer(mux)
	defer up.Close()

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := Build(bgCtx, testConfig(up.URL))
	require.NoError(t, err)
	defer app.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := app.newServer(ln.Addr().String())
	go func() { _ = srv.Serve(ln) }()
	base := "http://" + ln.Addr().String()

	req, err := http.NewRequest(http.MethodGet, base+"/events/session?surface=operator", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, uuid.New(), "op@example.com"))
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	rd := bufio.NewReader(stream.Body)
	_, err = rd.ReadString('\n')
	require.NoError(t, err)

	type result struct {
		status int
		body   string
		err    error
	}
	inflight := make(chan result, 1)
	go func() {
		resp, err := http.Get(base + "/functions/countries")
		if err != nil {
			inflight <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		inflight <- result{status: resp.StatusCode, body: string(b)}
	}()
	<-entered

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	stopped := make(chan error, 1)
	go func() { stopped <- app.shutdown(shCtx, srv, cancel) }()

	// the session stream ends without waiting for the in-flight call
	_, err = io.ReadAll(rd)
	require.NoError(t, err)
	assert.NoError(t, bgCtx.Err())

	close(release)
	res := <-inflight
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "United States")

	require.NoError(t, <-stopped)
	assert.ErrorIs(t, bgCtx.Err(), context.Canceled)
}
