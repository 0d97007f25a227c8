package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate-gateway/internal/authz"
	"affiliate-gateway/internal/storage"
)

func TestResolveSurface(t *testing.T) {
	env := newTestEnv(&fakeOps{})
	op := uuid.New()
	adm := uuid.New()
	env.mem.GrantAdmin(adm)

	tests := []struct {
		name      string
		token     string
		surface   string
		wantState authz.State
		wantOK    bool
		wantPath  string
	}{
		{"anonymous on admin", "", "admin", authz.StateUnauthenticated, false, "/login"},
		{"garbage token", "not-a-token", "operator", authz.StateUnauthenticated, false, "/login"},
		{"operator on operator", signSession(t, op, "op@example.com"), "operator", authz.StateOperator, true, ""},
		{"admin email without privilege", signSession(t, op, adminEmail), "admin", authz.StateOperator, false, "/dashboard"},
		{"admin on admin", signSession(t, adm, adminEmail), "admin", authz.StateAdmin, true, ""},
		{"admin on operator", signSession(t, adm, adminEmail), "operator", authz.StateAdmin, false, "/admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/session/resolve", `{"surface":"`+tt.surface+`"}`, tt.token)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var d authz.Decision
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
			assert.Equal(t, tt.wantState, d.State)
			assert.Equal(t, tt.wantOK, d.Allowed)
			assert.Equal(t, tt.wantPath, d.Path)
		})
	}

	rr := env.do(t, http.MethodPost, "/api/session/resolve", `{"surface":"billing"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(&fakeOps{})
	user := uuid.New()
	token := signSession(t, user, "op@example.com")

	rr := env.do(t, http.MethodGet, "/api/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "missing bearer token")

	rr = env.do(t, http.MethodGet, "/api/profile", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeBody(t, rr)["data"].(map[string]any)
	assert.Equal(t, user.String(), data["user_id"])
	assert.Equal(t, []any{}, data["platforms"])

	rr = env.do(t, http.MethodPut, "/api/profile", `{"platforms":["tonic"],"username":"alice","password_text":"pw"}`, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	p, err := env.mem.GetProfile(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, []string{"tonic"}, p.Platforms)
}

func TestMyCampaigns(t *testing.T) {
	env := newTestEnv(&fakeOps{})
	user := uuid.New()
	other := uuid.New()
	ctx := context.Background()
	require.NoError(t, env.mem.RecordCampaign(ctx, storage.CampaignRecord{CampaignID: "1", UserID: user, Channel: "generic"}))
	require.NoError(t, env.mem.RecordCampaign(ctx, storage.CampaignRecord{CampaignID: "2", UserID: other, Channel: "social"}))

	rr := env.do(t, http.MethodGet, "/api/campaigns/mine", "", signSession(t, user, "op@example.com"))
	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeBody(t, rr)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "1", data[0].(map[string]any)["campaign_id"])

	rr = env.do(t, http.MethodGet, "/api/campaigns/mine", "", signSession(t, uuid.New(), "new@example.com"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[]}`, rr.Body.String())
}

func readEvent(t *testing.T, rd *bufio.Reader) authz.Decision {
	t.Helper()
	var data string
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" && data != "" {
			break
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	var d authz.Decision
	require.NoError(t, json.Unmarshal([]byte(data), &d))
	return d
}

func TestWatchSurface_EndsOnSignOut(t *testing.T) {
	env := newTestEnv(&fakeOps{})
	srv := httptest.NewServer(env.h)
	defer srv.Close()

	user := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/session?surface=operator", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signSession(t, user, "op@example.com"))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	first := readEvent(t, rd)
	assert.True(t, first.Allowed)
	assert.Equal(t, authz.StateOperator, first.State)

	env.bus.Publish(authz.SessionEvent{UserID: user, SignedOut: true})

	second := readEvent(t, rd)
	assert.False(t, second.Allowed)
	assert.Equal(t, authz.SurfaceLogin, second.Redirect)
	assert.Equal(t, authz.NoticeSignIn, second.Notice)
}

func TestWatchSurface_AnonymousRedirectsAtOnce(t *testing.T) {
	env := newTestEnv(&fakeOps{})
	srv := httptest.NewServer(env.h)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/events/session?surface=admin")
	require.NoError(t, err)
	defer resp.Body.Close()

	d := readEvent(t, bufio.NewReader(resp.Body))
	assert.False(t, d.Allowed)
	assert.Equal(t, "/login", d.Path)
}

func TestWatchSurface_EndsOnCloseStreams(t *testing.T) {
	env := newTestEnv(&fakeOps{})
	srv := httptest.NewServer(env.h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/session?surface=operator", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signSession(t, uuid.New(), "op@example.com"))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	rd := bufio.NewReader(resp.Body)
	require.True(t, readEvent(t, rd).Allowed)

	env.gw.CloseStreams()
	env.gw.CloseStreams()

	rest, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.NoError(t, ctx.Err())
}
