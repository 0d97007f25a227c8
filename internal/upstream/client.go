package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/observability"
	"affiliate-gateway/internal/storage"
)

// Pinned upstream paths. The API version differs per resource and must not be unified.
const (
	pathCampaigns       = "/privileged/v4/campaigns"
	pathCampaignCreate  = "/privileged/v3/campaign/create"
	pathKeywords        = "/privileged/v3/campaign/keywords"
	pathPixel           = "/privileged/v3/campaign/pixel"
	pathPixelTikTok     = "/privileged/v3/campaign/pixel/tiktok"
	pathPixelFacebook   = "/privileged/v3/campaign/pixel/facebook"
	pathPixelInvoke     = "/privileged/v3/campaign/pixel/invoke"
	pathCountries       = "/privileged/v3/countries/list"
	pathOffers          = "/privileged/v3/offers/list"
	pathKeywordsReport  = "/privileged/v1/reports/keywords"
	maxUpstreamBody     = 4 << 20
	maxLoggedBodyLength = 512
)

// CampaignRecorder persists the local ownership record of a created campaign.
type CampaignRecorder interface {
	RecordCampaign(ctx context.Context, rec storage.CampaignRecord) error
}

// Client implements the proxy operations. Every operation authenticates first and
// then performs exactly one upstream call with that token.
type Client struct {
	baseURL  string
	auth     Authenticator
	recorder CampaignRecorder
	http     *http.Client
}

// NewClient builds a Client. recorder may be nil, in which case created campaigns
// are not recorded locally.
func NewClient(baseURL string, auth Authenticator, recorder CampaignRecorder, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: baseURL, auth: auth, recorder: recorder, http: hc}
}

type request struct {
	resource string
	method   string
	path     string
	query    url.Values
	body     any
}

// do chains the two sequential steps of an operation: authenticate on ch, then send
// req with the fresh token. The second step never starts if the first fails.
func (c *Client) do(ctx context.Context, ch Channel, req request, out any) error {
	tok, err := c.auth.Authenticate(ctx, ch)
	if err != nil {
		return err
	}
	return c.send(ctx, tok, req, out)
}

func (c *Client) send(ctx context.Context, tok Token, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return &UpstreamError{Resource: r.resource, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return &TransportError{Op: r.resource, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.UpstreamCalls.WithLabelValues(r.resource, "transport").Inc()
		return &TransportError{Op: r.resource, Err: err}
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	observability.UpstreamLatency.WithLabelValues(r.resource).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamCalls.WithLabelValues(r.resource, "transport").Inc()
		return &TransportError{Op: r.resource, Err: err}
	}

	if !success(resp.StatusCode) {
		observability.UpstreamCalls.WithLabelValues(r.resource, "rejected").Inc()
		log.Warn().
			Str("resource", r.resource).
			Int("status", resp.StatusCode).
			Str("body", truncate(raw)).
			Msg("upstream call rejected")
		return &UpstreamError{Resource: r.resource, Status: resp.StatusCode, Body: truncate(raw)}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			observability.UpstreamCalls.WithLabelValues(r.resource, "malformed").Inc()
			return &UpstreamError{Resource: r.resource, Status: resp.StatusCode, Body: truncate(raw), Err: err}
		}
	}
	observability.UpstreamCalls.WithLabelValues(r.resource, "ok").Inc()
	return nil
}

func success(code int) bool { return code >= 200 && code < 300 }

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBodyLength {
		return string(b[:maxLoggedBodyLength]) + "..."
	}
	return string(b)
}
