package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/config"
	"affiliate-gateway/internal/observability"
)

const pathAuthenticate = "/jwt/authenticate"

// Token is a short-lived upstream bearer token. It is used for exactly one call.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Authenticator exchanges the credential pair of a channel for a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, ch Channel) (Token, error)
}

// Broker performs a fresh credential exchange on every call. Nothing is cached, so
// concurrent operations never share a token.
type Broker struct {
	baseURL string
	generic config.Credentials
	social  config.Credentials
	http    *http.Client
}

func NewBroker(baseURL string, generic, social config.Credentials, hc *http.Client) *Broker {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Broker{baseURL: baseURL, generic: generic, social: social, http: hc}
}

type authRequest struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type authResponse struct {
	Token   string `json:"token"`
	Expires int64  `json:"expires"`
}

func (b *Broker) credentials(ch Channel) config.Credentials {
	switch ch {
	case Generic:
		return b.generic
	case Social:
		return b.social
	default:
		return config.Credentials{}
	}
}

// Authenticate selects the pair for ch and returns the bearer token issued for it.
func (b *Broker) Authenticate(ctx context.Context, ch Channel) (Token, error) {
	creds := b.credentials(ch)
	if !creds.Configured() {
		observability.UpstreamAuth.WithLabelValues(ch.String(), "missing_credentials").Inc()
		return Token{}, &AuthError{Channel: ch, Err: ErrMissingCredentials}
	}

	payload, err := json.Marshal(authRequest{ConsumerKey: creds.Key, ConsumerSecret: creds.Secret})
	if err != nil {
		return Token{}, &AuthError{Channel: ch, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+pathAuthenticate, bytes.NewReader(payload))
	if err != nil {
		return Token{}, &AuthError{Channel: ch, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		observability.UpstreamAuth.WithLabelValues(ch.String(), "transport").Inc()
		return Token{}, &TransportError{Op: "authenticate", Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		observability.UpstreamAuth.WithLabelValues(ch.String(), "transport").Inc()
		return Token{}, &TransportError{Op: "authenticate", Err: err}
	}
	if !success(resp.StatusCode) {
		observability.UpstreamAuth.WithLabelValues(ch.String(), "rejected").Inc()
		log.Warn().Str("channel", ch.String()).Int("status", resp.StatusCode).Msg("upstream authentication rejected")
		return Token{}, &AuthError{Channel: ch, Status: resp.StatusCode, Body: truncate(body)}
	}

	var out authResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		observability.UpstreamAuth.WithLabelValues(ch.String(), "malformed").Inc()
		return Token{}, &AuthError{Channel: ch, Status: resp.StatusCode, Body: truncate(body), Err: ErrMalformedToken}
	}
	observability.UpstreamAuth.WithLabelValues(ch.String(), "ok").Inc()

	tok := Token{Value: out.Token}
	if out.Expires > 0 {
		tok.ExpiresAt = time.Unix(out.Expires, 0)
	}
	return tok, nil
}
