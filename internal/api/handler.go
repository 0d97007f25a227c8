package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/authz"
	"affiliate-gateway/internal/observability"
	"affiliate-gateway/internal/stats"
	"affiliate-gateway/internal/storage"
	"affiliate-gateway/internal/upstream"
)

const maxRequestBody = 1 << 20

// Operations is the set of upstream proxy operations behind the gateway.
type Operations interface {
	ListCampaigns(ctx context.Context, in upstream.ListCampaignsInput) (upstream.CampaignPage, error)
	CreateCampaign(ctx context.Context, in upstream.CreateCampaignInput) (upstream.Campaign, error)
	FetchKeywordSuggestions(ctx context.Context, campaignID upstream.ID, ch upstream.Channel) (upstream.KeywordSuggestions, error)
	SaveKeywordSuggestions(ctx context.Context, in upstream.SaveKeywordsInput) (upstream.Ack, error)
	FetchPixelConfig(ctx context.Context, campaignID upstream.ID, ch upstream.Channel) (upstream.PixelConfig, bool, error)
	SavePixelConfig(ctx context.Context, in upstream.SavePixelInput) (upstream.Ack, error)
	InvokePixel(ctx context.Context, in upstream.InvokePixelInput) (upstream.InvokeResult, error)
	FetchCountries(ctx context.Context, ch upstream.Channel) ([]upstream.Country, error)
	FetchOffers(ctx context.Context, ch upstream.Channel) ([]upstream.Offer, error)
	FetchKeywordStatistics(ctx context.Context, in upstream.KeywordStatsInput) ([]stats.KeywordStat, error)
}

type Handler struct {
	Ops      Operations
	Sessions *authz.TokenParser
	Router   *authz.Router
	Profiles storage.Profiles
	Records  storage.Records
	Bus      *authz.Bus

	closing   chan struct{}
	closeOnce sync.Once
}

func NewHandler(ops Operations, sessions *authz.TokenParser, router *authz.Router, profiles storage.Profiles, records storage.Records, bus *authz.Bus) *Handler {
	return &Handler{
		Ops:      ops,
		Sessions: sessions,
		Router:   router,
		Profiles: profiles,
		Records:  records,
		Bus:      bus,
		closing:  make(chan struct{}),
	}
}

// CloseStreams ends every open session stream. Streams opened afterwards end
// right away. Safe to call more than once.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// operation runs one gateway action. A non-nil result returned together with an
// error is sent as "data" next to the error message.
type operation func(r *http.Request) (any, error)

type errorBody struct {
	Error string `json:"error"`
	Data  any    `json:"data,omitempty"`
}

// statusError carries a status outside the proxy taxonomy (session endpoints).
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// preflight answers OPTIONS requests with an empty 200.
func preflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w.Header())
	w.WriteHeader(http.StatusOK)
}

// Dispatch wraps op with CORS, JSON encoding and error translation. Nothing
// escapes without the {error} envelope, panics included.
func (h *Handler) Dispatch(name string, op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w.Header())
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Str("operation", name).Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("operation panicked")
				observability.OperationErrors.WithLabelValues(name, "panic").Inc()
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()

		res, err := op(r)
		if err != nil {
			status := statusOf(err)
			kind := errorKind(err)
			observability.OperationErrors.WithLabelValues(name, kind).Inc()
			ev := log.Warn()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Err(err).
				Str("operation", name).
				Str("kind", kind).
				Int("status", status).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("took", time.Since(start)).
				Msg("operation failed")
			writeJSON(w, status, errorBody{Error: err.Error(), Data: res})
			return
		}

		log.Info().
			Str("operation", name).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("operation ok")
		writeJSON(w, http.StatusOK, res)
	}
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return upstream.HTTPStatus(err)
}

func errorKind(err error) string {
	var (
		verr *upstream.ValidationError
		aerr *upstream.AuthError
		uerr *upstream.UpstreamError
		terr *upstream.TransportError
		lerr *upstream.LogicalError
		perr *upstream.PersistenceError
		serr *statusError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &lerr):
		return "logical"
	case errors.As(err, &aerr):
		return "auth"
	case errors.As(err, &uerr):
		return "upstream"
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &perr):
		return "persistence"
	case errors.As(err, &serr):
		return "session"
	default:
		return "internal"
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &upstream.ValidationError{Err: upstream.ErrMalformedBody, Detail: "empty body"}
		}
		return &upstream.ValidationError{Err: upstream.ErrMalformedBody, Detail: err.Error()}
	}
	return nil
}

func boolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
