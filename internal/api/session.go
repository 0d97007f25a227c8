package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"affiliate-gateway/internal/authz"
	"affiliate-gateway/internal/storage"
	"affiliate-gateway/internal/upstream"
)

// resolveSurface evaluates the bearer session against the requested surface.
// A missing or invalid token is an unauthenticated session, not an error.
func (h *Handler) resolveSurface(r *http.Request) (any, error) {
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	surface, err := authz.ParseSurface(req.Surface)
	if err != nil {
		return nil, &upstream.ValidationError{Err: upstream.ErrInvalidInput, Detail: err.Error()}
	}
	s, err := h.Sessions.FromRequest(r)
	if err != nil {
		s = nil
	}
	return h.Router.Evaluate(r.Context(), s, surface), nil
}

func (h *Handler) requireSession(r *http.Request) (*authz.Session, error) {
	s, err := h.Sessions.FromRequest(r)
	if err != nil {
		return nil, &statusError{status: http.StatusUnauthorized, err: err}
	}
	return s, nil
}

func (h *Handler) getProfile(r *http.Request) (any, error) {
	s, err := h.requireSession(r)
	if err != nil {
		return nil, err
	}
	p, err := h.Profiles.GetProfile(r.Context(), s.UserID)
	if errors.Is(err, storage.ErrProfileNotFound) {
		return dataResponse{Data: storage.Profile{UserID: s.UserID, Platforms: []string{}}}, nil
	}
	if err != nil {
		return nil, err
	}
	return dataResponse{Data: p}, nil
}

func (h *Handler) updateProfile(r *http.Request) (any, error) {
	s, err := h.requireSession(r)
	if err != nil {
		return nil, err
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	p := storage.Profile{
		UserID:       s.UserID,
		Platforms:    req.Platforms,
		Username:     req.Username,
		PasswordText: req.PasswordText,
	}
	if p.Platforms == nil {
		p.Platforms = []string{}
	}
	if err := h.Profiles.UpdateProfile(r.Context(), p); err != nil {
		return nil, err
	}
	return dataResponse{Data: p}, nil
}

// myCampaigns lists the local ownership records of the bearer session's user.
func (h *Handler) myCampaigns(r *http.Request) (any, error) {
	s, err := h.requireSession(r)
	if err != nil {
		return nil, err
	}
	recs, err := h.Records.CampaignsForUser(r.Context(), s.UserID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []storage.CampaignRecord{}
	}
	return dataResponse{Data: recs}, nil
}

// watchSurface mounts a guard for the requested surface and streams its decisions
// as server-sent events. Decisions that land between two writes collapse into the
// latest one. The stream ends on the first redirect or once the client leaves.
// CloseStreams ends it as well.
func (h *Handler) watchSurface(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	surface, err := authz.ParseSurface(r.URL.Query().Get("surface"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}
	s, err := h.Sessions.FromRequest(r)
	if err != nil {
		s = nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	changed := make(chan struct{}, 1)
	g := h.Router.Mount(ctx, surface, s, h.Bus, func(authz.Decision) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closing:
			return
		case <-g.Done():
			return
		case <-changed:
			d := g.Decision()
			b, err := json.Marshal(d)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: decision\ndata: %s\n\n", b)
			flusher.Flush()
			if !d.Allowed {
				return
			}
		}
	}
}
