package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/query"
	"affiliate-gateway/internal/storage"
	"affiliate-gateway/internal/upstream"
)

func (h *Handler) listCampaigns(r *http.Request) (any, error) {
	var req listCampaignsRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	statuses, err := query.ParseStatuses(req.States)
	if err != nil {
		return nil, err
	}
	dr, err := query.ParseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	// total is what the client saw last; an offset past it is rejected before the upstream call
	p := query.NewPagination(req.Limit, req.Offset)
	p.Total = req.Total
	in, err := query.CampaignQuery(query.FilterState{
		Statuses:  statuses,
		DateRange: dr,
		Channel:   upstream.ChannelFromFlag(req.IsFacebook),
	}, p)
	if err != nil {
		return nil, err
	}

	page, err := h.Ops.ListCampaigns(r.Context(), in)
	if err != nil {
		return nil, err
	}
	cur := query.FromUpstream(page.Pagination)
	if cur.Limit == 0 {
		cur.Limit, cur.Offset = in.Limit, in.Offset
	}
	return campaignPageResponse{CampaignPage: page, Navigation: navigationFor(cur)}, nil
}

func (h *Handler) createCampaign(r *http.Request) (any, error) {
	var req createCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	camp, err := h.Ops.CreateCampaign(r.Context(), upstream.CreateCampaignInput{
		CountryCode:  strings.ToUpper(strings.TrimSpace(req.CountryID)),
		OfferID:      req.OfferID,
		Name:         strings.TrimSpace(req.Name),
		TargetDomain: strings.TrimSpace(req.TargetDomain),
		UserID:       strings.TrimSpace(req.UserID),
		Channel:      upstream.ChannelFromFlag(req.IsFacebook),
	})
	var perr *upstream.PersistenceError
	if errors.As(err, &perr) {
		// the campaign exists upstream; hand its id back so the caller can reconcile
		return camp, err
	}
	if err != nil {
		return nil, err
	}
	return camp, nil
}

func (h *Handler) getKeywords(r *http.Request) (any, error) {
	id := upstream.ID(strings.TrimSpace(r.URL.Query().Get("campaign_id")))
	kws, err := h.Ops.FetchKeywordSuggestions(r.Context(), id, upstream.ChannelFromFlag(boolParam(r, "isFacebook")))
	if err != nil {
		return nil, err
	}
	return kws, nil
}

func (h *Handler) saveKeywords(r *http.Request) (any, error) {
	var req saveKeywordsRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	ack, err := h.Ops.SaveKeywordSuggestions(r.Context(), upstream.SaveKeywordsInput{
		CampaignID: req.CampaignID,
		Keywords:   req.Keywords,
		Amount:     req.Amount,
		Channel:    upstream.ChannelFromFlag(req.IsFacebook),
	})
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (h *Handler) getPixel(r *http.Request) (any, error) {
	id := upstream.ID(strings.TrimSpace(r.URL.Query().Get("campaign_id")))
	cfg, found, err := h.Ops.FetchPixelConfig(r.Context(), id, upstream.ChannelFromFlag(boolParam(r, "isFacebook")))
	if err != nil {
		return nil, err
	}
	if !found {
		return dataResponse{Data: nil}, nil
	}
	return dataResponse{Data: cfg}, nil
}

func (h *Handler) savePixel(r *http.Request) (any, error) {
	var req savePixelRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	ack, err := h.Ops.SavePixelConfig(r.Context(), upstream.SavePixelInput{
		CampaignID:  req.CampaignID,
		PixelID:     strings.TrimSpace(req.PixelID),
		AccessToken: strings.TrimSpace(req.AccessToken),
		RevenueType: req.RevenueType,
		EventName:   req.EventName,
		Channel:     upstream.ChannelFromFlag(req.IsFacebook),
	})
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (h *Handler) invokePixel(r *http.Request) (any, error) {
	var req invokePixelRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	res, err := h.Ops.InvokePixel(r.Context(), upstream.InvokePixelInput{
		CampaignID: req.CampaignID,
		TestToken:  strings.TrimSpace(req.Token),
		Channel:    upstream.ChannelFromFlag(req.IsFacebook),
	})
	var lerr *upstream.LogicalError
	if errors.As(err, &lerr) {
		return res, err
	}
	if err != nil {
		return nil, err
	}
	return dataResponse{Data: res}, nil
}

func (h *Handler) countries(r *http.Request) (any, error) {
	list, err := h.Ops.FetchCountries(r.Context(), upstream.ChannelFromFlag(boolParam(r, "isFacebook")))
	if err != nil {
		return nil, err
	}
	return dataResponse{Data: list}, nil
}

func (h *Handler) offers(r *http.Request) (any, error) {
	list, err := h.Ops.FetchOffers(r.Context(), upstream.ChannelFromFlag(boolParam(r, "isFacebook")))
	if err != nil {
		return nil, err
	}
	return dataResponse{Data: list}, nil
}

func (h *Handler) keywordStats(r *http.Request) (any, error) {
	var req keywordStatsRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	dr, err := query.ParseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	in, err := query.KeywordQuery(query.FilterState{
		DateRange: dr,
		Countries: req.CountryCodes,
		Offers:    req.OfferIDs,
		Channel:   upstream.ChannelFromFlag(req.IsFacebook),
	}, h.identity(r, req.Username))
	if err != nil {
		return nil, err
	}

	var p query.Pagination
	if req.Limit != 0 || req.Offset != 0 {
		p = query.NewPagination(req.Limit, req.Offset)
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	list, err := h.Ops.FetchKeywordStatistics(r.Context(), in)
	if err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		return dataResponse{Data: list}, nil
	}
	page, p := query.Paginate(list, p)
	return dataResponse{Data: page, Pagination: &p}, nil
}

// identity falls back to the profile username of the bearer session when the
// request names none.
func (h *Handler) identity(r *http.Request, username string) string {
	if username = strings.TrimSpace(username); username != "" {
		return username
	}
	if h.Sessions == nil || h.Profiles == nil {
		return ""
	}
	s, err := h.Sessions.FromRequest(r)
	if err != nil {
		return ""
	}
	p, err := h.Profiles.GetProfile(r.Context(), s.UserID)
	if err != nil {
		if !errors.Is(err, storage.ErrProfileNotFound) {
			log.Warn().Err(err).Str("user_id", s.UserID.String()).Msg("profile lookup failed")
		}
		return ""
	}
	return p.Username
}
