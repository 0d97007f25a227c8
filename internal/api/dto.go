package api

import (
	"affiliate-gateway/internal/query"
	"affiliate-gateway/internal/upstream"
)

type listCampaignsRequest struct {
	States     []string `json:"states"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
	Total      int      `json:"total"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	IsFacebook bool     `json:"isFacebook"`
}

type createCampaignRequest struct {
	CountryID    string      `json:"countryId"`
	OfferID      upstream.ID `json:"offerId"`
	Name         string      `json:"name"`
	TargetDomain string      `json:"targetDomain"`
	UserID       string      `json:"userId"`
	IsFacebook   bool        `json:"isFacebook"`
}

type saveKeywordsRequest struct {
	CampaignID upstream.ID `json:"campaign_id"`
	Keywords   []string    `json:"keywords"`
	Amount     int         `json:"keyword_amount"`
	IsFacebook bool        `json:"isFacebook"`
}

type savePixelRequest struct {
	CampaignID  upstream.ID `json:"campaign_id"`
	PixelID     string      `json:"pixel_id"`
	AccessToken string      `json:"access_token"`
	RevenueType string      `json:"revenue_type"`
	EventName   string      `json:"event_name"`
	IsFacebook  bool        `json:"isFacebook"`
}

type invokePixelRequest struct {
	CampaignID upstream.ID `json:"campaign_id"`
	Token      string      `json:"token"`
	IsFacebook bool        `json:"isFacebook"`
}

type keywordStatsRequest struct {
	From         string        `json:"from"`
	To           string        `json:"to"`
	Username     string        `json:"username"`
	CountryCodes []string      `json:"countryCodes"`
	OfferIDs     []upstream.ID `json:"offerIds"`
	IsFacebook   bool          `json:"isFacebook"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

type resolveRequest struct {
	Surface string `json:"surface"`
}

type profileRequest struct {
	Platforms    []string `json:"platforms"`
	Username     string   `json:"username"`
	PasswordText string   `json:"password_text"`
}

type dataResponse struct {
	Data       any               `json:"data"`
	Pagination *query.Pagination `json:"pagination,omitempty"`
}

// campaignPageResponse is the upstream page plus ready-made paging for the next call.
type campaignPageResponse struct {
	upstream.CampaignPage
	Navigation navigation `json:"navigation"`
}

type navigation struct {
	Page    int              `json:"page"`
	Pages   int              `json:"pages"`
	HasNext bool             `json:"has_next"`
	HasPrev bool             `json:"has_prev"`
	Next    query.Pagination `json:"next"`
	Prev    query.Pagination `json:"prev"`
}

func navigationFor(p query.Pagination) navigation {
	return navigation{
		Page:    p.Page(),
		Pages:   p.Pages(),
		HasNext: p.HasNext(),
		HasPrev: p.HasPrev(),
		Next:    p.Next(),
		Prev:    p.Prev(),
	}
}
