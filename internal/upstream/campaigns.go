package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/storage"
)

const (
	dateLayout = "2006-01-02"

	// recordTimeout bounds the local ownership write after an upstream create.
	recordTimeout = 5 * time.Second
)

// ListCampaignsInput selects one page of campaigns.
type ListCampaignsInput struct {
	States  []CampaignStatus
	Limit   int `validate:"oneof=10 25 50 100"`
	Offset  int `validate:"gte=0"`
	From    *time.Time
	To      *time.Time
	Channel Channel
}

func (in ListCampaignsInput) validate() error {
	if len(in.States) == 0 {
		return invalid(ErrNoStatesSelected, "")
	}
	for _, st := range in.States {
		if _, err := ParseStatus(string(st)); err != nil {
			return err
		}
	}
	if !in.Channel.valid() {
		return invalid(ErrUnknownChannel, in.Channel.String())
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return invalid(ErrInvalidDateRange, "")
	}
	return check(in)
}

// ListCampaigns returns one page of campaigns, always with stats and ordered by
// creation date descending.
func (c *Client) ListCampaigns(ctx context.Context, in ListCampaignsInput) (CampaignPage, error) {
	if err := in.validate(); err != nil {
		return CampaignPage{}, err
	}

	states := make([]string, 0, len(in.States))
	for _, st := range in.States {
		states = append(states, string(st))
	}
	sort.Strings(states)

	q := url.Values{}
	for _, st := range states {
		q.Add("states[]", st)
	}
	q.Set("limit", strconv.Itoa(in.Limit))
	q.Set("offset", strconv.Itoa(in.Offset))
	q.Set("withStats", "true")
	q.Set("orderField", "created")
	q.Set("orderOrientation", "desc")
	if in.From != nil {
		q.Set("from", in.From.Format(dateLayout))
	}
	if in.To != nil {
		q.Set("to", in.To.Format(dateLayout))
	}

	var page CampaignPage
	err := c.do(ctx, in.Channel, request{
		resource: "campaigns.list",
		method:   http.MethodGet,
		path:     pathCampaigns,
		query:    q,
	}, &page)
	if err != nil {
		return CampaignPage{}, err
	}
	if page.Data == nil {
		page.Data = []Campaign{}
	}
	return page, nil
}

// CreateCampaignInput is the data needed to create a campaign upstream and record
// its owner locally.
type CreateCampaignInput struct {
	CountryCode  string `validate:"required"`
	OfferID      ID     `validate:"required"`
	Name         string `validate:"required"`
	TargetDomain string
	UserID       string `validate:"required"`
	Channel      Channel
}

type createCampaignPayload struct {
	Name    string `json:"name"`
	OfferID ID     `json:"offer_id"`
	Country string `json:"country"`
	Domain  string `json:"domain,omitempty"`
}

// CreateCampaign creates the campaign upstream and then records the owner locally.
// A failing local write after a successful upstream create returns *PersistenceError;
// the upstream campaign stays in place. Not safe to retry blindly.
func (c *Client) CreateCampaign(ctx context.Context, in CreateCampaignInput) (Campaign, error) {
	if err := check(in); err != nil {
		return Campaign{}, err
	}
	if !in.Channel.valid() {
		return Campaign{}, invalid(ErrUnknownChannel, in.Channel.String())
	}
	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return Campaign{}, invalid(ErrInvalidInput, "UserID must be a UUID")
	}

	var raw json.RawMessage
	err = c.do(ctx, in.Channel, request{
		resource: "campaigns.create",
		method:   http.MethodPost,
		path:     pathCampaignCreate,
		body: createCampaignPayload{
			Name:    in.Name,
			OfferID: in.OfferID,
			Country: in.CountryCode,
			Domain:  in.TargetDomain,
		},
	}, &raw)
	if err != nil {
		return Campaign{}, err
	}

	created, err := decodeCreated(raw)
	if err != nil {
		return Campaign{}, &UpstreamError{Resource: "campaigns.create", Status: http.StatusOK, Body: truncate(raw), Err: err}
	}
	if created.Name == "" {
		created.Name = in.Name
	}

	if c.recorder != nil {
		rec := storage.CampaignRecord{
			ID:           uuid.New(),
			CampaignID:   string(created.ID),
			UserID:       userID,
			OfferID:      string(in.OfferID),
			CountryCode:  in.CountryCode,
			TargetDomain: in.TargetDomain,
			Channel:      in.Channel.String(),
		}
		// the upstream campaign exists now, so the write outlives the caller
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		err := c.recorder.RecordCampaign(recCtx, rec)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("campaign_id", string(created.ID)).Str("user_id", in.UserID).
				Msg("campaign created upstream but local record failed")
			return created, &PersistenceError{CampaignID: created.ID, Err: err}
		}
	}
	return created, nil
}

// decodeCreated accepts either a campaign object or a bare campaign id.
func decodeCreated(raw json.RawMessage) (Campaign, error) {
	var camp Campaign
	if err := json.Unmarshal(raw, &camp); err == nil && camp.ID != "" {
		return camp, nil
	}
	var id ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return Campaign{}, err
	}
	if id == "" {
		return Campaign{}, ErrNoCampaignID
	}
	return Campaign{ID: id}, nil
}
