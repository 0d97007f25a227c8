package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Keyword amount bounds accepted when saving.
const (
	MinKeywordAmount = 3
	MaxKeywordAmount = 10
)

// FetchKeywordSuggestions reads the keyword configuration of a campaign.
func (c *Client) FetchKeywordSuggestions(ctx context.Context, campaignID ID, ch Channel) (KeywordSuggestions, error) {
	if campaignID == "" {
		return KeywordSuggestions{}, invalid(ErrMissingFields, "CampaignID")
	}
	if !ch.valid() {
		return KeywordSuggestions{}, invalid(ErrUnknownChannel, ch.String())
	}

	var out KeywordSuggestions
	err := c.do(ctx, ch, request{
		resource: "keywords.get",
		method:   http.MethodGet,
		path:     pathKeywords,
		query:    url.Values{"campaign_id": {string(campaignID)}},
	}, &out)
	if err != nil {
		return KeywordSuggestions{}, err
	}
	out.CampaignID = campaignID
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return out, nil
}

// SaveKeywordsInput is a keyword configuration write. Empty keyword slots are
// dropped and left for the upstream API to auto-fill.
type SaveKeywordsInput struct {
	CampaignID ID `validate:"required"`
	Keywords   []string
	Amount     int
	Channel    Channel
}

// FilterKeywords trims keywords and drops empty slots, keeping order.
func FilterKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func (in SaveKeywordsInput) validate() ([]string, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	if !in.Channel.valid() {
		return nil, invalid(ErrUnknownChannel, in.Channel.String())
	}
	if in.Amount < MinKeywordAmount || in.Amount > MaxKeywordAmount {
		return nil, invalid(ErrKeywordAmount, fmt.Sprintf("got %d, want %d-%d", in.Amount, MinKeywordAmount, MaxKeywordAmount))
	}
	kws := FilterKeywords(in.Keywords)
	if len(kws) > in.Amount {
		return nil, invalid(ErrTooManyKeywords, fmt.Sprintf("%d keywords for amount %d", len(kws), in.Amount))
	}
	return kws, nil
}

type saveKeywordsPayload struct {
	CampaignID ID       `json:"campaign_id"`
	Keywords   []string `json:"keywords"`
	Amount     int      `json:"keyword_amount"`
}

// SaveKeywordSuggestions writes the keyword configuration of a campaign.
func (c *Client) SaveKeywordSuggestions(ctx context.Context, in SaveKeywordsInput) (Ack, error) {
	kws, err := in.validate()
	if err != nil {
		return Ack{}, err
	}

	var ack rawAck
	err = c.do(ctx, in.Channel, request{
		resource: "keywords.save",
		method:   http.MethodPost,
		path:     pathKeywords,
		body:     saveKeywordsPayload{CampaignID: in.CampaignID, Keywords: kws, Amount: in.Amount},
	}, &ack)
	if err != nil {
		return Ack{}, err
	}
	return ack.ack("keywords saved"), nil
}
