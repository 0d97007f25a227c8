package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"affiliate-gateway/internal/stats"
)

// KeywordStatsInput scopes a keyword report. From and To are mandatory.
type KeywordStatsInput struct {
	From         time.Time
	To           time.Time
	Identity     string
	CountryCodes []string
	OfferIDs     []ID
	Channel      Channel
}

func (in KeywordStatsInput) validate() error {
	if in.From.IsZero() || in.To.IsZero() {
		return invalid(ErrDateRangeRequired, "")
	}
	if in.From.After(in.To) {
		return invalid(ErrInvalidDateRange, "")
	}
	if !in.Channel.valid() {
		return invalid(ErrUnknownChannel, in.Channel.String())
	}
	return nil
}

type keywordRow struct {
	Keyword      string          `json:"keyword"`
	CampaignID   ID              `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	Country      string          `json:"country"`
	OfferID      ID              `json:"offer_id"`
	Offer        string          `json:"offer"`
	Clicks       int64           `json:"clicks"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// FetchKeywordStatistics fetches the keyword report for the range and aggregates it
// per keyword. Country and offer filters are sent upstream and applied again locally.
func (c *Client) FetchKeywordStatistics(ctx context.Context, in KeywordStatsInput) ([]stats.KeywordStat, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("from", in.From.Format(dateLayout))
	q.Set("to", in.To.Format(dateLayout))
	if id := strings.TrimSpace(in.Identity); id != "" {
		q.Set("username", id)
	}
	filter := stats.Filter{}
	for _, cc := range in.CountryCodes {
		q.Add("countries[]", cc)
		filter.Countries = append(filter.Countries, cc)
	}
	for _, o := range in.OfferIDs {
		q.Add("offers[]", string(o))
		filter.Offers = append(filter.Offers, string(o))
	}

	var rows []keywordRow
	err := c.do(ctx, in.Channel, request{
		resource: "reports.keywords",
		method:   http.MethodGet,
		path:     pathKeywordsReport,
		query:    q,
	}, &rows)
	if err != nil {
		return nil, err
	}

	reportRows := make([]stats.Row, 0, len(rows))
	for _, r := range rows {
		reportRows = append(reportRows, stats.Row{
			Keyword:      r.Keyword,
			CampaignID:   string(r.CampaignID),
			CampaignName: r.CampaignName,
			CountryCode:  r.Country,
			OfferID:      string(r.OfferID),
			OfferName:    r.Offer,
			Clicks:       r.Clicks,
			Revenue:      r.Revenue,
		})
	}
	return stats.Aggregate(reportRows, filter), nil
}
