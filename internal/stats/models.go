package stats

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Row is one upstream report line: a keyword on one campaign for the date range.
type Row struct {
	Keyword      string
	CampaignID   string
	CampaignName string
	CountryCode  string
	OfferID      string
	OfferName    string
	Clicks       int64
	Revenue      decimal.Decimal
}

// KeywordStat aggregates every row sharing a keyword.
type KeywordStat struct {
	Keyword   string          `json:"keyword"`
	Campaigns []string        `json:"campaigns"`
	Countries []string        `json:"countries"`
	Offers    []string        `json:"offers"`
	Clicks    int64           `json:"clicks"`
	Revenue   decimal.Decimal `json:"revenue"`
	RPC       decimal.Decimal `json:"rpc"`
}

// MarshalJSON writes revenue and rpc as JSON numbers.
func (k KeywordStat) MarshalJSON() ([]byte, error) {
	type plain KeywordStat
	return json.Marshal(struct {
		plain
		Revenue json.Number `json:"revenue"`
		RPC     json.Number `json:"rpc"`
	}{
		plain:   plain(k),
		Revenue: json.Number(k.Revenue.String()),
		RPC:     json.Number(k.RPC.String()),
	})
}

// Filter restricts aggregation to rows in any of the listed countries and offers.
// An empty list does not restrict.
type Filter struct {
	Countries []string
	Offers    []string
}
