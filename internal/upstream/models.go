package upstream

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ID is an upstream identifier. The upstream API sends ids as numbers on some
// resources and as strings on others; both decode into ID.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id %s: %w", b, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// CampaignStatus is the upstream lifecycle state of a campaign.
type CampaignStatus string

const (
	StatusActive  CampaignStatus = "active"
	StatusPending CampaignStatus = "pending"
	StatusStopped CampaignStatus = "stopped"
)

// ParseStatus accepts only the three known states.
func ParseStatus(s string) (CampaignStatus, error) {
	switch st := CampaignStatus(s); st {
	case StatusActive, StatusPending, StatusStopped:
		return st, nil
	default:
		return "", invalid(ErrUnknownState, s)
	}
}

type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Vertical struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Offer struct {
	ID       ID       `json:"id"`
	Name     string   `json:"name"`
	Vertical Vertical `json:"vertical"`
}

type Campaign struct {
	ID           ID              `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Status       CampaignStatus  `json:"status"`
	Country      Country         `json:"country"`
	Offer        Offer           `json:"offer"`
	Views        int64           `json:"views"`
	Clicks       int64           `json:"clicks"`
	Revenue      decimal.Decimal `json:"revenue"`
	RPC          decimal.Decimal `json:"rpc"`
	VTC          decimal.Decimal `json:"vtc"`
	RPMV         decimal.Decimal `json:"rpmv"`
	TrackingLink string          `json:"trackingLink"`
	Imprint      string          `json:"imprint"`
	Created      string          `json:"created"`
}

// MarshalJSON writes the money fields as JSON numbers, the way the upstream API sends them.
func (c Campaign) MarshalJSON() ([]byte, error) {
	type plain Campaign
	return json.Marshal(struct {
		plain
		Revenue json.Number `json:"revenue"`
		RPC     json.Number `json:"rpc"`
		VTC     json.Number `json:"vtc"`
		RPMV    json.Number `json:"rpmv"`
	}{
		plain:   plain(c),
		Revenue: number(c.Revenue),
		RPC:     number(c.RPC),
		VTC:     number(c.VTC),
		RPMV:    number(c.RPMV),
	})
}

func number(d decimal.Decimal) json.Number { return json.Number(d.String()) }

type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type Sorting struct {
	OrderField       string `json:"orderField"`
	OrderOrientation string `json:"orderOrientation"`
}

// CampaignPage is one page of the campaign listing.
type CampaignPage struct {
	Data       []Campaign `json:"data"`
	Pagination Pagination `json:"pagination"`
	Sorting    Sorting    `json:"sorting"`
}

// KeywordSuggestions is the keyword configuration of a campaign.
type KeywordSuggestions struct {
	CampaignID ID       `json:"campaign_id"`
	Amount     int      `json:"keyword_amount"`
	Keywords   []string `json:"keywords"`
}

// PixelConfig is the conversion pixel of one campaign on one channel. Exactly one of
// RevenueType (generic) and EventName (social) is meaningful.
type PixelConfig struct {
	CampaignID  ID     `json:"campaign_id"`
	Source      string `json:"source"`
	PixelID     string `json:"pixel_id"`
	AccessToken string `json:"access_token"`
	RevenueType string `json:"revenue_type,omitempty"`
	EventName   string `json:"event_name,omitempty"`
}

// Ack is the acknowledgement of a write.
type Ack struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
}

// InvokeResult is the body of a pixel test invocation.
type InvokeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
