package upstream

import (
	"context"
	"net/http"
	"net/url"
)

// FetchCountries returns the country catalog. Each call authenticates on its own.
func (c *Client) FetchCountries(ctx context.Context, ch Channel) ([]Country, error) {
	if !ch.valid() {
		return nil, invalid(ErrUnknownChannel, ch.String())
	}
	var out []Country
	err := c.do(ctx, ch, request{
		resource: "countries.list",
		method:   http.MethodGet,
		path:     pathCountries,
		query:    url.Values{"output": {"json"}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Country{}
	}
	return out, nil
}

// FetchOffers returns the offer catalog. Each call authenticates on its own.
func (c *Client) FetchOffers(ctx context.Context, ch Channel) ([]Offer, error) {
	if !ch.valid() {
		return nil, invalid(ErrUnknownChannel, ch.String())
	}
	var out []Offer
	err := c.do(ctx, ch, request{
		resource: "offers.list",
		method:   http.MethodGet,
		path:     pathOffers,
		query:    url.Values{"output": {"json"}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Offer{}
	}
	return out, nil
}
