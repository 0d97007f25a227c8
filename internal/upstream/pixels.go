package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// FetchPixelConfig reads the pixel of a campaign for ch. found is false when the
// campaign has no pixel on that channel.
func (c *Client) FetchPixelConfig(ctx context.Context, campaignID ID, ch Channel) (cfg PixelConfig, found bool, err error) {
	if campaignID == "" {
		return PixelConfig{}, false, invalid(ErrMissingFields, "CampaignID")
	}
	if !ch.valid() {
		return PixelConfig{}, false, invalid(ErrUnknownChannel, ch.String())
	}

	var raw json.RawMessage
	err = c.do(ctx, ch, request{
		resource: "pixel.get",
		method:   http.MethodGet,
		path:     pathPixel,
		query:    url.Values{"campaign_id": {string(campaignID)}},
	}, &raw)
	if err != nil {
		return PixelConfig{}, false, err
	}

	pixels, err := decodePixels(raw)
	if err != nil {
		return PixelConfig{}, false, &UpstreamError{Resource: "pixel.get", Status: http.StatusOK, Body: truncate(raw), Err: err}
	}
	source := ch.variant().pixelSource
	for _, p := range pixels {
		if p.Source == source {
			p.CampaignID = campaignID
			return p, true, nil
		}
	}
	// a lone pixel without a source belongs to the channel it was requested on
	if len(pixels) == 1 && pixels[0].Source == "" {
		p := pixels[0]
		p.CampaignID = campaignID
		p.Source = source
		return p, true, nil
	}
	return PixelConfig{}, false, nil
}

// decodePixels accepts a list, a single object, or null.
func decodePixels(raw json.RawMessage) ([]PixelConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []PixelConfig
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var one PixelConfig
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []PixelConfig{one}, nil
}

// SavePixelInput is a pixel write. RevenueType belongs to the generic channel and
// EventName to the social channel; the other field is ignored.
type SavePixelInput struct {
	CampaignID  ID     `validate:"required"`
	PixelID     string `validate:"required"`
	AccessToken string `validate:"required"`
	RevenueType string
	EventName   string
	Channel     Channel
}

type tiktokPixelPayload struct {
	CampaignID  ID     `json:"campaign_id"`
	PixelID     string `json:"pixel_id"`
	AccessToken string `json:"access_token"`
	RevenueType string `json:"revenue_type,omitempty"`
}

type facebookPixelPayload struct {
	CampaignID  ID     `json:"campaign_id"`
	PixelID     string `json:"pixel_id"`
	AccessToken string `json:"access_token"`
	EventName   string `json:"event_name,omitempty"`
}

// SavePixelConfig writes the pixel of a campaign. The channel picks the credential
// pair, the sub-resource and the payload shape together.
func (c *Client) SavePixelConfig(ctx context.Context, in SavePixelInput) (Ack, error) {
	if err := check(in); err != nil {
		return Ack{}, err
	}

	var body any
	switch in.Channel {
	case Generic:
		body = tiktokPixelPayload{
			CampaignID:  in.CampaignID,
			PixelID:     in.PixelID,
			AccessToken: in.AccessToken,
			RevenueType: in.RevenueType,
		}
	case Social:
		body = facebookPixelPayload{
			CampaignID:  in.CampaignID,
			PixelID:     in.PixelID,
			AccessToken: in.AccessToken,
			EventName:   in.EventName,
		}
	default:
		return Ack{}, invalid(ErrUnknownChannel, in.Channel.String())
	}

	var ack rawAck
	err := c.do(ctx, in.Channel, request{
		resource: "pixel.save",
		method:   http.MethodPost,
		path:     in.Channel.variant().pixelPath,
		body:     body,
	}, &ack)
	if err != nil {
		return Ack{}, err
	}
	return ack.ack("pixel saved"), nil
}

// InvokePixelInput fires a test conversion through the campaign pixel.
type InvokePixelInput struct {
	CampaignID ID     `validate:"required"`
	TestToken  string `validate:"required"`
	Channel    Channel
}

type invokePixelPayload struct {
	CampaignID ID     `json:"campaign_id"`
	Token      string `json:"token"`
}

// InvokePixel triggers a test invocation. A 2xx response whose body reports
// success=false is returned together with a *LogicalError.
func (c *Client) InvokePixel(ctx context.Context, in InvokePixelInput) (InvokeResult, error) {
	if err := check(in); err != nil {
		return InvokeResult{}, err
	}
	if !in.Channel.valid() {
		return InvokeResult{}, invalid(ErrUnknownChannel, in.Channel.String())
	}

	var res InvokeResult
	err := c.do(ctx, in.Channel, request{
		resource: "pixel.invoke",
		method:   http.MethodPost,
		path:     pathPixelInvoke,
		body:     invokePixelPayload{CampaignID: in.CampaignID, Token: in.TestToken},
	}, &res)
	if err != nil {
		return InvokeResult{}, err
	}
	if !res.Success {
		return res, &LogicalError{Message: res.Message}
	}
	return res, nil
}

// rawAck captures an upstream write response whatever its shape.
type rawAck struct {
	raw json.RawMessage
}

func (a *rawAck) UnmarshalJSON(b []byte) error {
	a.raw = append(a.raw[:0], b...)
	return nil
}

func (a rawAck) ack(fallback string) Ack {
	out := Ack{Data: a.raw, Message: fallback}
	var withMsg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(a.raw, &withMsg) == nil && withMsg.Message != "" {
		out.Message = withMsg.Message
	}
	return out
}
