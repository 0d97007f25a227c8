// Package query composes client filter and pagination state into upstream requests.
package query

import (
	"sort"
	"strings"
	"time"

	"affiliate-gateway/internal/upstream"
)

const DateLayout = "2006-01-02"

// DateRange is an inclusive day range.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (d DateRange) Validate() error {
	if d.From.IsZero() || d.To.IsZero() {
		return &upstream.ValidationError{Err: upstream.ErrDateRangeRequired}
	}
	if d.From.After(d.To) {
		return &upstream.ValidationError{Err: upstream.ErrInvalidDateRange}
	}
	return nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &upstream.ValidationError{Err: upstream.ErrInvalidInput, Detail: "bad date " + s}
	}
	return t, nil
}

// ParseRange builds an optional DateRange: both empty gives nil, one empty is an error.
func ParseRange(from, to string) (*DateRange, error) {
	f, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	if f.IsZero() && t.IsZero() {
		return nil, nil
	}
	dr := &DateRange{From: f, To: t}
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	return dr, nil
}

// FilterState is the client-side filter shared by campaign and keyword listings.
type FilterState struct {
	Statuses  []upstream.CampaignStatus
	DateRange *DateRange
	Countries []string
	Offers    []upstream.ID
	Channel   upstream.Channel
}

// ParseStatuses turns raw state names into a deduplicated, sorted status set.
func ParseStatuses(raw []string) ([]upstream.CampaignStatus, error) {
	seen := map[upstream.CampaignStatus]struct{}{}
	out := make([]upstream.CampaignStatus, 0, len(raw))
	for _, s := range raw {
		st, err := upstream.ParseStatus(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[st]; dup {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func dedupe[T ~string](in []T, norm func(T) T) []T {
	seen := map[T]struct{}{}
	out := make([]T, 0, len(in))
	for _, v := range in {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CampaignQuery builds the campaign listing request for f and p.
func CampaignQuery(f FilterState, p Pagination) (upstream.ListCampaignsInput, error) {
	if len(f.Statuses) == 0 {
		return upstream.ListCampaignsInput{}, &upstream.ValidationError{Err: upstream.ErrNoStatesSelected}
	}
	if err := p.Validate(); err != nil {
		return upstream.ListCampaignsInput{}, err
	}
	in := upstream.ListCampaignsInput{
		States:  f.Statuses,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Channel: f.Channel,
	}
	if f.DateRange != nil {
		if err := f.DateRange.Validate(); err != nil {
			return upstream.ListCampaignsInput{}, err
		}
		from, to := f.DateRange.From, f.DateRange.To
		in.From, in.To = &from, &to
	}
	return in, nil
}

// KeywordQuery builds the keyword statistics request for f. The date range is mandatory.
func KeywordQuery(f FilterState, identity string) (upstream.KeywordStatsInput, error) {
	if f.DateRange == nil {
		return upstream.KeywordStatsInput{}, &upstream.ValidationError{Err: upstream.ErrDateRangeRequired}
	}
	if err := f.DateRange.Validate(); err != nil {
		return upstream.KeywordStatsInput{}, err
	}
	return upstream.KeywordStatsInput{
		From:         f.DateRange.From,
		To:           f.DateRange.To,
		Identity:     strings.TrimSpace(identity),
		CountryCodes: dedupe(f.Countries, func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }),
		OfferIDs:     dedupe(f.Offers, func(id upstream.ID) upstream.ID { return upstream.ID(strings.TrimSpace(string(id))) }),
		Channel:      f.Channel,
	}, nil
}
