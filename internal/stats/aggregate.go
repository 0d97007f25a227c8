package stats

import (
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Index holds report rows with inverted indexes for fast filter narrowing.
type Index struct {
	rows      []Row
	byCountry map[string][]int
	byOffer   map[string][]int
}

// NewIndex normalizes rows and builds the country and offer indexes.
func NewIndex(rows []Row) *Index {
	ix := &Index{
		rows:      make([]Row, 0, len(rows)),
		byCountry: map[string][]int{},
		byOffer:   map[string][]int{},
	}
	for _, r := range rows {
		r.Keyword = strings.TrimSpace(r.Keyword)
		if r.Keyword == "" {
			continue
		}
		r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))
		r.OfferID = strings.TrimSpace(r.OfferID)

		i := len(ix.rows)
		ix.rows = append(ix.rows, r)
		ix.byCountry[r.CountryCode] = append(ix.byCountry[r.CountryCode], i)
		ix.byOffer[r.OfferID] = append(ix.byOffer[r.OfferID], i)
	}
	return ix
}

// Match returns the indexes of rows passing f, ascending.
func (ix *Index) Match(f Filter) []int {
	cand := newSet(rangeIndices(len(ix.rows)))

	if len(f.Countries) > 0 {
		var hits [][]int
		for _, c := range f.Countries {
			hits = append(hits, ix.byCountry[strings.ToUpper(strings.TrimSpace(c))])
		}
		cand = cand.intersect(newSet(hits...))
	}
	if len(f.Offers) > 0 {
		var hits [][]int
		for _, o := range f.Offers {
			hits = append(hits, ix.byOffer[strings.TrimSpace(o)])
		}
		cand = cand.intersect(newSet(hits...))
	}

	out := cand.list()
	slices.Sort(out)
	return out
}

// Aggregate groups the rows passing f by keyword, case-insensitively. The first
// spelling seen wins. Results are ordered by revenue desc, then keyword.
func (ix *Index) Aggregate(f Filter) []KeywordStat {
	type acc struct {
		stat      KeywordStat
		campaigns map[string]struct{}
		countries map[string]struct{}
		offers    map[string]struct{}
	}
	groups := map[string]*acc{}
	var order []string

	for _, i := range ix.Match(f) {
		r := ix.rows[i]
		key := strings.ToLower(r.Keyword)
		a, ok := groups[key]
		if !ok {
			a = &acc{
				stat:      KeywordStat{Keyword: r.Keyword, Revenue: decimal.Zero},
				campaigns: map[string]struct{}{},
				countries: map[string]struct{}{},
				offers:    map[string]struct{}{},
			}
			groups[key] = a
			order = append(order, key)
		}
		a.stat.Clicks += r.Clicks
		a.stat.Revenue = a.stat.Revenue.Add(r.Revenue)
		addLabel(a.campaigns, r.CampaignName, r.CampaignID)
		addLabel(a.countries, r.CountryCode, "")
		addLabel(a.offers, r.OfferName, r.OfferID)
	}

	out := make([]KeywordStat, 0, len(order))
	for _, key := range order {
		a := groups[key]
		a.stat.Campaigns = sortedKeys(a.campaigns)
		a.stat.Countries = sortedKeys(a.countries)
		a.stat.Offers = sortedKeys(a.offers)
		a.stat.RPC = RPC(a.stat.Revenue, a.stat.Clicks)
		out = append(out, a.stat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}

// Aggregate is NewIndex(rows).Aggregate(f).
func Aggregate(rows []Row, f Filter) []KeywordStat {
	return NewIndex(rows).Aggregate(f)
}

// RPC is revenue per click rounded to cents; zero when there are no clicks.
func RPC(revenue decimal.Decimal, clicks int64) decimal.Decimal {
	if clicks <= 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(clicks)).Round(2)
}

func addLabel(m map[string]struct{}, label, fallback string) {
	if label == "" {
		label = fallback
	}
	if label != "" {
		m[label] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func rangeIndices(n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = i
	}
	return out
}

type set map[int]struct{}

func newSet(lists ...[]int) set {
	s := set{}
	for _, sl := range lists {
		for _, v := range sl {
			s[v] = struct{}{}
		}
	}
	return s
}

func (s set) intersect(other set) set {
	res := set{}
	for k := range s {
		if _, ok := other[k]; ok {
			res[k] = struct{}{}
		}
	}
	return res
}

func (s set) list() []int {
	out := make([]int, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}
