package stats

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleRows() []Row {
	return []Row{
		{Keyword: "Car Insurance", CampaignID: "1", CampaignName: "Autos", CountryCode: "us", OfferID: "7", OfferName: "Insure", Clicks: 10, Revenue: d("5.50")},
		{Keyword: "car insurance ", CampaignID: "2", CampaignName: "", CountryCode: "DE", OfferID: "7", OfferName: "Insure", Clicks: 5, Revenue: d("2")},
		{Keyword: "loans", CampaignID: "3", CampaignName: "Money", CountryCode: "US", OfferID: "9", OfferName: "Loans", Clicks: 3, Revenue: d("1")},
		{Keyword: "   ", CampaignID: "4", CountryCode: "US", OfferID: "9", Clicks: 100, Revenue: d("50")},
		{Keyword: "boats", CampaignID: "5", CampaignName: "Water", CountryCode: "FR", OfferID: "11", OfferName: "Marine", Clicks: 0, Revenue: d("1")},
	}
}

func TestAggregate_GroupsCaseInsensitively(t *testing.T) {
	got := Aggregate(sampleRows(), Filter{})
	require.Len(t, got, 3)

	top := got[0]
	assert.Equal(t, "Car Insurance", top.Keyword)
	assert.Equal(t, int64(15), top.Clicks)
	assert.True(t, top.Revenue.Equal(d("7.5")))
	assert.True(t, top.RPC.Equal(d("0.5")))
	assert.Equal(t, []string{"2", "Autos"}, top.Campaigns)
	assert.Equal(t, []string{"DE", "US"}, top.Countries)
	assert.Equal(t, []string{"Insure"}, top.Offers)
}

func TestAggregate_OrderByRevenueThenKeyword(t *testing.T) {
	got := Aggregate(sampleRows(), Filter{})

	var keywords []string
	for _, s := range got {
		keywords = append(keywords, s.Keyword)
	}
	assert.Equal(t, []string{"Car Insurance", "boats", "loans"}, keywords)
	assert.True(t, got[1].RPC.IsZero())
}

func TestAggregate_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"country", Filter{Countries: []string{"us"}}, []string{"Car Insurance", "loans"}},
		{"offer", Filter{Offers: []string{"9"}}, []string{"loans"}},
		{"country and offer", Filter{Countries: []string{"DE", "FR"}, Offers: []string{"7"}}, []string{"car insurance"}},
		{"no match", Filter{Countries: []string{"JP"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range Aggregate(sampleRows(), tt.filter) {
				got = append(got, s.Keyword)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndex_Match(t *testing.T) {
	ix := NewIndex(sampleRows())
	assert.Equal(t, []int{0, 1, 2, 3}, ix.Match(Filter{}))
	assert.Equal(t, []int{0, 2}, ix.Match(Filter{Countries: []string{"US"}}))
	assert.Empty(t, ix.Match(Filter{Offers: []string{"404"}}))
}

func TestKeywordStat_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(KeywordStat{Keyword: "loans", Clicks: 4, Revenue: d("2.50"), RPC: d("0.63")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"keyword":"loans","campaigns":null,"countries":null,"offers":null,"clicks":4,"revenue":2.5,"rpc":0.63}`, string(b))
}

func TestRPC(t *testing.T) {
	assert.True(t, RPC(d("10"), 3).Equal(d("3.33")))
	assert.True(t, RPC(d("10"), 0).IsZero())
}

func BenchmarkAggregate(b *testing.B) {
	rows := make([]Row, 0, 5000)
	for i := 0; i < 5000; i++ {
		rows = append(rows, Row{
			Keyword:     fmt.Sprintf("keyword %d", i%400),
			CampaignID:  fmt.Sprintf("%d", i%50),
			CountryCode: []string{"US", "DE", "FR", "IN"}[i%4],
			OfferID:     fmt.Sprintf("%d", i%12),
			Clicks:      int64(i % 30),
			Revenue:     decimal.New(int64(i%700), -2),
		})
	}
	ix := NewIndex(rows)
	f := Filter{Countries: []string{"US", "IN"}, Offers: []string{"1", "3", "5"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ix.Aggregate(f)
	}
}
