package columns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/termsheet-cli/internal/model"
)

func pyrEvo(productType string, assets ...string) *model.Record {
	return &model.Record{Format: model.FormatPyrEvo, Identifier: "C" + productType, ProductType: productType, Assets: assets}
}

func priip(assets ...string) *model.Record {
	return &model.Record{Format: model.FormatPRIIP, Identifier: "XS", ProductType: "Phoenix", Assets: assets}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		records []*model.Record
		want    Policy
	}{
		{
			name:    "empty set",
			records: nil,
			want:    Policy{IDTitle: TitleMixed, IDKey: model.KeyIdentifier},
		},
		{
			name:    "family A only",
			records: []*model.Record{pyrEvo("RC", "SPX", "RTY")},
			want: Policy{
				IDTitle: TitleCUSIP, IDKey: model.KeyPrimaryCode,
				ShowSecondaryCode: true, ShowExtendedCouponCall: true, ShowDocType: true,
				AssetColumns: 2,
			},
		},
		{
			name:    "family B only",
			records: []*model.Record{priip("SX5E")},
			want: Policy{
				IDTitle: TitleISIN, IDKey: model.KeyIdentifier,
				ShowProgramme: true, AssetColumns: 1,
			},
		},
		{
			name:    "mixed",
			records: []*model.Record{priip("SX5E", "SPX", "NDX"), pyrEvo("BREN", "SPX")},
			want: Policy{
				IDTitle: TitleMixed, IDKey: model.KeyPrimaryCode,
				ShowSecondaryCode: true, ShowExtendedCouponCall: true, ShowDocType: true,
				ShowCappedUncapped: true, ShowProgramme: true, AssetColumns: 3,
			},
		},
		{
			name:    "nil records ignored",
			records: []*model.Record{nil, pyrEvo("REN")},
			want: Policy{
				IDTitle: TitleCUSIP, IDKey: model.KeyPrimaryCode,
				ShowSecondaryCode: true, ShowExtendedCouponCall: true, ShowDocType: true,
				ShowCappedUncapped: true,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Decide(tt.records))
		})
	}
}

func TestLayout_FullPolicy(t *testing.T) {
	t.Parallel()

	p := Decide([]*model.Record{priip("SX5E", "SPX"), pyrEvo("BREN")})
	headers := Layout(p)

	var titles []string
	for _, h := range headers {
		titles = append(titles, h.Title)
	}
	assert.Equal(t, []string{
		TitleMixed, TitleISIN, "Underlying", "Product Details", "Coupons", "CALL",
		"Details", "DATES IN BOOKINGS", "Doc Type",
	}, titles)

	assert.Equal(t, []string{
		model.KeyPrimaryCode, model.KeySecondaryCode,
		model.KeyUnderlyingAssetType, "asset_0", "asset_1",
		model.KeyProductType, model.KeyProductClient, model.KeyProductTenor,
		model.KeyCouponFrequency, model.KeyCouponBarrierLevel, model.KeyCouponMemory, model.KeyCouponRateAnnualised,
		model.KeyCallFrequency, model.KeyCallNonCallPeriod, model.KeyCallMonitoringType,
		model.KeyUpsideCap, model.KeyUpsideLeverage, model.KeyCappedUncapped,
		model.KeyBufferKIBarrier, model.KeyBufferBarrierLevel, model.KeyInterestBarrierTrigger,
		model.KeyProgrammeName, model.KeyJurisdiction,
		model.KeyStrikeDate, model.KeyPricingDate, model.KeyMaturityDate, model.KeyValuationDate, model.KeyEarlyStrike,
		model.KeyTermSheet, model.KeyFinalPS, model.KeyFactSheet,
	}, Keys(headers))

	underlying := headers[2]
	require.True(t, underlying.IsGroup())
	assert.Equal(t, "Asset 1", underlying.Children[1].Title)
	assert.Equal(t, "Asset 2", underlying.Children[2].Title)
}

func TestLayout_MinimalPolicy(t *testing.T) {
	t.Parallel()

	headers := Layout(Decide([]*model.Record{priip("SX5E")}))
	keys := Keys(headers)

	assert.Equal(t, model.KeyIdentifier, keys[0])
	assert.NotContains(t, keys, model.KeySecondaryCode)
	assert.NotContains(t, keys, model.KeyCouponRateAnnualised)
	assert.NotContains(t, keys, model.KeyCallMonitoringType)
	assert.NotContains(t, keys, model.KeyCappedUncapped)
	assert.NotContains(t, keys, model.KeyTermSheet)
	assert.Contains(t, keys, model.KeyProgrammeName)

	assert.Equal(t, "Asset", headers[1].Children[1].Title)
	assert.Equal(t, TitleISIN, headers[0].Title)
	assert.False(t, headers[0].IsGroup())
}

func TestWithAssetColumns(t *testing.T) {
	t.Parallel()

	p := Decide([]*model.Record{pyrEvo("RC", "SPX")})
	wide := p.WithAssetColumns(4)
	assert.Equal(t, 1, p.AssetColumns)
	assert.Equal(t, 4, wide.AssetColumns)
	assert.Len(t, Layout(wide)[2].Children, 5)

	none := p.WithAssetColumns(0)
	assert.Len(t, Layout(none)[2].Children, 1)
}

func TestLeaves(t *testing.T) {
	t.Parallel()

	headers := []Header{
		{Title: "A", Key: "a"},
		{Title: "G", Children: []Header{{Title: "B", Key: "b"}, {Title: "C", Key: "c"}}},
	}
	leaves := Leaves(headers)
	require.Len(t, leaves, 3)
	assert.Equal(t, "C", leaves[2].Title)
	assert.Equal(t, []string{"a", "b", "c"}, Keys(headers))
}
