// Package columns decides which optional columns a record set shows and
// builds the two-level header tree shared by the grid API and the workbook
// export.
package columns

import (
	"strconv"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// ID column titles.
const (
	TitleCUSIP = "CUSIP"
	TitleISIN  = "ISIN"
	TitleMixed = "CUSIP / ISIN"
)

// Policy is the column-visibility decision for one record set.
type Policy struct {
	IDTitle string `json:"idTitle"`
	// IDKey is the field key of the leading identifier column.
	IDKey string `json:"idKey"`

	ShowSecondaryCode      bool `json:"showSecondaryCode"`
	ShowExtendedCouponCall bool `json:"showExtendedCouponCall"`
	ShowDocType            bool `json:"showDocType"`
	ShowCappedUncapped     bool `json:"showCappedUncapped"`
	ShowProgramme          bool `json:"showProgramme"`

	AssetColumns int `json:"assetColumns"`
}

// Decide computes the policy over the full record set.
func Decide(records []*model.Record) Policy {
	var hasPyrEvo, hasPRIIP, hasNonPRIIP, hasCapped bool
	assets := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		switch r.Format {
		case model.FormatPyrEvo:
			hasPyrEvo = true
		case model.FormatPRIIP:
			hasPRIIP = true
		}
		if r.Format != model.FormatPRIIP {
			hasNonPRIIP = true
		}
		if model.IsCappedEligible(r.ProductType) {
			hasCapped = true
		}
		if len(r.Assets) > assets {
			assets = len(r.Assets)
		}
	}

	p := Policy{
		IDTitle:                TitleMixed,
		IDKey:                  model.KeyIdentifier,
		ShowSecondaryCode:      hasPyrEvo,
		ShowExtendedCouponCall: hasNonPRIIP,
		ShowDocType:            hasNonPRIIP,
		ShowCappedUncapped:     hasCapped,
		ShowProgramme:          hasPRIIP,
		AssetColumns:           assets,
	}
	switch {
	case hasPyrEvo && !hasPRIIP:
		p.IDTitle = TitleCUSIP
	case hasPRIIP && !hasPyrEvo:
		p.IDTitle = TitleISIN
	}
	if hasPyrEvo {
		p.IDKey = model.KeyPrimaryCode
	}
	return p
}

// WithAssetColumns returns a copy of p using n asset columns. Export sheets
// use it so every sheet carries the global asset count.
func (p Policy) WithAssetColumns(n int) Policy {
	p.AssetColumns = n
	return p
}

// Header is a node of the header tree. Leaves carry a field key; groups
// carry children.
type Header struct {
	Title    string   `json:"title"`
	Key      string   `json:"key,omitempty"`
	Children []Header `json:"children,omitempty"`
}

// IsGroup reports whether h has children.
func (h Header) IsGroup() bool {
	return len(h.Children) > 0
}

func leaf(title, key string) Header {
	return Header{Title: title, Key: key}
}

// Layout builds the header tree for p.
func Layout(p Policy) []Header {
	headers := []Header{leaf(p.IDTitle, p.IDKey)}
	if p.ShowSecondaryCode {
		headers = append(headers, leaf(TitleISIN, model.KeySecondaryCode))
	}

	underlying := []Header{leaf("Asset Type", model.KeyUnderlyingAssetType)}
	underlying = append(underlying, assetHeaders(p.AssetColumns)...)

	coupons := []Header{
		leaf("Frequency", model.KeyCouponFrequency),
		leaf("Barrier Level", model.KeyCouponBarrierLevel),
		leaf("Memory", model.KeyCouponMemory),
	}
	call := []Header{
		leaf("Frequency", model.KeyCallFrequency),
		leaf("Non-call period", model.KeyCallNonCallPeriod),
	}
	if p.ShowExtendedCouponCall {
		coupons = append(coupons, leaf("Coupon rate annualised", model.KeyCouponRateAnnualised))
		call = append(call, leaf("Call Monitoring Type", model.KeyCallMonitoringType))
	}

	details := []Header{
		leaf("Upside Cap", model.KeyUpsideCap),
		leaf("Upside Leverage", model.KeyUpsideLeverage),
	}
	if p.ShowCappedUncapped {
		details = append(details, leaf("Capped / Uncapped", model.KeyCappedUncapped))
	}
	details = append(details,
		leaf("Buffer / Barrier", model.KeyBufferKIBarrier),
		leaf("Barrier/Buffer Level", model.KeyBufferBarrierLevel),
		leaf("Interest v Barrier/Buffer", model.KeyInterestBarrierTrigger),
	)
	if p.ShowProgramme {
		details = append(details,
			leaf("Programme Name", model.KeyProgrammeName),
			leaf("Jurisdiction", model.KeyJurisdiction),
		)
	}

	headers = append(headers,
		Header{Title: "Underlying", Children: underlying},
		Header{Title: "Product Details", Children: []Header{
			leaf("Product Type", model.KeyProductType),
			leaf("Client", model.KeyProductClient),
			leaf("Tenor", model.KeyProductTenor),
		}},
		Header{Title: "Coupons", Children: coupons},
		Header{Title: "CALL", Children: call},
		Header{Title: "Details", Children: details},
		Header{Title: "DATES IN BOOKINGS", Children: []Header{
			leaf("Strike", model.KeyStrikeDate),
			leaf("Pricing", model.KeyPricingDate),
			leaf("Maturity", model.KeyMaturityDate),
			leaf("Valuation", model.KeyValuationDate),
			leaf("Early Strike", model.KeyEarlyStrike),
		}},
	)
	if p.ShowDocType {
		headers = append(headers, Header{Title: "Doc Type", Children: []Header{
			leaf("Term Sheet", model.KeyTermSheet),
			leaf("Final PS", model.KeyFinalPS),
			leaf("Fact Sheet", model.KeyFactSheet),
		}})
	}
	return headers
}

func assetHeaders(n int) []Header {
	if n == 1 {
		return []Header{leaf("Asset", model.AssetKey(0))}
	}
	out := make([]Header, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, leaf("Asset "+strconv.Itoa(i+1), model.AssetKey(i)))
	}
	return out
}

// Leaves flattens headers into the ordered list of leaf headers.
func Leaves(headers []Header) []Header {
	var out []Header
	for _, h := range headers {
		if h.IsGroup() {
			out = append(out, Leaves(h.Children)...)
			continue
		}
		out = append(out, h)
	}
	return out
}

// Keys returns the field keys of the leaves of headers, in column order.
func Keys(headers []Header) []string {
	leaves := Leaves(headers)
	keys := make([]string, len(leaves))
	for i, h := range leaves {
		keys[i] = h.Key
	}
	return keys
}
