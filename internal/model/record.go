package model

import (
	"strconv"
	"strings"
)

// Format identifies the document family a record was extracted from.
type Format string

const (
	FormatPyrEvo  Format = "pyrEvoDoc" // multi-subtype note family
	FormatPRIIP   Format = "PRIIP"     // issuer-note family
	FormatUnknown Format = "unknown"
)

// Yes/No/NotApplicable are the literal flag and placeholder values used across records.
const (
	Yes           = "Y"
	No            = "N"
	NotApplicable = "N/A"
)

// Field keys shared by sorting, filtering, the column layout and the export.
const (
	KeyFormat                 = "format"
	KeyIdentifier             = "identifier"
	KeyPrimaryCode            = "primaryCode"
	KeySecondaryCode          = "secondaryCode"
	KeyUnderlyingAssetType    = "underlyingAssetType"
	KeyProductType            = "productType"
	KeyProductClient          = "productClient"
	KeyProductTenor           = "productTenor"
	KeyCouponFrequency        = "couponFrequency"
	KeyCouponBarrierLevel     = "couponBarrierLevel"
	KeyCouponMemory           = "couponMemory"
	KeyCouponRateAnnualised   = "couponRateAnnualised"
	KeyCallFrequency          = "callFrequency"
	KeyCallNonCallPeriod      = "callNonCallPeriod"
	KeyCallMonitoringType     = "callMonitoringType"
	KeyUpsideCap              = "upsideCap"
	KeyUpsideLeverage         = "upsideLeverage"
	KeyCappedUncapped         = "detailCappedUncapped"
	KeyBufferKIBarrier        = "detailBufferKIBarrier"
	KeyBufferBarrierLevel     = "detailBufferBarrierLevel"
	KeyInterestBarrierTrigger = "detailInterestBarrierTriggerValue"
	KeyProgrammeName          = "programmeName"
	KeyJurisdiction           = "jurisdiction"
	KeyStrikeDate             = "dateBookingStrikeDate"
	KeyPricingDate            = "dateBookingPricingDate"
	KeyMaturityDate           = "maturityDate"
	KeyValuationDate          = "valuationDate"
	KeyEarlyStrike            = "earlyStrike"
	KeyTermSheet              = "termSheet"
	KeyFinalPS                = "finalPS"
	KeyFactSheet              = "factSheet"
	assetKeyPrefix            = "asset_"
)

// Record is the normalized, format-independent view of one structured product.
type Record struct {
	Format        Format `json:"format"`
	Identifier    string `json:"identifier"`
	PrimaryCode   string `json:"primaryCode"`
	SecondaryCode string `json:"secondaryCode"`

	UnderlyingAssetType string   `json:"underlyingAssetType"`
	Assets              []string `json:"assets"`

	ProductType   string `json:"productType"`
	ProductClient string `json:"productClient"`
	ProductTenor  string `json:"productTenor"`

	CouponFrequency      string `json:"couponFrequency"`
	CouponBarrierLevel   string `json:"couponBarrierLevel"`
	CouponMemory         string `json:"couponMemory"`
	CouponRateAnnualised string `json:"couponRateAnnualised"`

	CallFrequency      string `json:"callFrequency"`
	CallNonCallPeriod  string `json:"callNonCallPeriod"`
	CallMonitoringType string `json:"callMonitoringType"`

	UpsideCap                         string `json:"upsideCap"`
	UpsideLeverage                    string `json:"upsideLeverage"`
	DetailCappedUncapped              string `json:"detailCappedUncapped"`
	DetailBufferKIBarrier             string `json:"detailBufferKIBarrier"`
	DetailBufferBarrierLevel          string `json:"detailBufferBarrierLevel"`
	DetailInterestBarrierTriggerValue string `json:"detailInterestBarrierTriggerValue"`

	DateBookingStrikeDate  string `json:"dateBookingStrikeDate"`
	DateBookingPricingDate string `json:"dateBookingPricingDate"`
	MaturityDate           string `json:"maturityDate"`
	ValuationDate          string `json:"valuationDate"`

	EarlyStrike string `json:"earlyStrike"`
	TermSheet   string `json:"termSheet"`
	FinalPS     string `json:"finalPS"`
	FactSheet   string `json:"factSheet"`

	ProgrammeName string `json:"programmeName"`
	Jurisdiction  string `json:"jurisdiction"`

	// SourceFiles lists every document that contributed to this record, first-seen first.
	SourceFiles []string `json:"sourceFiles,omitempty"`
}

// AssetKey returns the field key of the i-th asset column (zero based).
func AssetKey(i int) string {
	return assetKeyPrefix + strconv.Itoa(i)
}

// ParseAssetKey reports whether key addresses an asset column and returns its index.
func ParseAssetKey(key string) (int, bool) {
	if !strings.HasPrefix(key, assetKeyPrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(key, assetKeyPrefix))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Asset returns the i-th asset name, or "" when the record has fewer assets.
func (r *Record) Asset(i int) string {
	if i < 0 || i >= len(r.Assets) {
		return ""
	}
	return r.Assets[i]
}

// Field returns the display value stored under a field key. The boolean is
// false for keys that do not name a record field.
func (r *Record) Field(key string) (string, bool) {
	if i, ok := ParseAssetKey(key); ok {
		return r.Asset(i), true
	}
	switch key {
	case KeyFormat:
		return string(r.Format), true
	case KeyIdentifier:
		return r.Identifier, true
	case KeyPrimaryCode:
		return r.PrimaryCode, true
	case KeySecondaryCode:
		return r.SecondaryCode, true
	case KeyUnderlyingAssetType:
		return r.UnderlyingAssetType, true
	case KeyProductType:
		return r.ProductType, true
	case KeyProductClient:
		return r.ProductClient, true
	case KeyProductTenor:
		return r.ProductTenor, true
	case KeyCouponFrequency:
		return r.CouponFrequency, true
	case KeyCouponBarrierLevel:
		return r.CouponBarrierLevel, true
	case KeyCouponMemory:
		return r.CouponMemory, true
	case KeyCouponRateAnnualised:
		return r.CouponRateAnnualised, true
	case KeyCallFrequency:
		return r.CallFrequency, true
	case KeyCallNonCallPeriod:
		return r.CallNonCallPeriod, true
	case KeyCallMonitoringType:
		return r.CallMonitoringType, true
	case KeyUpsideCap:
		return r.UpsideCap, true
	case KeyUpsideLeverage:
		return r.UpsideLeverage, true
	case KeyCappedUncapped:
		return r.DetailCappedUncapped, true
	case KeyBufferKIBarrier:
		return r.DetailBufferKIBarrier, true
	case KeyBufferBarrierLevel:
		return r.DetailBufferBarrierLevel, true
	case KeyInterestBarrierTrigger:
		return r.DetailInterestBarrierTriggerValue, true
	case KeyProgrammeName:
		return r.ProgrammeName, true
	case KeyJurisdiction:
		return r.Jurisdiction, true
	case KeyStrikeDate:
		return r.DateBookingStrikeDate, true
	case KeyPricingDate:
		return r.DateBookingPricingDate, true
	case KeyMaturityDate:
		return r.MaturityDate, true
	case KeyValuationDate:
		return r.ValuationDate, true
	case KeyEarlyStrike:
		return r.EarlyStrike, true
	case KeyTermSheet:
		return r.TermSheet, true
	case KeyFinalPS:
		return r.FinalPS, true
	case KeyFactSheet:
		return r.FactSheet, true
	default:
		return "", false
	}
}

// DocFlags is the set of mergeable document-seen flags.
type DocFlags struct {
	TermSheet string
	FinalPS   string
	FactSheet string
}

// Flags returns the record's document-seen flags.
func (r *Record) Flags() DocFlags {
	return DocFlags{TermSheet: r.TermSheet, FinalPS: r.FinalPS, FactSheet: r.FactSheet}
}

// MergeFlags OR-merges another record's document-seen flags into r and
// appends its source files. No other field is touched.
func (r *Record) MergeFlags(other *Record) {
	r.TermSheet = orFlag(r.TermSheet, other.TermSheet)
	r.FinalPS = orFlag(r.FinalPS, other.FinalPS)
	r.FactSheet = orFlag(r.FactSheet, other.FactSheet)
	r.SourceFiles = append(r.SourceFiles, other.SourceFiles...)
}

// YesNo maps a boolean onto the Y/N flag convention.
func YesNo(b bool) string {
	if b {
		return Yes
	}
	return No
}

func orFlag(a, b string) string {
	return YesNo(a == Yes || b == Yes)
}

// cappedProductTypes are the product-type tags that carry a capped/uncapped flag.
var cappedProductTypes = map[string]bool{"BREN": true, "REN": true}

// IsCappedEligible reports whether productType carries a capped/uncapped flag.
func IsCappedEligible(productType string) bool {
	return cappedProductTypes[productType]
}
