package extract

import (
	"strings"

	"github.com/sells-group/termsheet-cli/internal/derive"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/selector"
)

// priipKeys are the table keys the priip extractor reads.
var priipKeys = []string{
	"identifier", "issueDate", "maturityDate", "strikeDate", "pricingDate", "valuationDate",
	"underlyings", "underlyingName", "underlyingType",
	"productType", "manufacturer", "programmeName", "jurisdiction",
	"couponFrequency", "couponBarrier", "couponMemory", "couponRate",
	"callFrequency", "firstCallDate", "callMonitoringType",
	"kiBarrier",
}

// fractionScale converts the family's relative levels (0.7) to percentages.
const fractionScale = 100

// PRIIP extracts a record from a priip document.
func (e *Extractor) PRIIP(doc *selector.Document) (*model.Record, error) {
	root := doc.Root()
	get := func(key string) string {
		return selector.Resolve(root, e.priip.Get(key))
	}

	isin := get("identifier")
	if isin == "" {
		return nil, skip(model.FormatPRIIP, "no ISIN identifier")
	}

	var assets []string
	underlyingType := model.NotApplicable
	for _, key := range e.priip.Get("underlyings") {
		items := selector.All(root, key)
		if len(items) == 0 {
			continue
		}
		for _, item := range items {
			assets = append(assets, selector.Resolve(item, e.priip.Get("underlyingName")))
		}
		first := selector.Resolve(items[0], e.priip.Get("underlyingType"))
		if len(items) > 1 {
			underlyingType = "WorstOf " + first
		} else {
			underlyingType = "Single " + first
		}
		break
	}

	issueRaw := get("issueDate")
	strikeRaw := get("strikeDate")
	pricingRaw := get("pricingDate")
	maturityRaw := get("maturityDate")

	kiLevel := percentOrNA(get("kiBarrier"))
	protection := model.NotApplicable
	if kiLevel != model.NotApplicable {
		protection = protectionKIBarrier
	}

	memory := model.NotApplicable
	switch strings.ToLower(get("couponMemory")) {
	case "true":
		memory = model.Yes
	case "false":
		memory = model.No
	}

	return &model.Record{
		Format:        model.FormatPRIIP,
		Identifier:    isin,
		PrimaryCode:   isin,
		SecondaryCode: "",

		UnderlyingAssetType: underlyingType,
		Assets:              nonNil(assets),

		ProductType:   get("productType"),
		ProductClient: get("manufacturer"),
		ProductTenor:  derive.Or(derive.Tenor(issueRaw, maturityRaw), model.NotApplicable),

		CouponFrequency:      derive.Or(get("couponFrequency"), model.NotApplicable),
		CouponBarrierLevel:   percentOrNA(get("couponBarrier")),
		CouponMemory:         memory,
		CouponRateAnnualised: percentOrNA(get("couponRate")),

		CallFrequency:      derive.Or(get("callFrequency"), model.NotApplicable),
		CallNonCallPeriod:  derive.Or(derive.Tenor(issueRaw, get("firstCallDate")), model.NotApplicable),
		CallMonitoringType: derive.Or(get("callMonitoringType"), model.NotApplicable),

		UpsideCap:                         model.NotApplicable,
		UpsideLeverage:                    model.NotApplicable,
		DetailCappedUncapped:              model.NotApplicable,
		DetailBufferKIBarrier:             protection,
		DetailBufferBarrierLevel:          kiLevel,
		DetailInterestBarrierTriggerValue: model.NotApplicable,

		DateBookingStrikeDate:  derive.FormatDate(strikeRaw),
		DateBookingPricingDate: derive.FormatDate(pricingRaw),
		MaturityDate:           derive.FormatDate(maturityRaw),
		ValuationDate:          derive.FormatDate(get("valuationDate")),

		EarlyStrike: earlyStrike(strikeRaw, pricingRaw),
		TermSheet:   model.No,
		FinalPS:     model.No,
		FactSheet:   model.No,

		ProgrammeName: get("programmeName"),
		Jurisdiction:  strings.ToUpper(get("jurisdiction")),
	}, nil
}

func percentOrNA(raw string) string {
	return derive.Or(derive.PercentOf(raw, fractionScale), model.NotApplicable)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
