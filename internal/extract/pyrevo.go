package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/termsheet-cli/internal/derive"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/selector"
)

// pyrEvoKeys are the table keys the pyrEvoDoc extractor reads.
var pyrEvoKeys = []string{
	"product", "tradableForm", "asset",
	"identifiers", "identifierType", "identifierCode", "issueDate",
	"assetEntries", "assetTicker", "assetType", "basketType",
	"strikeDate", "pricingDate", "documentType", "counterparty", "dealer",
	"productName", "tenorMonths", "maturityDate", "valuationDate",
	"subtype.bufferedNote", "subtype.reverseConvertible", "subtype.autocallable", "subtype.principalProtected",
	"bren.productType", "bren.upsideLeverage", "bren.upsideCap", "bren.capped", "bren.buffer",
	"rc.productType", "rc.strikeLevel", "rc.bufferLevel", "rc.kiBarrierLevel", "rc.issuerCallable",
	"rc.issuerCallable.frequency", "rc.issuerCallable.firstDate", "rc.issuerCallable.monitoringType",
	"rc.autocall.frequency", "rc.autocall.firstDate", "rc.autocall.monitoringType", "rc.couponSchedule",
	"coupon.frequency", "coupon.level", "coupon.memory", "coupon.rateAnnualised",
	"autocall.productType", "autocall.frequency", "autocall.firstDate", "autocall.monitoringType",
	"autocall.bufferLevel", "autocall.kiBarrierLevel",
	"ppn.productType", "ppn.participation", "ppn.upsideCap", "ppn.protectionLevel",
}

// Protection labels.
const (
	protectionBuffer    = "Buffer"
	protectionKIBarrier = "KI Barrier"
	protectionPrincipal = "Principal Protected"

	atMaturity = "At Maturity"
)

// pyrEvoDoc is the lookup context for one pyrEvoDoc document.
type pyrEvoDoc struct {
	table        selector.Table
	root         *goquery.Selection
	product      *goquery.Selection
	tradableForm *goquery.Selection
	asset        *goquery.Selection
}

func (d *pyrEvoDoc) get(node *goquery.Selection, key string) string {
	return selector.Resolve(node, d.table.Get(key))
}

func (d *pyrEvoDoc) has(node *goquery.Selection, key string) bool {
	return selector.First(node, d.table.Get(key)...).Length() > 0
}

func (d *pyrEvoDoc) issueDate() string {
	return d.get(d.tradableForm, "issueDate")
}

// subtype is one of the mutually exclusive pyrEvoDoc product structures. Each
// variant derives only the terms it actually carries.
type subtype interface {
	terms(d *pyrEvoDoc) terms
}

// terms are the subtype-specific fields merged into the record by normalize.
type terms struct {
	productType        string
	upsideCap          string
	upsideLeverage     string
	cappedUncapped     string
	protection         string
	protectionLevel    string
	callFrequency      string
	nonCallPeriod      string
	monitoringType     string
	coupon             couponTerms
	interestComparison string
}

type couponTerms struct {
	frequency      string
	barrierLevel   string
	memory         string
	rateAnnualised string
}

var noCoupon = couponTerms{
	frequency:      model.NotApplicable,
	barrierLevel:   model.NotApplicable,
	memory:         model.NotApplicable,
	rateAnnualised: model.NotApplicable,
}

// subtypeProbes lists the subtype markers in priority order.
var subtypeProbes = []struct {
	key     string
	variant subtype
}{
	{"subtype.bufferedNote", bufferedNote{}},
	{"subtype.reverseConvertible", reverseConvertible{}},
	{"subtype.autocallable", autocallable{}},
	{"subtype.principalProtected", principalProtected{}},
}

// PyrEvo extracts a record from a pyrEvoDoc document.
func (e *Extractor) PyrEvo(doc *selector.Document) (*model.Record, error) {
	root := doc.Root()
	d := &pyrEvoDoc{table: e.pyrEvo, root: root}
	d.product = selector.First(root, d.table.Get("product")...)
	d.tradableForm = selector.First(root, d.table.Get("tradableForm")...)
	d.asset = selector.First(root, d.table.Get("asset")...)

	if d.product.Length() == 0 || d.tradableForm.Length() == 0 || d.asset.Length() == 0 {
		return nil, skip(model.FormatPyrEvo, "missing structure")
	}

	codes := d.identifierCodes()
	cusip := codes["CUSIP"]
	if cusip == "" {
		return nil, skip(model.FormatPyrEvo, "no CUSIP identifier")
	}

	var variant subtype
	for _, p := range subtypeProbes {
		if d.has(d.product, p.key) {
			variant = p.variant
			break
		}
	}
	if variant == nil {
		return nil, skip(model.FormatPyrEvo, "unrecognized product subtype")
	}

	return d.normalize(cusip, codes["ISIN"], variant.terms(d)), nil
}

// normalize merges the common fields with a subtype's terms.
func (d *pyrEvoDoc) normalize(cusip, isin string, t terms) *model.Record {
	strikeRaw := d.get(d.root, "strikeDate")
	pricingRaw := d.get(d.root, "pricingDate")
	maturityRaw := d.get(d.product, "maturityDate")
	docType := strings.ToUpper(d.get(d.root, "documentType"))

	tenor := derive.FormatMonthsText(d.get(d.product, "tenorMonths"))
	if tenor == "" {
		tenor = derive.Tenor(d.issueDate(), maturityRaw)
	}

	productType := t.productType
	if productType == "" {
		productType = d.get(d.product, "productName")
	}

	cappedUncapped := ""
	if model.IsCappedEligible(productType) {
		cappedUncapped = t.cappedUncapped
	}

	return &model.Record{
		Format:        model.FormatPyrEvo,
		Identifier:    cusip,
		PrimaryCode:   cusip,
		SecondaryCode: isin,

		UnderlyingAssetType: d.underlyingType(),
		Assets:              d.assets(),

		ProductType:   productType,
		ProductClient: d.client(),
		ProductTenor:  tenor,

		CouponFrequency:      t.coupon.frequency,
		CouponBarrierLevel:   t.coupon.barrierLevel,
		CouponMemory:         t.coupon.memory,
		CouponRateAnnualised: t.coupon.rateAnnualised,

		CallFrequency:      t.callFrequency,
		CallNonCallPeriod:  t.nonCallPeriod,
		CallMonitoringType: t.monitoringType,

		UpsideCap:                         t.upsideCap,
		UpsideLeverage:                    t.upsideLeverage,
		DetailCappedUncapped:              cappedUncapped,
		DetailBufferKIBarrier:             t.protection,
		DetailBufferBarrierLevel:          t.protectionLevel,
		DetailInterestBarrierTriggerValue: t.interestComparison,

		DateBookingStrikeDate:  derive.FormatDate(strikeRaw),
		DateBookingPricingDate: derive.FormatDate(pricingRaw),
		MaturityDate:           derive.FormatDate(maturityRaw),
		ValuationDate:          derive.FormatDate(d.get(d.product, "valuationDate")),

		EarlyStrike: earlyStrike(strikeRaw, pricingRaw),
		TermSheet:   model.YesNo(strings.Contains(docType, "TERMSHEET")),
		FinalPS:     model.YesNo(strings.Contains(docType, "PRICING_SUPPLEMENT")),
		FactSheet:   model.YesNo(strings.Contains(docType, "FACT_SHEET")),
	}
}

// identifierCodes maps upper-cased identifier types to their codes. The first
// code seen for a type wins.
func (d *pyrEvoDoc) identifierCodes() map[string]string {
	codes := make(map[string]string)
	for _, key := range d.table.Get("identifiers") {
		for _, id := range selector.All(d.tradableForm, key) {
			typ := strings.ToUpper(d.get(id, "identifierType"))
			if typ == "" {
				continue
			}
			if _, seen := codes[typ]; !seen {
				codes[typ] = d.get(id, "identifierCode")
			}
		}
	}
	return codes
}

func (d *pyrEvoDoc) assetEntries() []*goquery.Selection {
	for _, key := range d.table.Get("assetEntries") {
		if entries := selector.All(d.asset, key); len(entries) > 0 {
			return entries
		}
	}
	return nil
}

func (d *pyrEvoDoc) assets() []string {
	entries := d.assetEntries()
	out := make([]string, 0, len(entries))
	for _, a := range entries {
		out = append(out, d.get(a, "assetTicker"))
	}
	return out
}

func (d *pyrEvoDoc) underlyingType() string {
	entries := d.assetEntries()
	if len(entries) == 0 {
		return model.NotApplicable
	}
	assetType := strings.ReplaceAll(d.get(entries[0], "assetType"), "Exchange_Traded_Fund", "ETF")
	if len(entries) == 1 {
		return "Single " + assetType
	}
	basket := derive.Or(d.get(d.asset, "basketType"), "Multiple")
	return basket + " " + assetType
}

// clientRules map counterparty/dealer substrings onto client labels, first match wins.
var clientRules = []struct {
	needles []string
	label   string
}{
	{[]string{"jpm"}, "JPM PB"},
	{[]string{"goldman"}, "GS"},
	{[]string{"bauble", "ubs"}, "UBS"},
}

const defaultClient = "3P"

func (d *pyrEvoDoc) client() string {
	blob := strings.ToLower(d.get(d.root, "counterparty") + " " + d.get(d.root, "dealer"))
	for _, rule := range clientRules {
		for _, n := range rule.needles {
			if strings.Contains(blob, n) {
				return rule.label
			}
		}
	}
	return defaultClient
}

func earlyStrike(strikeRaw, pricingRaw string) string {
	return model.YesNo(strikeRaw != "" && pricingRaw != "" && strikeRaw != pricingRaw)
}

// bufferedNote is a buffered return enhanced note (BREN / REN).
type bufferedNote struct{}

func (bufferedNote) terms(d *pyrEvoDoc) terms {
	level := ""
	if buffer, ok := derive.ParseNumber(d.get(d.product, "bren.buffer")); ok {
		level = derive.Percent(100 - buffer)
	}

	return terms{
		productType:        d.get(d.product, "bren.productType"),
		upsideCap:          derive.Or(derive.PercentOf(d.get(d.product, "bren.upsideCap"), 1), model.NotApplicable),
		upsideLeverage:     derive.Or(derive.PercentOf(d.get(d.product, "bren.upsideLeverage"), 1), model.NotApplicable),
		cappedUncapped:     cappedState(d.get(d.product, "bren.capped")),
		protection:         protectionBuffer,
		protectionLevel:    level,
		callFrequency:      atMaturity,
		nonCallPeriod:      model.NotApplicable,
		monitoringType:     model.NotApplicable,
		coupon:             noCoupon,
		interestComparison: model.NotApplicable,
	}
}

func cappedState(raw string) string {
	if strings.EqualFold(raw, "true") {
		return "Capped"
	}
	return "Uncapped"
}

// reverseConvertible pays a contingent coupon and is either buffered (strike
// below 100) or protected by a knock-in barrier.
type reverseConvertible struct{}

func (reverseConvertible) terms(d *pyrEvoDoc) terms {
	strike, ok := derive.ParseNumber(d.get(d.product, "rc.strikeLevel"))
	buffered := ok && strike < 100

	protection, levelKey := protectionKIBarrier, "rc.kiBarrierLevel"
	if buffered {
		protection, levelKey = protectionBuffer, "rc.bufferLevel"
	}
	levelRaw := d.get(d.product, levelKey)

	schedule, fallbackMonitoring := "rc.autocall", model.NotApplicable
	if d.has(d.product, "rc.issuerCallable") {
		schedule, fallbackMonitoring = "rc.issuerCallable", "Issuer Call"
	}

	coupon, couponLevelRaw := d.couponSchedule()

	return terms{
		productType:        d.get(d.product, "rc.productType"),
		upsideCap:          model.NotApplicable,
		upsideLeverage:     model.NotApplicable,
		protection:         protection,
		protectionLevel:    derive.PercentOf(levelRaw, 1),
		callFrequency:      d.get(d.product, schedule+".frequency"),
		nonCallPeriod:      derive.Tenor(d.issueDate(), d.get(d.product, schedule+".firstDate")),
		monitoringType:     derive.Or(d.get(d.product, schedule+".monitoringType"), fallbackMonitoring),
		coupon:             coupon,
		interestComparison: derive.ComparisonLabel(couponLevelRaw, "Interest Barrier", levelRaw, protection),
	}
}

// couponSchedule reads the reverse convertible coupon block and returns the
// raw contingent level alongside the formatted terms.
func (d *pyrEvoDoc) couponSchedule() (couponTerms, string) {
	schedule := selector.First(d.product, d.table.Get("rc.couponSchedule")...)
	if schedule.Length() == 0 {
		return noCoupon, ""
	}

	levelRaw := d.get(schedule, "coupon.level")
	memory := model.NotApplicable
	switch strings.ToLower(d.get(schedule, "coupon.memory")) {
	case "":
	case "false":
		memory = model.No
	default:
		memory = model.Yes
	}

	return couponTerms{
		frequency:      derive.Or(d.get(schedule, "coupon.frequency"), model.NotApplicable),
		barrierLevel:   derive.Or(derive.PercentOf(levelRaw, 1), model.NotApplicable),
		memory:         memory,
		rateAnnualised: derive.Or(derive.PercentOf(d.get(schedule, "coupon.rateAnnualised"), 1), model.NotApplicable),
	}, levelRaw
}

// autocallable is a growth note that knocks out on a call schedule.
type autocallable struct{}

func (autocallable) terms(d *pyrEvoDoc) terms {
	protection, level := model.NotApplicable, ""
	if raw := d.get(d.product, "autocall.bufferLevel"); raw != "" {
		protection, level = protectionBuffer, derive.PercentOf(raw, 1)
	} else if raw := d.get(d.product, "autocall.kiBarrierLevel"); raw != "" {
		protection, level = protectionKIBarrier, derive.PercentOf(raw, 1)
	}

	return terms{
		productType:        d.get(d.product, "autocall.productType"),
		upsideCap:          model.NotApplicable,
		upsideLeverage:     model.NotApplicable,
		protection:         protection,
		protectionLevel:    level,
		callFrequency:      d.get(d.product, "autocall.frequency"),
		nonCallPeriod:      derive.Tenor(d.issueDate(), d.get(d.product, "autocall.firstDate")),
		monitoringType:     derive.Or(d.get(d.product, "autocall.monitoringType"), model.NotApplicable),
		coupon:             noCoupon,
		interestComparison: model.NotApplicable,
	}
}

// principalProtected returns at least the protected share of principal at
// maturity plus a participation in the upside.
type principalProtected struct{}

const fullProtection = 100

func (principalProtected) terms(d *pyrEvoDoc) terms {
	level := derive.PercentOf(d.get(d.product, "ppn.protectionLevel"), 1)
	if level == "" {
		level = derive.Percent(fullProtection)
	}

	return terms{
		productType:        d.get(d.product, "ppn.productType"),
		upsideCap:          derive.Or(derive.PercentOf(d.get(d.product, "ppn.upsideCap"), 1), model.NotApplicable),
		upsideLeverage:     derive.Or(derive.PercentOf(d.get(d.product, "ppn.participation"), 1), model.NotApplicable),
		protection:         protectionPrincipal,
		protectionLevel:    level,
		callFrequency:      atMaturity,
		nonCallPeriod:      model.NotApplicable,
		monitoringType:     model.NotApplicable,
		coupon:             noCoupon,
		interestComparison: model.NotApplicable,
	}
}
