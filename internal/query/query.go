// Package query sorts, filters and bands consolidated records for the grid
// API and the export. Every function takes an explicit View; nothing here
// holds state between calls.
package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/termsheet-cli/internal/derive"
	"github.com/sells-group/termsheet-cli/internal/model"
)

// NoMatchesMessage is shown when filters hide every record.
const NoMatchesMessage = "No data matches the current filters."

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps "desc" (any case) to Desc and everything else to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// SortSpec names the sort column and direction. An empty Key keeps input order.
type SortSpec struct {
	Key string    `json:"key"`
	Dir Direction `json:"dir"`
}

// ToggleSort returns the sort after the user picks key: the same key flips
// direction, a new key sorts ascending.
func ToggleSort(cur SortSpec, key string) SortSpec {
	if cur.Key == key {
		if cur.Dir == Asc {
			return SortSpec{Key: key, Dir: Desc}
		}
		return SortSpec{Key: key, Dir: Asc}
	}
	return SortSpec{Key: key, Dir: Asc}
}

// View is the sort and filter context for one request.
type View struct {
	Sort SortSpec `json:"sort"`
	// ProductType restricts rows to one product type; "" means all.
	ProductType string `json:"productType,omitempty"`
	// Filters maps field keys to case-insensitive substrings.
	Filters map[string]string `json:"filters,omitempty"`
}

// FiltersActive reports whether any product-type or column filter is set.
func (v View) FiltersActive() bool {
	if v.ProductType != "" {
		return true
	}
	for _, f := range v.Filters {
		if f != "" {
			return true
		}
	}
	return false
}

// Reset clears sorting and every filter.
func (v *View) Reset() {
	*v = View{}
}

// RawValue returns the display value used for filtering and sorting. The
// identifier column falls back between Identifier and PrimaryCode; unknown
// keys yield "".
func RawValue(rec *model.Record, key string) string {
	if rec == nil {
		return ""
	}
	if key == model.KeyIdentifier || key == model.KeyPrimaryCode {
		return derive.Or(rec.Identifier, rec.PrimaryCode)
	}
	v, _ := rec.Field(key)
	return v
}

// Kind orders sortable values: missing < number < text.
type Kind int

const (
	Missing Kind = iota
	Number
	Text
)

// Sortable is the comparable form of a display value.
type Sortable struct {
	Kind Kind
	Num  float64
	Text string
}

var nonNumeric = regexp.MustCompile(`[^0-9.-]+`)

// SortableValue classifies a display value. "" and "N/A" are missing;
// DD-Mon-YY dates compare as instants; values whose digits form a number
// compare numerically; anything else compares as lower-cased text.
func SortableValue(v string) Sortable {
	if v == "" || v == model.NotApplicable {
		return Sortable{Kind: Missing}
	}
	if t, ok := derive.ParseDisplayDate(v); ok {
		return Sortable{Kind: Number, Num: float64(t.UnixMilli())}
	}
	if n, ok := derive.ParseNumber(nonNumeric.ReplaceAllString(v, "")); ok {
		return Sortable{Kind: Number, Num: n}
	}
	return Sortable{Kind: Text, Text: strings.ToLower(v)}
}

// Compare orders a before b ascending: negative, zero or positive.
func Compare(a, b Sortable) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case Number:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
	case Text:
		return strings.Compare(a.Text, b.Text)
	}
	return 0
}

// Sort returns a stably sorted copy of records. Missing values sort first
// ascending and last descending.
func Sort(records []*model.Record, spec SortSpec) []*model.Record {
	out := make([]*model.Record, len(records))
	copy(out, records)
	if spec.Key == "" {
		return out
	}

	keys := make(map[*model.Record]Sortable, len(out))
	for _, r := range out {
		keys[r] = SortableValue(RawValue(r, spec.Key))
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := Compare(keys[out[i]], keys[out[j]])
		if spec.Dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Filter returns the records visible under v, preserving order.
func Filter(records []*model.Record, v View) []*model.Record {
	active := make(map[string]string, len(v.Filters))
	for k, f := range v.Filters {
		if f != "" {
			active[k] = strings.ToLower(f)
		}
	}

	out := make([]*model.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if v.ProductType != "" && r.ProductType != v.ProductType {
			continue
		}
		if matches(r, active) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r *model.Record, filters map[string]string) bool {
	for key, f := range filters {
		if !strings.Contains(strings.ToLower(RawValue(r, key)), f) {
			return false
		}
	}
	return true
}

// Apply filters then sorts records under v.
func Apply(records []*model.Record, v View) []*model.Record {
	return Sort(Filter(records, v), v.Sort)
}

// ProductTypes lists the distinct non-empty product types, sorted.
func ProductTypes(records []*model.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if r == nil || r.ProductType == "" || seen[r.ProductType] {
			continue
		}
		seen[r.ProductType] = true
		out = append(out, r.ProductType)
	}
	sort.Strings(out)
	return out
}

// Band is the alternating row group of a record.
type Band string

const (
	BandA Band = "group-a"
	BandB Band = "group-b"
)

// Groups assigns alternating bands to rows in order, switching band whenever
// the display value under key changes. It returns nil when key is empty.
func Groups(records []*model.Record, key string) []Band {
	if key == "" {
		return nil
	}
	out := make([]Band, len(records))
	band := BandA
	for i, r := range records {
		v := RawValue(r, key)
		if i > 0 && v != RawValue(records[i-1], key) {
			if band == BandA {
				band = BandB
			} else {
				band = BandA
			}
		}
		out[i] = band
	}
	return out
}
