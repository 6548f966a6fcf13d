// Package consolidate deduplicates extracted records by identifier.
package consolidate

import (
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// Outcome reports what Add did with a record.
type Outcome int

const (
	// Added means the record was the first with its identifier.
	Added Outcome = iota
	// Merged means the record's document flags were folded into an earlier one.
	Merged
	// Dropped means the record was nil or had no identifier.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Merged:
		return "merged"
	default:
		return "dropped"
	}
}

// Stats counts Add outcomes.
type Stats struct {
	Added   int `json:"added"`
	Merged  int `json:"merged"`
	Dropped int `json:"dropped"`
}

// Consolidator keeps one record per identifier in first-seen order. The first
// record for an identifier is canonical; later ones only contribute their
// document-seen flags and source files. It is not safe for concurrent use.
type Consolidator struct {
	byID  map[string]*model.Record
	order []*model.Record
	stats Stats
}

// New returns an empty Consolidator.
func New() *Consolidator {
	return &Consolidator{byID: make(map[string]*model.Record)}
}

// Add folds rec into the set.
func (c *Consolidator) Add(rec *model.Record) Outcome {
	if rec == nil || rec.Identifier == "" {
		c.stats.Dropped++
		return Dropped
	}

	existing, ok := c.byID[rec.Identifier]
	if !ok {
		c.byID[rec.Identifier] = rec
		c.order = append(c.order, rec)
		c.stats.Added++
		return Added
	}

	existing.MergeFlags(rec)
	c.stats.Merged++
	zap.L().Debug("consolidate: merged duplicate identifier",
		zap.String("identifier", rec.Identifier),
		zap.Strings("sources", rec.SourceFiles),
	)
	return Merged
}

// Records returns the consolidated records in first-seen order.
func (c *Consolidator) Records() []*model.Record {
	out := make([]*model.Record, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of distinct identifiers.
func (c *Consolidator) Len() int {
	return len(c.order)
}

// Stats returns the outcome counters.
func (c *Consolidator) Stats() Stats {
	return c.stats
}

// Consolidate deduplicates recs in one call.
func Consolidate(recs []*model.Record) ([]*model.Record, Stats) {
	c := New()
	for _, r := range recs {
		c.Add(r)
	}
	return c.Records(), c.Stats()
}
