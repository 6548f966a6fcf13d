// Package ingest runs a batch of documents through parse, detect, extract and
// consolidate, and reports what happened to each.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/consolidate"
	"github.com/sells-group/termsheet-cli/internal/extract"
	"github.com/sells-group/termsheet-cli/internal/fetcher"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/selector"
)

// ErrNoRecords is returned when a batch produced no record at all.
var ErrNoRecords = eris.New("No valid data could be extracted from the selected files.")

// DocumentError reports a document whose markup could not be parsed.
type DocumentError struct {
	Name string
	Err  error
}

func (e *DocumentError) Error() string {
	return "The file " + e.Name + " is corrupt or not a valid XML."
}

func (e *DocumentError) Unwrap() error { return e.Err }

// MarshalJSON renders the user-facing message alongside the file name.
func (e *DocumentError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}{e.Name, e.Error()})
}

// Report summarizes one batch.
type Report struct {
	BatchID     string               `json:"batchId"`
	Documents   int                  `json:"documents"`
	Processed   int                  `json:"processed"`
	Extracted   int                  `json:"extracted"`
	Unknown     int                  `json:"unknown"`
	Skipped     int                  `json:"skipped"`
	SkipReasons map[string]int       `json:"skipReasons,omitempty"`
	Formats     map[model.Format]int `json:"formats,omitempty"`
	Failures    []*DocumentError     `json:"failures,omitempty"`
	Merge       consolidate.Stats    `json:"merge"`
	DurationMS  int64                `json:"durationMs"`
}

// Batch is the outcome of a run: consolidated records in first-seen order.
type Batch struct {
	ID      string          `json:"id"`
	Records []*model.Record `json:"records"`
	Report  Report          `json:"report"`
}

// ProgressFunc is called after every document with the count done so far.
type ProgressFunc func(done, total int, name string)

// Option configures a Runner.
type Option func(*Runner)

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner processes batches sequentially in input order.
type Runner struct {
	extractor *extract.Extractor
	progress  ProgressFunc
}

// NewRunner creates a Runner around an Extractor.
func NewRunner(e *extract.Extractor, opts ...Option) *Runner {
	r := &Runner{extractor: e}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run processes docs. Cancellation is checked between documents; on
// cancellation the partial batch is returned with the context error. A batch
// that yields no record returns ErrNoRecords together with the batch.
func (r *Runner) Run(ctx context.Context, docs []fetcher.Document) (*Batch, error) {
	start := time.Now()
	batch := &Batch{
		ID: uuid.New().String(),
		Report: Report{
			Documents:   len(docs),
			SkipReasons: make(map[string]int),
			Formats:     make(map[model.Format]int),
		},
	}
	batch.Report.BatchID = batch.ID
	log := zap.L().With(zap.String("batch_id", batch.ID))

	cons := consolidate.New()
	finish := func() {
		batch.Records = cons.Records()
		batch.Report.Merge = cons.Stats()
		batch.Report.DurationMS = time.Since(start).Milliseconds()
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			finish()
			log.Warn("ingest: batch cancelled", zap.Int("processed", i), zap.Int("documents", len(docs)))
			return batch, eris.Wrap(err, "ingest: cancelled")
		}

		r.process(log, doc, cons, &batch.Report)
		batch.Report.Processed++

		if r.progress != nil {
			r.progress(i+1, len(docs), doc.Name)
		}
	}

	finish()
	log.Info("ingest: batch complete",
		zap.Int("documents", batch.Report.Documents),
		zap.Int("extracted", batch.Report.Extracted),
		zap.Int("records", len(batch.Records)),
		zap.Int("unknown", batch.Report.Unknown),
		zap.Int("skipped", batch.Report.Skipped),
		zap.Int("failed", len(batch.Report.Failures)),
		zap.Int64("duration_ms", batch.Report.DurationMS),
	)

	if len(batch.Records) == 0 {
		return batch, ErrNoRecords
	}
	return batch, nil
}

func (r *Runner) process(log *zap.Logger, doc fetcher.Document, cons *consolidate.Consolidator, rep *Report) {
	log = log.With(zap.String("file", doc.Name))

	parsed, err := selector.ParseBytes(doc.Data)
	if err != nil {
		de := &DocumentError{Name: doc.Name, Err: err}
		rep.Failures = append(rep.Failures, de)
		log.Warn("ingest: document failed to parse", zap.Error(err))
		return
	}

	rec, err := r.extractor.Extract(parsed)
	switch {
	case err == nil:
	case errors.Is(err, extract.ErrUnknownFormat):
		rep.Unknown++
		log.Info("skipping document: unknown format")
		return
	case extract.IsSkip(err):
		reason := extract.SkipReason(err)
		rep.Skipped++
		rep.SkipReasons[reason]++
		log.Info("skipping document", zap.String("reason", reason))
		return
	default:
		rep.Failures = append(rep.Failures, &DocumentError{Name: doc.Name, Err: err})
		log.Warn("ingest: extraction failed", zap.Error(err))
		return
	}

	rec.SourceFiles = []string{doc.Name}
	rep.Extracted++
	rep.Formats[rec.Format]++
	outcome := cons.Add(rec)
	log.Debug("ingest: document extracted",
		zap.String("format", string(rec.Format)),
		zap.String("identifier", rec.Identifier),
		zap.Stringer("outcome", outcome),
	)
}
