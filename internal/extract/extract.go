// Package extract maps parsed documents of both supported families onto the
// normalized record model.
package extract

import (
	_ "embed"

	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/selector"
)

//go:embed selectors.yaml
var defaultSelectors []byte

// LoadTables returns the built-in selector tables with the optional override
// file applied.
func LoadTables(overridePath string) (selector.Tables, error) {
	return selector.LoadTables(defaultSelectors, overridePath)
}

// Extractor turns parsed documents into records using per-family selector tables.
type Extractor struct {
	pyrEvo selector.Table
	priip  selector.Table
}

// New builds an Extractor from selector tables. Every field key the
// extractors read must have at least one candidate.
func New(tables selector.Tables) (*Extractor, error) {
	e := &Extractor{
		pyrEvo: tables.Family(familyPyrEvo),
		priip:  tables.Family(familyPRIIP),
	}
	if err := e.pyrEvo.Require(pyrEvoKeys...); err != nil {
		return nil, eris.Wrap(err, "extract: pyrEvoDoc table")
	}
	if err := e.priip.Require(priipKeys...); err != nil {
		return nil, eris.Wrap(err, "extract: priip table")
	}
	return e, nil
}

// NewDefault builds an Extractor from the built-in tables.
func NewDefault() (*Extractor, error) {
	tables, err := LoadTables("")
	if err != nil {
		return nil, err
	}
	return New(tables)
}

// Extract detects the document family and extracts one record. Unknown
// documents return ErrUnknownFormat; recognised documents missing required
// structure return a *SkipError.
func (e *Extractor) Extract(doc *selector.Document) (*model.Record, error) {
	switch Detect(doc) {
	case model.FormatPyrEvo:
		return e.PyrEvo(doc)
	case model.FormatPRIIP:
		return e.PRIIP(doc)
	default:
		return nil, ErrUnknownFormat
	}
}
