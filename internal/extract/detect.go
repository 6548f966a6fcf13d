package extract

import (
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/selector"
)

// Marker elements, checked in this order.
const (
	markerPyrEvo = "pyrEvoDoc"
	markerPRIIP  = "priip"
)

// Selector table families.
const (
	familyPyrEvo = "pyrEvoDoc"
	familyPRIIP  = "priip"
)

// Detect classifies doc by the presence of a family marker element.
func Detect(doc *selector.Document) model.Format {
	switch {
	case doc.Has(markerPyrEvo):
		return model.FormatPyrEvo
	case doc.Has(markerPRIIP):
		return model.FormatPRIIP
	default:
		return model.FormatUnknown
	}
}
