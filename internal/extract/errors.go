package extract

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// ErrUnknownFormat is returned for documents that match neither family marker.
var ErrUnknownFormat = eris.New("extract: unknown document format")

// SkipError reports a document of a recognised family that cannot produce a
// record, such as one without an identifier or product subtype.
type SkipError struct {
	Format model.Format
	Reason string
}

func (e *SkipError) Error() string {
	return "extract: skipped " + string(e.Format) + " document: " + e.Reason
}

func skip(format model.Format, reason string) error {
	return &SkipError{Format: format, Reason: reason}
}

// IsSkip reports whether err (or any error in its chain) is a SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// SkipReason returns the reason of a SkipError in err's chain, or "".
func SkipReason(err error) string {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}
