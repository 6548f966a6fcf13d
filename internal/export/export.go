// Package export writes consolidated records to a multi-sheet XLSX workbook.
package export

import (
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/columns"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/query"
)

// DefaultFileName is the workbook name used when none is configured.
const DefaultFileName = "ExtractedXML_Data_Global.xlsx"

// ErrNothingToExport is returned when the view leaves no records.
var ErrNothingToExport = eris.New("export: no data to export for the selected filter")

// Column widths, in characters.
const (
	minWidth     = 12
	maxWidth     = 60
	headerRows   = 2
	textPadding  = 4
	dateColWidth = 12
)

var displayDate = regexp.MustCompile(`^\d{2}-[A-Za-z]{3}-\d{2}$`)

// Style controls workbook formatting.
type Style struct {
	Font       string
	FontSize   float64
	HeaderFill string
}

// DefaultStyle is Arial 10 with a light blue header.
func DefaultStyle() Style {
	return Style{Font: "Arial", FontSize: 10, HeaderFill: "DDEBF7"}
}

// Exporter builds workbooks with a fixed style.
type Exporter struct {
	style Style
}

// New returns an Exporter. Zero style fields fall back to DefaultStyle.
func New(style Style) *Exporter {
	def := DefaultStyle()
	if style.Font == "" {
		style.Font = def.Font
	}
	if style.FontSize <= 0 {
		style.FontSize = def.FontSize
	}
	if style.HeaderFill == "" {
		style.HeaderFill = def.HeaderFill
	}
	return &Exporter{style: style}
}

// Build exports records with the default style.
func Build(records []*model.Record, view query.View, maxAssets int) (*excelize.File, error) {
	return New(DefaultStyle()).Build(records, view, maxAssets)
}

// Build filters and sorts records under view and writes one "All Data" sheet
// plus per-product-type sheets. maxAssets is the asset column count of the
// whole consolidated set so every sheet lines up.
func (e *Exporter) Build(records []*model.Record, view query.View, maxAssets int) (*excelize.File, error) {
	rows := query.Apply(records, view)
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	styles, err := e.newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	sheets := Plan(rows, view.ProductType)
	for i, s := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), s.Name)
		} else {
			_, err = f.NewSheet(s.Name)
		}
		if err != nil {
			_ = f.Close()
			return nil, eris.Wrapf(err, "export: create sheet %q", s.Name)
		}

		policy := columns.Decide(s.Records).WithAssetColumns(maxAssets)
		if err := writeSheet(f, s.Name, columns.Layout(policy), s.Records, styles); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	zap.L().Info("export: workbook built",
		zap.Int("sheets", len(sheets)),
		zap.Int("rows", len(rows)),
	)
	return f, nil
}

// WriteFile saves f to path.
func WriteFile(f *excelize.File, path string) error {
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// WriteTo streams f to w.
func WriteTo(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

type sheetStyles struct {
	header int
	body   int
}

func (e *Exporter) newStyles(f *excelize.File) (sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}

	body, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: e.style.Font, Size: e.style.FontSize},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return sheetStyles{}, eris.Wrap(err, "export: body style")
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: e.style.Font, Size: e.style.FontSize, Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.style.HeaderFill}},
	})
	if err != nil {
		return sheetStyles{}, eris.Wrap(err, "export: header style")
	}
	return sheetStyles{header: header, body: body}, nil
}

// writeSheet writes the two header rows, the data rows, merges, styles and
// column widths of one sheet.
func writeSheet(f *excelize.File, sheet string, headers []columns.Header, records []*model.Record, styles sheetStyles) error {
	leaves := columns.Leaves(headers)
	widths := make([]float64, len(leaves))
	for i := range widths {
		widths[i] = minWidth
	}

	col := 1
	for _, h := range headers {
		title := strings.ToUpper(h.Title)
		if err := setCell(f, sheet, col, 1, title); err != nil {
			return err
		}

		if !h.IsGroup() {
			widths[col-1] = math.Max(widths[col-1], float64(len(title)+textPadding))
			if err := mergeCells(f, sheet, col, 1, col, headerRows); err != nil {
				return err
			}
			col++
			continue
		}

		span := len(h.Children)
		for i, child := range h.Children {
			if err := setCell(f, sheet, col+i, 2, child.Title); err != nil {
				return err
			}
			w := math.Max(float64(len(child.Title)+textPadding), float64(len(title))/float64(span)+textPadding)
			widths[col+i-1] = math.Max(widths[col+i-1], w)
		}
		if span > 1 {
			if err := mergeCells(f, sheet, col, 1, col+span-1, 1); err != nil {
				return err
			}
		}
		col += span
	}

	for r, rec := range records {
		values := make([]interface{}, len(leaves))
		for c, leaf := range leaves {
			v := query.RawValue(rec, leaf.Key)
			values[c] = v
			widths[c] = math.Max(widths[c], cellWidth(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, headerRows+1+r)
		if err != nil {
			return eris.Wrap(err, "export: cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return eris.Wrapf(err, "export: write row %d of %q", r+1, sheet)
		}
	}

	last := len(leaves)
	if err := styleRange(f, sheet, 1, 1, last, headerRows+len(records), styles.body); err != nil {
		return err
	}
	if err := styleRange(f, sheet, 1, 1, last, headerRows, styles.header); err != nil {
		return err
	}

	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return eris.Wrap(err, "export: column name")
		}
		if err := f.SetColWidth(sheet, name, name, math.Min(math.Ceil(w), maxWidth)); err != nil {
			return eris.Wrapf(err, "export: width of %s in %q", name, sheet)
		}
	}
	return nil
}

func cellWidth(v string) float64 {
	switch {
	case v == "":
		return minWidth
	case displayDate.MatchString(v):
		return dateColWidth
	default:
		return float64(len(v) + textPadding)
	}
}

func setCell(f *excelize.File, sheet string, col, row int, v string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return eris.Wrap(err, "export: cell name")
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return eris.Wrapf(err, "export: set %s in %q", cell, sheet)
	}
	return nil
}

func mergeCells(f *excelize.File, sheet string, c1, r1, c2, r2 int) error {
	from, err := excelize.CoordinatesToCellName(c1, r1)
	if err != nil {
		return eris.Wrap(err, "export: cell name")
	}
	to, err := excelize.CoordinatesToCellName(c2, r2)
	if err != nil {
		return eris.Wrap(err, "export: cell name")
	}
	if err := f.MergeCell(sheet, from, to); err != nil {
		return eris.Wrapf(err, "export: merge %s:%s in %q", from, to, sheet)
	}
	return nil
}

func styleRange(f *excelize.File, sheet string, c1, r1, c2, r2, style int) error {
	from, err := excelize.CoordinatesToCellName(c1, r1)
	if err != nil {
		return eris.Wrap(err, "export: cell name")
	}
	to, err := excelize.CoordinatesToCellName(c2, r2)
	if err != nil {
		return eris.Wrap(err, "export: cell name")
	}
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		return eris.Wrapf(err, "export: style %s:%s in %q", from, to, sheet)
	}
	return nil
}
