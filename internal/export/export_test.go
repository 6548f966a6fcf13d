package export

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/query"
)

func record(id, productType string, assets ...string) *model.Record {
	return &model.Record{
		Format:        model.FormatPyrEvo,
		Identifier:    id,
		PrimaryCode:   id,
		SecondaryCode: "US" + id,
		ProductType:   productType,
		Assets:        assets,
		MaturityDate:  "20-Jan-26",
		TermSheet:     model.Yes,
		FinalPS:       model.No,
		FactSheet:     model.No,
	}
}

func sample() []*model.Record {
	return []*model.Record{
		record("ALPHA", "BREN", "SPX Index"),
		record("BRAVO", "RC", "SPX Index", "RTY Index"),
		record("CHARLIE", "BREN"),
		record("DELTA", ""),
	}
}

func TestSanitizeSheetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"A/B:C*D", "ABCD"},
		{`x\y?z[1]`, "xyz1"},
		{"", Uncategorized},
		{"[]:*", Uncategorized},
		{"'quoted'", "quoted"},
		{"Reverse Convertible", "Reverse Convertible"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SanitizeSheetName(tt.in))
		})
	}

	long := SanitizeSheetName(strings.Repeat("x", 40))
	assert.Len(t, long, 31)
}

func TestPlan(t *testing.T) {
	t.Parallel()

	sheets := Plan(sample(), "")
	require.Len(t, sheets, 4)
	assert.Equal(t, AllDataSheet, sheets[0].Name)
	assert.Len(t, sheets[0].Records, 4)
	assert.Equal(t, "BREN", sheets[1].Name)
	assert.Len(t, sheets[1].Records, 2)
	assert.Equal(t, "RC", sheets[2].Name)
	assert.Equal(t, Uncategorized, sheets[3].Name)

	filtered := Plan(sample()[:1], "BREN")
	require.Len(t, filtered, 1)

	single := Plan([]*model.Record{record("A1", "BREN"), record("A2", "BREN")}, "")
	require.Len(t, single, 1)
}

func TestPlan_DuplicateSanitizedNames(t *testing.T) {
	t.Parallel()

	sheets := Plan([]*model.Record{
		record("1", "A/B"),
		record("2", "AB"),
		record("3", "all data"),
		record("4", strings.Repeat("y", 35)),
		record("5", strings.Repeat("y", 31)+"?"),
	}, "")

	var names []string
	for _, s := range sheets {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		AllDataSheet, "AB", "AB~1", "all data~1",
		strings.Repeat("y", 31), strings.Repeat("y", 29) + "~1",
	}, names)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	f, err := Build(sample(), query.View{Sort: query.SortSpec{Key: model.KeyIdentifier, Dir: query.Desc}}, 2)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	// Equal-sized groups keep the view's sort order: DELTA sorts first.
	assert.Equal(t, []string{AllDataSheet, "BREN", Uncategorized, "RC"}, f.GetSheetList())

	rows, err := f.GetRows(AllDataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "CUSIP", rows[0][0])
	assert.Equal(t, "ISIN", rows[0][1])
	assert.Equal(t, "UNDERLYING", rows[0][2])
	assert.Equal(t, "Asset Type", rows[1][2])
	assert.Equal(t, "Asset 1", rows[1][3])
	assert.Equal(t, "Asset 2", rows[1][4])

	var ids []string
	for _, r := range rows[2:] {
		ids = append(ids, r[0])
	}
	assert.Equal(t, []string{"DELTA", "CHARLIE", "BRAVO", "ALPHA"}, ids)
	assert.Equal(t, "USBRAVO", rows[4][1])
	assert.Equal(t, "RTY Index", rows[4][4])

	merges, err := f.GetMergeCells(AllDataSheet)
	require.NoError(t, err)
	var spans []string
	for _, m := range merges {
		spans = append(spans, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	assert.Contains(t, spans, "A1:A2")
	assert.Contains(t, spans, "B1:B2")
	assert.Contains(t, spans, "C1:E1")

	width, err := f.GetColWidth(AllDataSheet, "A")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, width, float64(minWidth))
	assert.LessOrEqual(t, width, float64(maxWidth))

	brenRows, err := f.GetRows("BREN")
	require.NoError(t, err)
	assert.Len(t, brenRows, 4)
	assert.Contains(t, brenRows[1], "Capped / Uncapped")

	rcRows, err := f.GetRows("RC")
	require.NoError(t, err)
	assert.NotContains(t, rcRows[1], "Capped / Uncapped")
	assert.Equal(t, "Asset 2", rcRows[1][4], "sheets share the global asset count")
}

func TestBuild_ProductTypeFilter(t *testing.T) {
	t.Parallel()

	f, err := Build(sample(), query.View{ProductType: "BREN"}, 2)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{AllDataSheet}, f.GetSheetList())
	rows, err := f.GetRows(AllDataSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestBuild_NothingToExport(t *testing.T) {
	t.Parallel()

	_, err := Build(sample(), query.View{ProductType: "PPN"}, 0)
	assert.True(t, errors.Is(err, ErrNothingToExport))

	_, err = Build(nil, query.View{}, 0)
	assert.True(t, errors.Is(err, ErrNothingToExport))
}

func TestWriteFileAndWriteTo(t *testing.T) {
	t.Parallel()

	f, err := New(Style{Font: "Calibri"}).Build(sample(), query.View{}, 2)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, WriteFile(f, path))

	reopened, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	assert.Equal(t, AllDataSheet, reopened.GetSheetList()[0])

	var buf bytes.Buffer
	require.NoError(t, WriteTo(f, &buf))
	assert.Positive(t, buf.Len())
}

func TestNew_DefaultsStyle(t *testing.T) {
	t.Parallel()

	e := New(Style{})
	assert.Equal(t, DefaultStyle(), e.style)
}
