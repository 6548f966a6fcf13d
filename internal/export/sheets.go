package export

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/termsheet-cli/internal/model"
)

const (
	// AllDataSheet is the first sheet of every workbook.
	AllDataSheet = "All Data"
	// Uncategorized names records without a product type.
	Uncategorized = "Uncategorized"

	maxSheetName = 31
)

// invalidSheetChars are rejected by spreadsheet applications in sheet names.
const invalidSheetChars = `\/*?[]:`

// SanitizeSheetName strips characters that are not allowed in sheet names and
// truncates to 31 characters. An empty result becomes "Uncategorized".
func SanitizeSheetName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetChars, r) {
			return -1
		}
		return r
	}, name)
	clean = truncateRunes(clean, maxSheetName)
	clean = strings.Trim(clean, "'")
	if strings.TrimSpace(clean) == "" {
		return Uncategorized
	}
	return clean
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// sheetNamer hands out unique sheet names. Names compare case-insensitively,
// as they do in workbook applications.
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]bool)}
}

func (n *sheetNamer) unique(name string) string {
	candidate := name
	for k := 1; n.used[strings.ToLower(candidate)]; k++ {
		suffix := "~" + strconv.Itoa(k)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	n.used[strings.ToLower(candidate)] = true
	return candidate
}

// Sheet is one planned worksheet.
type Sheet struct {
	Name    string
	Records []*model.Record
}

// Plan lays out the sheets for records that already passed the view's
// filters. "All Data" always comes first. One sheet per product type follows
// when no product-type filter is active and more than one type is present,
// largest group first with ties in first-seen order.
func Plan(records []*model.Record, productTypeFilter string) []Sheet {
	namer := newSheetNamer()
	sheets := []Sheet{{Name: namer.unique(AllDataSheet), Records: records}}
	if productTypeFilter != "" {
		return sheets
	}

	var order []string
	groups := make(map[string][]*model.Record)
	for _, r := range records {
		key := r.ProductType
		if key == "" {
			key = Uncategorized
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	if len(order) <= 1 {
		return sheets
	}

	sort.SliceStable(order, func(i, j int) bool {
		return len(groups[order[i]]) > len(groups[order[j]])
	})
	for _, key := range order {
		sheets = append(sheets, Sheet{
			Name:    namer.unique(SanitizeSheetName(key)),
			Records: groups[key],
		})
	}
	return sheets
}
