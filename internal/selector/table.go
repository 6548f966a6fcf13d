package selector

import (
	"os"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Table maps a field key to its ordered candidate selectors.
type Table map[string][]string

// Get returns the candidates for key, or nil when the key is unknown.
func (t Table) Get(key string) []string {
	return t[key]
}

// Require returns an error naming every key that has no candidates.
func (t Table) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if len(t[k]) == 0 {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("selector: table missing keys %s", strings.Join(missing, ", "))
	}
	return nil
}

// Tables holds one Table per document family, keyed by family name.
type Tables map[string]Table

// Family returns the table for name, or an empty table.
func (ts Tables) Family(name string) Table {
	if t, ok := ts[name]; ok {
		return t
	}
	return Table{}
}

// Override adjusts the candidate list of one field. Existing candidates are
// never removed: newer document revisions are absorbed by adding paths.
type Override struct {
	Prepend []string `yaml:"prepend"`
	Append  []string `yaml:"append"`
}

// ParseTables decodes family tables from YAML and validates every candidate.
func ParseTables(data []byte) (Tables, error) {
	var ts Tables
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, eris.Wrap(err, "selector: parse tables")
	}
	if err := ts.validate(); err != nil {
		return nil, err
	}
	return ts, nil
}

// LoadTables parses the base tables and applies the override file at
// overridePath when one is given.
func LoadTables(base []byte, overridePath string) (Tables, error) {
	ts, err := ParseTables(base)
	if err != nil {
		return nil, err
	}
	if overridePath == "" {
		return ts, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, eris.Wrapf(err, "selector: read overrides %s", overridePath)
	}
	var overrides map[string]map[string]Override
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrap(err, "selector: parse overrides")
	}
	ts.Apply(overrides)
	if err := ts.validate(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Apply merges overrides into ts, creating families and fields as needed.
func (ts Tables) Apply(overrides map[string]map[string]Override) {
	for family, fields := range overrides {
		t, ok := ts[family]
		if !ok {
			t = Table{}
			ts[family] = t
		}
		for key, o := range fields {
			merged := make([]string, 0, len(o.Prepend)+len(t[key])+len(o.Append))
			merged = append(merged, o.Prepend...)
			merged = append(merged, t[key]...)
			merged = append(merged, o.Append...)
			t[key] = dedupe(merged)
		}
	}
}

func (ts Tables) validate() error {
	families := make([]string, 0, len(ts))
	for f := range ts {
		families = append(families, f)
	}
	sort.Strings(families)

	for _, family := range families {
		for key, candidates := range ts[family] {
			for _, c := range candidates {
				if _, err := cascadia.Compile(c); err != nil {
					return eris.Wrapf(err, "selector: %s.%s: invalid candidate %q", family, key, c)
				}
			}
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
