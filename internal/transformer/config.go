package transformer

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"tabload/internal/schema"
)

// TextTransform is one step of a text transformation chain.
//
// Supported types (case-insensitive): upper, lower, trim, replace, substring,
// titleCase. Unknown types are ignored.
type TextTransform struct {
	Type  string `json:"type"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Regex bool   `json:"regex,omitempty"`
	Start *int   `json:"start,omitempty"`
	End   *int   `json:"end,omitempty"`
}

// Config is the JSON transformation file applied to rows before inference.
type Config struct {
	ColumnRenames             map[string]string          `json:"columnRenames,omitempty"`
	TextTransformations       map[string][]TextTransform `json:"textTransformations,omitempty"`
	ValueMappings             map[string]map[string]any  `json:"valueMappings,omitempty"`
	GlobalTextTransformations []TextTransform            `json:"globalTextTransformations,omitempty"`
	// RowHash, when set, adds a hash key column after every other step.
	RowHash *RowHash `json:"rowHash,omitempty"`
}

// LoadConfig reads a transformation file. A missing file yields (nil, nil)
// so the transform step is simply skipped.
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transformer: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("transformer: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects replace steps whose regular expression does not compile.
func (c *Config) Validate() error {
	check := func(where string, steps []TextTransform) error {
		for _, st := range steps {
			if strings.EqualFold(st.Type, "replace") && st.Regex {
				if _, err := regexp.Compile(st.From); err != nil {
					return fmt.Errorf("transformer: %s: bad replace pattern %q: %w", where, st.From, err)
				}
			}
		}
		return nil
	}
	for col, steps := range c.TextTransformations {
		if err := check("textTransformations."+col, steps); err != nil {
			return err
		}
	}
	return check("globalTextTransformations", c.GlobalTextTransformations)
}

// Apply runs renames, per-column text transforms, value mappings, global
// text transforms and the row hash, in that order. Input rows are not modified. A nil Config
// returns rows unchanged.
func (c *Config) Apply(rows []schema.Row) []schema.Row {
	if c == nil {
		return rows
	}
	out := make([]schema.Row, len(rows))
	for i, r := range rows {
		out[i] = c.applyRow(r)
	}
	return out
}

// ApplyHeader renames header entries the same way Apply renames row keys and
// appends the row hash column, if any.
func (c *Config) ApplyHeader(header []string) []string {
	if c == nil || (len(c.ColumnRenames) == 0 && c.RowHash == nil) {
		return header
	}
	out := make([]string, len(header), len(header)+1)
	for i, h := range header {
		if to, ok := c.ColumnRenames[h]; ok && to != "" {
			h = to
		}
		out[i] = h
	}
	if c.RowHash != nil && !slices.Contains(out, c.RowHash.target()) {
		out = append(out, c.RowHash.target())
	}
	return out
}

func (c *Config) applyRow(r schema.Row) schema.Row {
	row := make(schema.Row, len(r))
	for k, v := range r {
		if to, ok := c.ColumnRenames[k]; ok && to != "" {
			k = to
		}
		row[k] = v
	}
	for col, steps := range c.TextTransformations {
		if v, ok := row[col]; ok && v != nil {
			row[col] = ApplyText(text(v), steps)
		}
	}
	for col, mapping := range c.ValueMappings {
		if v, ok := row[col]; ok && v != nil {
			row[col] = MapValue(v, mapping)
		}
	}
	if len(c.GlobalTextTransformations) > 0 {
		for k, v := range row {
			if s, ok := v.(string); ok {
				row[k] = ApplyText(s, c.GlobalTextTransformations)
			}
		}
	}
	if c.RowHash != nil {
		row[c.RowHash.target()] = c.RowHash.Sum(row)
	}
	return row
}

// ApplyText runs a transformation chain over s.
func ApplyText(s string, steps []TextTransform) string {
	for _, st := range steps {
		switch strings.ToLower(st.Type) {
		case "upper":
			s = strings.ToUpper(s)
		case "lower":
			s = strings.ToLower(s)
		case "trim":
			s = strings.TrimSpace(s)
		case "replace":
			if st.Regex {
				if re, err := regexp.Compile(st.From); err == nil {
					s = re.ReplaceAllString(s, st.To)
				}
			} else if st.From != "" {
				s = strings.ReplaceAll(s, st.From, st.To)
			}
		case "substring":
			s = substring(s, st.Start, st.End)
		case "titlecase":
			s = titleCase(s)
		}
	}
	return s
}

// substring slices by rune index with the clamping rules of a lenient
// substring: out-of-range bounds clamp and swapped bounds are reordered.
func substring(s string, start, end *int) string {
	if start == nil {
		return s
	}
	rs := []rune(s)
	n := len(rs)
	lo := min(max(*start, 0), n)
	hi := n
	if end != nil {
		hi = min(max(*end, 0), n)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return string(rs[lo:hi])
}

func titleCase(s string) string {
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// MapValue looks v up in mapping by its trimmed text, exactly first and then
// case-insensitively. Unmapped values are returned unchanged.
func MapValue(v any, mapping map[string]any) any {
	key := strings.TrimSpace(text(v))
	if out, ok := mapping[key]; ok {
		return out
	}
	// Sorted so the pick is stable when several keys fold to the same text.
	for _, k := range slices.Sorted(maps.Keys(mapping)) {
		if strings.EqualFold(k, key) {
			return mapping[k]
		}
	}
	return v
}
