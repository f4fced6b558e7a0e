package transformer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"tabload/internal/schema"
)

// DefaultRowHashColumn is RowHash.Target when unset.
const DefaultRowHashColumn = "row_hash"

// RowHash adds a deterministic SHA-256 key computed from selected columns.
// The key is never null, so it can serve as the primary key of tables whose
// natural key columns may be blank.
//
//	"rowHash": {"fields": ["plate", "valid_from"], "includeFieldNames": true, "trimSpace": true}
//
// Canonical form:
//   - fields are joined in the given order with 0x1f; an empty Fields list
//     means every other column in sorted name order;
//   - a missing or nil value is a single NUL byte, so missing differs from "";
//   - time.Time values are RFC3339Nano in UTC;
//   - the key is lowercase hex, 64 characters.
type RowHash struct {
	Fields            []string `json:"fields,omitempty"`
	Target            string   `json:"target,omitempty"`
	IncludeFieldNames bool     `json:"includeFieldNames,omitempty"`
	TrimSpace         bool     `json:"trimSpace,omitempty"`
}

func (h *RowHash) target() string {
	if h.Target == "" {
		return DefaultRowHashColumn
	}
	return h.Target
}

// Sum returns the hex key of r. r is not modified.
func (h *RowHash) Sum(r schema.Row) string {
	target := h.target()
	fields := h.Fields
	if len(fields) == 0 {
		for k := range r {
			if k != target {
				fields = append(fields, k)
			}
		}
		slices.Sort(fields)
	}

	var b strings.Builder
	b.Grow(len(fields) * 20)
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if h.IncludeFieldNames {
			b.WriteString(f)
			b.WriteByte('=')
		}
		writeCanonical(&b, r[f], h.TrimSpace)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeCanonical(b *strings.Builder, v any, trim bool) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')
	case string:
		if trim {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case time.Time:
		if !t.IsZero() {
			t = t.UTC()
		}
		b.WriteString(t.Format(time.RFC3339Nano))
	default:
		b.WriteString(fmt.Sprint(t))
	}
}
