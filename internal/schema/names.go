package schema

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeName converts arbitrary header text into a lowercase SQL identifier:
//  1. NFKD decompose and drop nonspacing marks ("Año" -> "Ano")
//  2. every rune outside [A-Za-z0-9_] becomes '_'; runs of '_' collapse
//  3. trim '_' at both ends and lowercase
//  4. empty -> "<prefix>_<n>" (or "<prefix>" when n <= 0)
//  5. a leading digit gets "<prefix>_" prepended
func SanitizeName(name, prefix string, n int) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		folded = name
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range folded {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		prevUnderscore = false
	}
	out := strings.Trim(b.String(), "_")

	if out == "" {
		if n > 0 {
			return prefix + "_" + strconv.Itoa(n)
		}
		return prefix
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = prefix + "_" + out
	}
	return out
}

// DeriveTableName returns the sanitized override when given, otherwise the
// sanitized base name of path without its extension.
func DeriveTableName(path, override string) string {
	if strings.TrimSpace(override) != "" {
		return SanitizeName(override, "table", 0)
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "table"
	}
	return SanitizeName(base, "table", 0)
}

// namer hands out collision-free names, suffixing _2, _3, ... on repeats.
type namer struct {
	used map[string]bool
}

func newNamer() *namer { return &namer{used: map[string]bool{}} }

func (n *namer) take(candidate string) string {
	name := candidate
	for i := 2; n.used[name]; i++ {
		name = candidate + "_" + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}
