package records

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Supported input encodings.
const (
	UTF8   = "utf-8"
	Latin1 = "latin1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding reports UTF8 for valid UTF-8 input and Latin1 otherwise.
func DetectEncoding(b []byte) string {
	if utf8.Valid(b) {
		return UTF8
	}
	return Latin1
}

func lookupEncoding(name string) (encoding.Encoding, string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return unicode.UTF8, UTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, Latin1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, "windows-1252", nil
	}
	return nil, "", fmt.Errorf("unsupported encoding %q", name)
}

// Decode converts b to UTF-8 text. An empty name auto-detects. A leading
// UTF-8 byte order mark is dropped. The returned name is the encoding used.
func Decode(b []byte, name string) (string, string, error) {
	if name == "" {
		name = DetectEncoding(b)
	}
	enc, used, err := lookupEncoding(name)
	if err != nil {
		return "", "", err
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", used, err)
	}
	return string(out), used, nil
}
