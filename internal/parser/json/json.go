// Package json decodes JSON input into records. Accepted shapes:
//   - a root array of objects;
//   - a root object whose first array-valued field holds the records
//     (envelope), or that is itself the only record;
//   - a stream of values (NDJSON), each an object.
//
// Numbers are kept as json.Number so integer digits survive untouched.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"tabload/internal/parser/records"
)

// ErrNoRecords means the document holds no array of objects or object.
var ErrNoRecords = errors.New("json: no records found (want an array of objects or NDJSON)")

// Parse decodes text.
func Parse(text string) (*records.Table, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var values []any
	for {
		v, err := decodeValue(dec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("json: value %d: %w", len(values)+1, err)
		}
		values = append(values, v)
	}

	var recs []any
	switch len(values) {
	case 0:
		return &records.Table{}, nil
	case 1:
		recs = recordSet(values[0])
	default:
		recs = values
	}
	if recs == nil {
		return nil, ErrNoRecords
	}

	t := &records.Table{}
	for i, r := range recs {
		switch o := r.(type) {
		case nil:
			continue
		case *records.Object:
			t.Add(o)
		default:
			return nil, fmt.Errorf("json: record %d is %T, want object", i+1, r)
		}
	}
	return t, nil
}

func recordSet(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case *records.Object:
		for _, k := range t.Keys {
			if arr, ok := t.Values[k].([]any); ok {
				return arr
			}
		}
		return []any{t}
	}
	return nil
}

// decodeValue reads one JSON value, keeping object key order.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch d {
	case '{':
		o := records.NewObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			k, _ := kt.(string)
			v, err := decodeValue(dec)
			if err != nil {
				return nil, unexpected(err)
			}
			o.Set(k, v)
		}
		_, err := dec.Token()
		return o, unexpected(err)
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, unexpected(err)
			}
			arr = append(arr, v)
		}
		_, err := dec.Token()
		return arr, unexpected(err)
	}
	return nil, fmt.Errorf("unexpected delimiter %q", d)
}

// unexpected turns an EOF inside a value into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
