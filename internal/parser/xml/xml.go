// Package xml decodes XML input into records. The record set is the first
// repeated child element found in document order, searching depth first;
// attributes merge into the record as fields.
package xml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"tabload/internal/parser/records"
)

// ErrNoRecords means no element repeats, so no record set exists.
var ErrNoRecords = errors.New("xml: no repeated elements to build records from")

type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

// Parse decodes text.
func Parse(text string) (*records.Table, error) {
	root, err := parseTree(text)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return &records.Table{}, nil
	}

	set := findRecords(root)
	if set == nil {
		return nil, ErrNoRecords
	}

	t := &records.Table{}
	for _, e := range set {
		o, ok := toValue(e).(*records.Object)
		if !ok {
			o = records.NewObject()
			o.Set(e.name, strings.TrimSpace(e.text.String()))
		}
		t.Add(o)
	}
	return t, nil
}

func parseTree(text string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(text))

	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := &element{name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("xml: multiple root elements")
				}
				root = e
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, e)
			}
			stack = append(stack, e)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	return root, nil
}

// findRecords walks child names in first-seen order: a name that occurs more
// than once is the record set, otherwise the search descends into it.
func findRecords(e *element) []*element {
	groups := map[string][]*element{}
	var order []string
	for _, c := range e.children {
		if _, ok := groups[c.name]; !ok {
			order = append(order, c.name)
		}
		groups[c.name] = append(groups[c.name], c)
	}
	for _, name := range order {
		g := groups[name]
		if len(g) > 1 {
			return g
		}
		if found := findRecords(g[0]); found != nil {
			return found
		}
	}
	return nil
}

// toValue converts an element: a leaf without attributes is its text, a
// repeated child becomes an array, anything else an Object.
func toValue(e *element) any {
	if len(e.children) == 0 && len(e.attrs) == 0 {
		return strings.TrimSpace(e.text.String())
	}

	o := records.NewObject()
	for _, a := range e.attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		o.Set(a.Name.Local, a.Value)
	}
	for _, c := range e.children {
		v := toValue(c)
		prev, ok := o.Values[c.name]
		if !ok {
			o.Set(c.name, v)
			continue
		}
		if arr, isArr := prev.([]any); isArr {
			o.Set(c.name, append(arr, v))
		} else {
			o.Set(c.name, []any{prev, v})
		}
	}
	if len(e.children) == 0 {
		if txt := strings.TrimSpace(e.text.String()); txt != "" {
			o.Set("_", txt)
		}
	}
	return o
}
