// Package html decodes the rows of a markup <table> into records.
package html

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tabload/internal/parser/records"
)

// DefaultSelector picks the first table in the document.
const DefaultSelector = "table"

// ErrNoTable means the selector matched nothing.
var ErrNoTable = errors.New("html: no table matched")

// Parse reads the first table matched by selector (DefaultSelector when
// empty). Header cells come from the first row holding <th> cells; without
// one, columns are named col_1, col_2, ...
func Parse(text, selector string) (*records.Table, error) {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultSelector
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	var header []string
	t := &records.Table{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Rows of nested tables belong to those tables.
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		if header == nil && tr.ChildrenFiltered("th").Length() > 0 {
			tr.ChildrenFiltered("th, td").Each(func(_ int, c *goquery.Selection) {
				header = append(header, cellText(c))
			})
			t.AddHeader(header...)
			return
		}

		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		o := records.NewObject()
		blank := true
		cells.Each(func(i int, c *goquery.Selection) {
			v := cellText(c)
			if v != "" {
				blank = false
			}
			o.Set(columnName(header, i), v)
		})
		if !blank {
			t.Add(o)
		}
	})
	return t, nil
}

func columnName(header []string, i int) string {
	if i < len(header) {
		return header[i]
	}
	return "col_" + strconv.Itoa(i+1)
}

func cellText(c *goquery.Selection) string {
	return strings.Join(strings.Fields(c.Text()), " ")
}
