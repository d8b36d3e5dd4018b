// Package export renders grocery lists as downloadable documents.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"smartplates/internal/core"
	"smartplates/internal/grocery"
)

type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts "text", "txt" and "pdf".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt", "":
		return FormatText, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Document is a rendered export ready to be served.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Render produces the document for the requested format.
func Render(format Format, list core.GroceryList) (Document, error) {
	var buf bytes.Buffer
	switch format {
	case FormatText:
		if err := WriteText(&buf, list); err != nil {
			return Document{}, err
		}
		return Document{Filename: Filename(list.Name, "txt"), ContentType: "text/plain; charset=utf-8", Body: buf.Bytes()}, nil
	case FormatPDF:
		if err := WritePDF(&buf, list); err != nil {
			return Document{}, err
		}
		return Document{Filename: Filename(list.Name, "pdf"), ContentType: "application/pdf", Body: buf.Bytes()}, nil
	}
	return Document{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Filename derives a file name from the list name by replacing every
// non-alphanumeric character with an underscore.
func Filename(name, ext string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "grocery_list"
	}
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String() + "." + ext
}

// Section is a block of rows rendered under one heading. The heading is
// empty for uncategorized lists.
type Section struct {
	Heading string
	Rows    []Row
}

type Row struct {
	Purchased bool
	Name      string
	Amount    string
	Recipes   string
	Cost      string
}

// Sections lays out the list the way every renderer prints it: one section
// per category when the list is categorized, otherwise a single section.
// Each item appears exactly once.
func Sections(list core.GroceryList) []Section {
	if !list.Options.CategorizeItems || len(list.Categories) == 0 {
		return []Section{{Rows: rows(list.Items)}}
	}
	names := list.CategoryNames()
	out := make([]Section, 0, len(names))
	for _, name := range names {
		out = append(out, Section{Heading: name, Rows: rows(list.Categories[name])})
	}
	return out
}

func rows(items []core.GroceryItem) []Row {
	out := make([]Row, 0, len(items))
	for _, it := range items {
		r := Row{
			Purchased: it.IsPurchased,
			Name:      it.DisplayName,
			Amount:    Amount(it),
			Recipes:   strings.Join(it.Recipes, ", "),
		}
		if r.Name == "" {
			r.Name = it.Name
		}
		if it.EstimatedCost != nil {
			r.Cost = it.EstimatedCost.String()
		}
		out = append(out, r)
	}
	return out
}

// Amount renders the summed quantity followed by any amounts that could not
// be summed.
func Amount(it core.GroceryItem) string {
	var parts []string
	if it.Quantity > 0 {
		q := grocery.FormatQuantity(it.Quantity)
		if it.Unit != "" {
			q += " " + it.Unit
		}
		parts = append(parts, q)
	}
	parts = append(parts, it.AmountNotes...)
	return strings.Join(parts, " + ")
}

func summary(list core.GroceryList) string {
	s := fmt.Sprintf("%d items, %d purchased", list.ItemsCount, list.PurchasedCount)
	if list.TotalEstimatedCost != nil {
		s += fmt.Sprintf(", estimated total %s", list.TotalEstimatedCost.String())
	}
	return s
}
