// Package google exports grocery lists into a Google Sheets spreadsheet,
// one new tab per export.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"smartplates/internal/core"
	"smartplates/internal/grocery/export"
)

// maxSheetTitle is the Sheets limit on tab names.
const maxSheetTitle = 100

// Credentials selects the service account used for the export.
type Credentials struct {
	SpreadsheetID string
	// JSON wins over File when both are set
	JSON string
	File string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	now           func() time.Time
}

// Result describes where an export was written.
type Result struct {
	SheetTitle string `json:"sheetTitle"`
	SheetID    int64  `json:"sheetId"`
	Rows       int    `json:"rows"`
	URL        string `json:"url"`
}

// NewExporter builds an exporter authenticated with a service account.
func NewExporter(ctx context.Context, creds Credentials) (*Exporter, error) {
	if strings.TrimSpace(creds.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewExporterWithService(svc, creds.SpreadsheetID), nil
}

// NewExporterWithService wraps an existing Sheets service.
func NewExporterWithService(svc *gsheet.Service, spreadsheetID string) *Exporter {
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, now: time.Now}
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		credentialsJSON = []byte(creds.JSON)
	case strings.TrimSpace(creds.File) != "":
		data, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	slog.DebugContext(ctx, "Creating Google Sheets service", "scope", gsheet.SpreadsheetsScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Export adds a tab named after the list and writes its rows into it.
func (e *Exporter) Export(ctx context.Context, list core.GroceryList) (Result, error) {
	if e.svc == nil {
		return Result{}, errors.New("sheets service not initialized")
	}
	title := SheetTitle(list.Name, e.now())

	batch, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{
					Title: title,
					GridProperties: &gsheet.GridProperties{
						FrozenRowCount: 1,
					},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return Result{}, fmt.Errorf("add sheet %q: %w", title, err)
	}
	var sheetID int64
	if len(batch.Replies) > 0 && batch.Replies[0].AddSheet != nil && batch.Replies[0].AddSheet.Properties != nil {
		sheetID = batch.Replies[0].AddSheet.Properties.SheetId
	}

	rows := Rows(list)
	rng := fmt.Sprintf("'%s'!A1", strings.ReplaceAll(title, "'", "''"))
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return Result{}, fmt.Errorf("write grocery rows: %w", err)
	}

	slog.InfoContext(ctx, "Exported grocery list to Google Sheets",
		"list_id", list.ID,
		"sheet", title,
		"rows", len(rows))

	return Result{
		SheetTitle: title,
		SheetID:    sheetID,
		Rows:       len(rows),
		URL:        fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", e.spreadsheetID, sheetID),
	}, nil
}

// SheetTitle derives a tab name from the list name and export time. Sheets
// rejects []*?/\: in titles, so they become spaces.
func SheetTitle(listName string, at time.Time) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]*?/\:`, r) {
			return ' '
		}
		return r
	}, strings.TrimSpace(listName))
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		name = "Grocery List"
	}
	suffix := " " + at.Format("2006-01-02 15.04.05")
	if runes := []rune(name); len(runes)+len([]rune(suffix)) > maxSheetTitle {
		name = string(runes[:maxSheetTitle-len([]rune(suffix))])
	}
	return name + suffix
}

// Header is the first row of every exported tab.
var Header = []interface{}{"Purchased", "Item", "Amount", "Category", "Recipes", "Estimated cost"}

// Rows lays the list out in the same order as the text and PDF exports.
func Rows(list core.GroceryList) [][]interface{} {
	rows := [][]interface{}{Header}
	for _, sec := range export.Sections(list) {
		for i, r := range sec.Rows {
			category := sec.Heading
			if category == "" && !list.Options.CategorizeItems {
				category = itemCategory(list, i)
			}
			rows = append(rows, []interface{}{r.Purchased, r.Name, r.Amount, category, r.Recipes, r.Cost})
		}
	}
	if list.TotalEstimatedCost != nil {
		rows = append(rows, []interface{}{"", "Total", "", "", "", list.TotalEstimatedCost.String()})
	}
	return rows
}

func itemCategory(list core.GroceryList, i int) string {
	if i < len(list.Items) {
		return list.Items[i].Category
	}
	return ""
}
