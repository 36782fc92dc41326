package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"go-fundo-ops/internal/config"
	"go-fundo-ops/internal/export"
)

// Publisher mirrors workbooks into a Google spreadsheet, one tab per sheet.
type Publisher interface {
	PublishWorkbook(ctx context.Context, wb *export.Workbook) ([]string, error)
}

// GoogleSheetRepository implements Publisher using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id must not be empty")
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// TabTitle names the tab a workbook sheet is published to. Google caps
// titles at 100 characters.
func TabTitle(workbook, sheet string) string {
	title := strings.NewReplacer("'", "", "!", "").Replace(workbook + "_" + sheet)
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}
	return title
}

// PublishWorkbook creates missing tabs, then overwrites each tab with the
// sheet header and rows. It returns the tab titles written.
func (r *GoogleSheetRepository) PublishWorkbook(ctx context.Context, wb *export.Workbook) ([]string, error) {
	existing, err := r.tabTitles(ctx)
	if err != nil {
		return nil, err
	}

	titles := make([]string, len(wb.Sheets))
	var requests []*sheetsapi.Request
	for i, s := range wb.Sheets {
		titles[i] = TabTitle(wb.Name, s.Name)
		if !existing[titles[i]] {
			existing[titles[i]] = true
			requests = append(requests, &sheetsapi.Request{
				AddSheet: &sheetsapi.AddSheetRequest{Properties: &sheetsapi.SheetProperties{Title: titles[i]}},
			})
		}
	}
	if len(requests) > 0 {
		_, err := r.service.Spreadsheets.BatchUpdate(r.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{Requests: requests}).
			Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("add tabs: %w", err)
		}
	}

	for i, s := range wb.Sheets {
		sheetRange := fmt.Sprintf("'%s'", titles[i])
		if _, err := r.service.Spreadsheets.Values.Clear(r.spreadsheetID, sheetRange, &sheetsapi.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return nil, fmt.Errorf("clear range %s: %w", sheetRange, err)
		}

		values := make([][]interface{}, 0, len(s.Rows)+1)
		values = append(values, toCells(s.Header))
		for _, row := range s.Rows {
			values = append(values, toCells(row))
		}
		call := r.service.Spreadsheets.Values.Update(r.spreadsheetID, sheetRange+"!A1", &sheetsapi.ValueRange{Values: values}).
			ValueInputOption("RAW").
			Context(ctx)
		if _, err := call.Do(); err != nil {
			return nil, fmt.Errorf("write range %s: %w", sheetRange, err)
		}
		r.logger.Debug("sheet published", zap.String("tab", titles[i]), zap.Int("rows", len(s.Rows)))
	}
	return titles, nil
}

func (r *GoogleSheetRepository) tabTitles(ctx context.Context) (map[string]bool, error) {
	ss, err := r.service.Spreadsheets.Get(r.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", r.spreadsheetID, err)
	}
	out := make(map[string]bool, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			out[sh.Properties.Title] = true
		}
	}
	return out, nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
