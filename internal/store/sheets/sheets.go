// Package sheets implements store.Store on a Google Sheets spreadsheet.
// Each table is one sheet (tab) of a single spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"fuelbot/internal/store"
)

// Store talks to one spreadsheet.
type Store struct {
	client        *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// New creates a Store for the given spreadsheet. The spreadsheet must exist
// and be shared with the authenticated account.
func New(ctx context.Context, httpClient *http.Client, spreadsheetID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	s := &Store{client: client, spreadsheetID: spreadsheetID, logger: logger}

	spreadsheet, err := client.Spreadsheets.Get(spreadsheetID).
		Fields("properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet %s: %w", spreadsheetID, err)
	}

	logger.Info("connected to spreadsheet",
		"title", spreadsheet.Properties.Title,
		"id", spreadsheetID,
	)
	return s, nil
}

func (s *Store) ListTables(ctx context.Context) ([]store.Table, error) {
	spreadsheet, err := s.client.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet: %w", err)
	}

	titles := make([]string, 0, len(spreadsheet.Sheets))
	ranges := make([]string, 0, len(spreadsheet.Sheets))
	for _, sh := range spreadsheet.Sheets {
		titles = append(titles, sh.Properties.Title)
		ranges = append(ranges, quoteTitle(sh.Properties.Title)+"!A1:A1")
	}
	if len(titles) == 0 {
		return nil, nil
	}

	// One batch read of every sheet's A1 tells which sheets are still empty.
	resp, err := s.client.Spreadsheets.Values.BatchGet(s.spreadsheetID).
		Ranges(ranges...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("probing sheet headers: %w", err)
	}

	tables := make([]store.Table, len(titles))
	for i, title := range titles {
		hasHeader := false
		if i < len(resp.ValueRanges) && len(resp.ValueRanges[i].Values) > 0 {
			hasHeader = true
		}
		tables[i] = store.Table{Title: title, HasHeader: hasHeader}
	}
	return tables, nil
}

func (s *Store) EnsureTable(ctx context.Context, title string, headers []string) error {
	spreadsheet, err := s.client.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet: %w", err)
	}

	exists := false
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties.Title == title {
			exists = true
			break
		}
	}

	if !exists {
		_, err := s.client.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("adding sheet %q: %w", title, err)
		}
		s.logger.Info("created sheet", "title", title)
	} else {
		// Leave non-empty sheets untouched.
		head, err := s.client.Spreadsheets.Values.Get(s.spreadsheetID, quoteTitle(title)+"!A1:A1").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("probing sheet %q: %w", title, err)
		}
		if len(head.Values) > 0 {
			return nil
		}
	}

	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	_, err = s.client.Spreadsheets.Values.Update(s.spreadsheetID, quoteTitle(title)+"!A1", &sheets.ValueRange{
		Values: [][]any{headerRow},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing headers to %q: %w", title, err)
	}

	s.logger.Info("wrote table headers", "title", title)
	return nil
}

func (s *Store) AppendRow(ctx context.Context, title string, row []string) (int, error) {
	values := make([]any, len(row))
	for i, c := range row {
		values[i] = c
	}
	req := &sheets.ValueRange{Values: [][]any{values}}

	var appended *sheets.AppendValuesResponse
	err := retry.Do(
		func() error {
			var err error
			appended, err = s.client.Spreadsheets.Values.Append(s.spreadsheetID, quoteTitle(title)+"!A1", req).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(60*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, fmt.Errorf("appending to %q: %w", title, err)
	}

	n, err := rowFromRange(appended.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("parsing append response: %w", err)
	}
	return n, nil
}

func (s *Store) ReadRows(ctx context.Context, title string) ([][]string, error) {
	resp, err := s.client.Spreadsheets.Values.Get(s.spreadsheetID, quoteTitle(title)+"!A2:Z").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", title, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		row := make([]string, len(r))
		for i, c := range r {
			row[i] = fmt.Sprint(c)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) UpdateCell(ctx context.Context, title string, row, col int, value string) error {
	cell := fmt.Sprintf("%s!%s%d", quoteTitle(title), columnLetter(col), row)
	_, err := s.client.Spreadsheets.Values.Update(s.spreadsheetID, cell, &sheets.ValueRange{
		Values: [][]any{{value}},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("updating %s: %w", cell, err)
	}
	return nil
}

// quoteTitle wraps a sheet title in single quotes for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// columnLetter converts a 1-based column number to its A1 letters.
func columnLetter(col int) string {
	var out []byte
	for col > 0 {
		col--
		out = append([]byte{byte('A' + col%26)}, out...)
		col /= 26
	}
	return string(out)
}

// rowFromRange extracts the row number from an updated range like
// "'Авто 5513'!A7:H7".
func rowFromRange(a1 string) (int, error) {
	_, cells, ok := strings.Cut(a1, "!")
	if !ok {
		return 0, fmt.Errorf("no cell reference in %q", a1)
	}
	start, _, _ := strings.Cut(cells, ":")
	i := 0
	for i < len(start) && (start[i] < '0' || start[i] > '9') {
		i++
	}
	if i == len(start) {
		return 0, fmt.Errorf("no row number in %q", a1)
	}
	n, err := strconv.Atoi(start[i:])
	if err != nil {
		return 0, fmt.Errorf("bad row number in %q: %w", a1, err)
	}
	return n, nil
}
