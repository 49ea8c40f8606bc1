package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"famfin/internal/core"
	ports "famfin/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID string
	// TransactionsSheet is the base tab name; the current year is prefixed
	// unless the name already starts with one.
	TransactionsSheet string
	CategoriesSheet   string
	// Credentials: inline service-account JSON or a path to it. When both are
	// empty GOOGLE_APPLICATION_CREDENTIALS is consulted.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	categoriesSheet   string
}

var (
	_ ports.TransactionExporter = (*Client)(nil)
	_ ports.CategoryReader      = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	txBase := strings.TrimSpace(opts.TransactionsSheet)
	if txBase == "" {
		txBase = "Transactions"
	}
	catSheet := strings.TrimSpace(opts.CategoriesSheet)
	if catSheet == "" {
		catSheet = "Categories"
	}

	creds, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", id)

	return &Client{
		svc:               svc,
		spreadsheetID:     id,
		transactionsSheet: yearPrefixedName(txBase, time.Now().Year()),
		categoriesSheet:   catSheet,
	}, nil
}

func loadCredentials(opts Options) ([]byte, error) {
	if js := strings.TrimSpace(opts.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(opts.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Upsert writes the transaction's row, replacing an earlier row with the same id.
func (c *Client) Upsert(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row, err := c.findRow(ctx, t.ID)
	if err != nil {
		return "", err
	}
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(t)}}

	if row > 0 {
		rng := rowRange(c.transactionsSheet, row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		return rng, nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.transactionsSheet+"!A:H", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.transactionsSheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return c.transactionsSheet, nil
}

// Remove clears the row holding the transaction, if any.
func (c *Client) Remove(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	row, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		slog.DebugContext(ctx, "Transaction not present in sheet", "id", id)
		return nil
	}
	rng := rowRange(c.transactionsSheet, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// findRow returns the 1-based row whose column A holds id, or 0.
func (c *Client) findRow(ctx context.Context, id int64) (int, error) {
	rng := c.transactionsSheet + "!A:A"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	return rowOf(resp.Values, id), nil
}

// List reads expense names from column A and income names from column B of
// the categories sheet, starting at row 2.
func (c *Client) List(ctx context.Context) ([]string, []string, error) {
	if c.svc == nil {
		return nil, nil, errors.New("sheets service not initialized")
	}
	rng := c.categoriesSheet + "!A2:B200"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return column(resp.Values, 0), column(resp.Values, 1), nil
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:H%d", sheet, row, row)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
