package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pfm/internal/core"
	"pfm/internal/log"
	ports "pfm/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Activity"

var ErrNotInitialized = errors.New("sheets service not initialized")

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Activity"); rows go to "<year> <base>".
	sheetBase string
	logger    *log.Logger
}

// Ensure interface conformance
var _ ports.ActivityWriter = (*Client)(nil)

// Options selects the spreadsheet and the service account used to write it.
// CredentialsJSON wins over CredentialsFile; with neither set
// GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = defaultSheetName
	}

	logger := log.Default().WithComponent(log.ComponentSheets)
	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     base,
		logger:        logger,
	}, nil
}

func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(inline)
	case file != "":
		logger.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendActivity adds one row for a to the sheet of the year it happened in
// and returns the updated range.
func (c *Client) AppendActivity(ctx context.Context, a core.Activity) (string, error) {
	if c.svc == nil {
		return "", ErrNotInitialized
	}
	sheet := yearPrefixedName(c.sheetBase, a.CreatedAt.Year())
	rng := fmt.Sprintf("%s!A:I", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{activityRow(a)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Appended activity row", log.FieldActivityID, a.ID, "range", ref)
	return ref, nil
}

// activityRow lays out columns A..I: timestamp, correlation id, actor,
// resource, action, resource id, outcome, detail, journal id.
func activityRow(a core.Activity) []any {
	resourceID := ""
	if a.ResourceID != 0 {
		resourceID = strconv.FormatInt(a.ResourceID, 10)
	}
	return []any{
		a.CreatedAt.UTC().Format(time.DateTime),
		a.CorrelationID,
		a.Actor,
		a.Resource,
		a.Action,
		resourceID,
		string(a.Outcome),
		a.Detail,
		a.ID,
	}
}

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
