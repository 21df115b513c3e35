package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"

	"github.com/robofleet/change-request-bot/internal/models"
	"github.com/robofleet/change-request-bot/pkg/config"
)

// statusColumn is where the lifecycle status lives; every other column is
// written once at row creation.
const statusColumn = "M"

// valuesAPI is the slice of the Sheets values API the client needs. Narrow
// on purpose so tests can stub the spreadsheet.
type valuesAPI interface {
	Get(ctx context.Context, readRange string) ([][]interface{}, error)
	Update(ctx context.Context, writeRange string, values [][]interface{}) error
	Append(ctx context.Context, writeRange string, values [][]interface{}) error
}

// Client appends one row per change request into a Google Sheet and
// updates only the status cell on subsequent calls. Row identity is keyed
// by request ID and cached after first resolution.
type Client struct {
	api       valuesAPI
	sheetName string
	logger    *zap.Logger

	mu      sync.Mutex
	rowByID map[int64]int // request ID -> 1-based sheet row
}

// NewClient builds a client against the real Sheets API using the
// configured service-account credentials.
func NewClient(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*Client, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.SheetName, logger), nil
}

func newClient(api valuesAPI, sheetName string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &Client{
		api:       api,
		sheetName: sheetName,
		logger:    logger,
		rowByID:   make(map[int64]int),
	}
}

// UpsertStatus converges to a single sheet row per request across the
// whole lifecycle: the first call appends the full snapshot, later calls
// rewrite only the status cell of that row.
func (c *Client) UpsertStatus(ctx context.Context, row models.LogRow) error {
	if rowIndex, ok := c.cachedRow(row.RequestID); ok {
		return c.updateStatus(ctx, rowIndex, row.Status)
	}

	readRange := fmt.Sprintf("%s!A2:A", c.sheetName)
	rows, err := c.api.Get(ctx, readRange)
	if err != nil {
		return fmt.Errorf("scan request ids: %w", err)
	}

	id := strconv.FormatInt(row.RequestID, 10)
	for i, r := range rows {
		if len(r) > 0 && fmt.Sprint(r[0]) == id {
			rowIndex := i + 2 // data starts at row 2
			c.cacheRow(row.RequestID, rowIndex)
			return c.updateStatus(ctx, rowIndex, row.Status)
		}
	}

	appendRange := fmt.Sprintf("%s!A1", c.sheetName)
	if err := c.api.Append(ctx, appendRange, [][]interface{}{flatten(row)}); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	c.cacheRow(row.RequestID, len(rows)+2)
	c.logger.Sugar().Infow("sheet row appended", "request_id", row.RequestID, "status", row.Status)
	return nil
}

func (c *Client) updateStatus(ctx context.Context, rowIndex int, status string) error {
	writeRange := fmt.Sprintf("%s!%s%d", c.sheetName, statusColumn, rowIndex)
	if err := c.api.Update(ctx, writeRange, [][]interface{}{{status}}); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	c.logger.Sugar().Infow("sheet status updated", "row", rowIndex, "status", status)
	return nil
}

func (c *Client) cachedRow(requestID int64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.rowByID[requestID]
	return idx, ok
}

func (c *Client) cacheRow(requestID int64, rowIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowByID[requestID] = rowIndex
}

func flatten(row models.LogRow) []interface{} {
	return []interface{}{
		strconv.FormatInt(row.RequestID, 10),
		row.RobotModel,
		row.RobotID,
		row.Classification,
		row.Content,
		row.Why,
		strings.Join(row.Approvers, ", "),
		strings.Join(row.ApproverStatus, ", "),
		strings.Join(row.Informed, ", "),
		row.Docs,
		row.Submitter,
		row.SubmittedAt.Format("2006-01-02 15:04:05"),
		row.Status,
	}
}

// googleValues adapts the generated Sheets client to valuesAPI.
type googleValues struct {
	svc           *gsheets.Service
	spreadsheetID string
}

func (g *googleValues) Get(ctx context.Context, readRange string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Update(ctx context.Context, writeRange string, values [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.
		Update(g.spreadsheetID, writeRange, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	return err
}

func (g *googleValues) Append(ctx context.Context, writeRange string, values [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.
		Append(g.spreadsheetID, writeRange, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}
