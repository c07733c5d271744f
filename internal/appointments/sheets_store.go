package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

var sheetsTracer = otel.Tracer("dental.internal.appointments.sheets")

// rawInput keeps appended text exactly as supplied so dates are not coerced
// into spreadsheet serial numbers.
const rawInput = "RAW"

// SheetsStore keeps the schedule in a Google Sheets worksheet whose first row
// is the header in Columns.
type SheetsStore struct {
	service       *sheets.Service
	spreadsheetID string
	worksheet     string
	logger        *logging.Logger
}

var _ Store = (*SheetsStore)(nil)

// SheetsConfig identifies the worksheet backing the schedule.
type SheetsConfig struct {
	SpreadsheetID string
	Worksheet     string
}

// NewSheetsStore builds a store from client options, e.g.
// option.WithCredentialsFile for a service account.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, logger *logging.Logger, opts ...option.ClientOption) (*SheetsStore, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("appointments: spreadsheet id is required")
	}
	if strings.TrimSpace(cfg.Worksheet) == "" {
		cfg.Worksheet = "Sheet1"
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("appointments: create sheets service: %w", err)
	}
	return &SheetsStore{
		service:       svc,
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     cfg.Worksheet,
		logger:        logger,
	}, nil
}

func (s *SheetsStore) tableRange() string {
	return fmt.Sprintf("%s!A:F", s.worksheet)
}

// EnsureHeader writes the header row when the worksheet is empty.
func (s *SheetsStore) EnsureHeader(ctx context.Context) error {
	headerRange := fmt.Sprintf("%s!A1:F1", s.worksheet)
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return &StoreReadError{Backend: "sheets", Err: err}
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &sheets.ValueRange{
		Values: [][]interface{}{toCells(Columns)},
	}).ValueInputOption(rawInput).Context(ctx).Do()
	if err != nil {
		return &StoreWriteError{Backend: "sheets", Err: err}
	}
	s.logger.Info("sheets: wrote schedule header", "worksheet", s.worksheet)
	return nil
}

func (s *SheetsStore) ReadAll(ctx context.Context) ([]Record, error) {
	ctx, span := sheetsTracer.Start(ctx, "appointments.sheets.read_all")
	defer span.End()

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.tableRange()).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return nil, &StoreReadError{Backend: "sheets", Err: err}
	}
	values := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		values = append(values, cells)
	}
	records, err := RowsToRecords(values)
	if err != nil {
		span.RecordError(err)
		return nil, &StoreReadError{Backend: "sheets", Err: err}
	}
	span.SetAttributes(attribute.Int("dental.records", len(records)))
	return records, nil
}

func (s *SheetsStore) Append(ctx context.Context, rec Record) error {
	ctx, span := sheetsTracer.Start(ctx, "appointments.sheets.append")
	defer span.End()

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.tableRange(), &sheets.ValueRange{
		Values: [][]interface{}{toCells(rec.Row())},
	}).ValueInputOption(rawInput).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return &StoreWriteError{Backend: "sheets", Err: err}
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
