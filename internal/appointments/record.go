package appointments

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the canonical text form of every timestamp the schedule stores.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultDuration is the fixed length of every appointment.
const DefaultDuration = 60 * time.Minute

// Column names of the tabular schedule, in row order.
const (
	ColumnStart     = "data_inicio"
	ColumnEnd       = "data_fim"
	ColumnName      = "nome"
	ColumnContact   = "contato"
	ColumnReason    = "motivo"
	ColumnCreatedAt = "criado_em"
)

// Columns lists the header in the order rows are written.
var Columns = []string{ColumnStart, ColumnEnd, ColumnName, ColumnContact, ColumnReason, ColumnCreatedAt}

// Record is one booked appointment. The interval is [Start, End).
type Record struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	PatientName string    `json:"patient_name"`
	Contact     string    `json:"contact"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// Row renders the record as ordered text values matching Columns.
func (r Record) Row() []string {
	return []string{
		FormatTime(r.Start),
		FormatTime(r.End),
		r.PatientName,
		r.Contact,
		r.Reason,
		FormatTime(r.CreatedAt),
	}
}

// FormatTime renders t in the canonical layout. The zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// ParseTime parses canonical text in the local zone. A trailing fractional
// second part, as produced by some spreadsheet exports, is tolerated.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, '.'); idx == len(TimeLayout) {
		value = value[:idx]
	}
	return time.ParseInLocation(TimeLayout, value, time.Local)
}

// ParseRow converts a header-keyed row into a Record. Start and end are
// required; a missing or unparseable created_at is left zero.
func ParseRow(row map[string]string) (Record, error) {
	start, err := ParseTime(row[ColumnStart])
	if err != nil {
		return Record{}, fmt.Errorf("appointments: invalid %s %q: %w", ColumnStart, row[ColumnStart], err)
	}
	end, err := ParseTime(row[ColumnEnd])
	if err != nil {
		return Record{}, fmt.Errorf("appointments: invalid %s %q: %w", ColumnEnd, row[ColumnEnd], err)
	}
	rec := Record{
		Start:       start,
		End:         end,
		PatientName: row[ColumnName],
		Contact:     row[ColumnContact],
		Reason:      row[ColumnReason],
	}
	if created, err := ParseTime(row[ColumnCreatedAt]); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

// RowsToRecords maps raw tabular values (header first) to records. Blank rows
// are skipped. A table without the start column yields no records, mirroring
// an empty sheet.
func RowsToRecords(values [][]string) ([]Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	header := make([]string, len(values[0]))
	hasStart := false
	for i, h := range values[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] == ColumnStart {
			hasStart = true
		}
	}
	if !hasStart {
		return nil, nil
	}

	records := make([]Record, 0, len(values)-1)
	for _, raw := range values[1:] {
		if isBlankRow(raw) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(raw) {
				row[key] = raw[i]
			}
		}
		rec, err := ParseRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// OnDay filters records whose start falls on the calendar day of day.
func OnDay(records []Record, day time.Time) []Record {
	y, m, d := day.Date()
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		ry, rm, rd := rec.Start.Date()
		if ry == y && rm == m && rd == d {
			out = append(out, rec)
		}
	}
	return out
}

func isBlankRow(raw []string) bool {
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
