package appointments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, clock string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, day+" "+clock, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRecordRowUsesCanonicalLayout(t *testing.T) {
	rec := Record{
		Start:       at("2024-06-10", "09:00:00"),
		End:         at("2024-06-10", "10:00:00"),
		PatientName: "Ana Silva",
		Contact:     "+55 11 99999-0000",
		Reason:      "limpeza",
		CreatedAt:   at("2024-06-01", "08:30:15"),
	}
	assert.Equal(t, []string{
		"2024-06-10 09:00:00",
		"2024-06-10 10:00:00",
		"Ana Silva",
		"+55 11 99999-0000",
		"limpeza",
		"2024-06-01 08:30:15",
	}, rec.Row())
}

func TestParseTimeToleratesFraction(t *testing.T) {
	got, err := ParseTime("2024-06-10 09:00:00.123456")
	require.NoError(t, err)
	assert.True(t, got.Equal(at("2024-06-10", "09:00:00")))

	_, err = ParseTime("amanhã às 10")
	assert.Error(t, err)
}

func TestRowsToRecords(t *testing.T) {
	values := [][]string{
		Columns,
		{"2024-06-10 09:00:00", "2024-06-10 10:00:00", "Ana", "123", "limpeza", "2024-06-01 08:00:00"},
		{"", "", "", "", "", ""},
		{"2024-06-10 14:00:00", "2024-06-10 15:00:00", "Bruno", "456"},
	}
	records, err := RowsToRecords(values)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ana", records[0].PatientName)
	assert.Equal(t, "Bruno", records[1].PatientName)
	assert.Empty(t, records[1].Reason)
	assert.True(t, records[1].CreatedAt.IsZero())
}

func TestRowsToRecordsWithoutHeaderIsEmpty(t *testing.T) {
	records, err := RowsToRecords([][]string{{"foo", "bar"}})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = RowsToRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRowsToRecordsMalformedDate(t *testing.T) {
	_, err := RowsToRecords([][]string{
		Columns,
		{"10/06/2024 09:00", "2024-06-10 10:00:00", "Ana", "", "", ""},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColumnStart)
}

func TestOnDay(t *testing.T) {
	records := []Record{
		{Start: at("2024-06-10", "09:00:00")},
		{Start: at("2024-06-11", "09:00:00")},
		{Start: at("2024-06-10", "17:00:00")},
	}
	got := OnDay(records, at("2024-06-10", "23:59:59"))
	assert.Len(t, got, 2)
}
