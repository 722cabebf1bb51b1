package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVRoundTrip(t *testing.T) {
	columns := []string{"id", "email", "action", "details"}
	rows := [][]string{
		{"1", "alice@example.com", "USER_INVITED", Cell(map[string]string{"role": "QC"})},
		{"2", "bob@example.com", `said "hello", twice`, ""},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, columns, rows))

	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, columns, parsed[0])
	assert.Equal(t, rows[0], parsed[1])
	// Quotes and commas survive the quoting round trip.
	assert.Equal(t, rows[1], parsed[2])

	// The JSON-valued cell parses back to the original object.
	var details map[string]string
	require.NoError(t, json.Unmarshal([]byte(parsed[1][3]), &details))
	assert.Equal(t, "QC", details["role"])
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"id", "email"}, nil))
	assert.Equal(t, "id,email\n", buf.String())
}

func TestWriteCSVRowWidthMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"id", "email"}, [][]string{{"1"}})
	assert.Error(t, err)
}

func TestCell(t *testing.T) {
	at := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", "plain", "plain"},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"time", at, "2026-03-01T10:00:00Z"},
		{"map", map[string]int{"n": 1}, `{"n":1}`},
		{"slice", []string{"a", "b"}, `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cell(tt.in))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	logs := []map[string]interface{}{
		{"id": 1, "action": "LOGIN"},
		{"id": 2, "action": "EXPORT"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, len(logs), logs))

	var doc struct {
		ExportDate time.Time                `json:"exportDate"`
		TotalLogs  int                      `json:"totalLogs"`
		Logs       []map[string]interface{} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.TotalLogs)
	assert.Len(t, doc.Logs, 2)
	assert.False(t, doc.ExportDate.IsZero())
	// Pretty-printed output.
	assert.True(t, strings.Contains(buf.String(), "\n  "))
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "activity-logs-2026-03-01.csv", Filename("activity-logs", "csv", at))
}
