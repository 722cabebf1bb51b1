// Package export serializes record lists to the CSV and JSON download formats
// the dashboard offers. CSV quoting follows RFC 4180; nested JSON values are
// stringified before being embedded as cells.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// WriteCSV writes a header row followed by one row per record. The csv writer
// double-quote-escapes cells as needed.
func WriteCSV(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("export: row %d has %d cells, want %d", i, len(row), len(columns))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Cell coerces a value to its CSV cell representation. Structured values are
// JSON-serialized to a string so they survive as a single quoted cell.
func Cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case int, int64, uint, uint64, bool:
		return fmt.Sprintf("%v", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// Envelope is the JSON export document shape.
type Envelope struct {
	ExportDate time.Time   `json:"exportDate"`
	TotalLogs  int         `json:"totalLogs"`
	Logs       interface{} `json:"logs"`
}

// WriteJSON writes the pretty-printed export envelope.
func WriteJSON(w io.Writer, total int, records interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Envelope{
		ExportDate: time.Now().UTC(),
		TotalLogs:  total,
		Logs:       records,
	}); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}

// Filename builds the attachment name for a download, e.g.
// "activity-logs-2026-08-24.csv".
func Filename(kind, format string, at time.Time) string {
	return fmt.Sprintf("%s-%s.%s", kind, at.Format("2006-01-02"), format)
}
