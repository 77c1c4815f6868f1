package grades

import (
	"fmt"
	"strconv"
	"strings"
)

// IDColumn is the reserved key column of the grade sheet. Every other
// column is a subject name.
const IDColumn = "ID"

// Table is the grade sheet as fetched: header from the first row, one
// record per student. Cell values are kept as strings so ids with
// leading zeros survive intact.
type Table struct {
	Header  []string
	Records [][]string
}

// Row is a single student's record, aligned with the table header. It
// carries every column including ID - excluding ID from display is the
// presentation layer's job.
type Row struct {
	Header []string `json:"header"`
	Values []string `json:"values"`
}

func makeTable(rows [][]interface{}) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	// .. header
	header := []string{}
	index := map[string]int{}
	for i, v := range rows[0] {
		k := strings.TrimSpace(cell(v))
		if k == "" {
			return nil, fmt.Errorf("blank column name in header row")
		}

		if _, ok := index[k]; ok {
			return nil, fmt.Errorf("duplicate column name '%s'", k)
		}

		index[k] = i
		header = append(header, k)
	}

	if _, ok := index[IDColumn]; !ok {
		return nil, fmt.Errorf("missing '%s' column", IDColumn)
	}

	// ... records, padded/truncated to the header width
	records := [][]string{}
	for _, row := range rows[1:] {
		record := make([]string, len(header))
		for i := range header {
			if i < len(row) {
				record[i] = cell(row[i])
			}
		}

		records = append(records, record)
	}

	return &Table{
		Header:  header,
		Records: records,
	}, nil
}

func cell(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""

	case string:
		return v

	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)

	case bool:
		return strconv.FormatBool(v)

	default:
		return fmt.Sprintf("%v", v)
	}
}
