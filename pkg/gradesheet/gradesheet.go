// Package gradesheet parses tabular grade files into rows the grading engine
// can consume. Cell contents are returned untouched; validating them against
// the rubric and roster is the importer's job.
package gradesheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one parsed line of a grade sheet: student id, score, feedback.
type Row struct {
	StudentID string
	Score     string
	Feedback  string
}

// Parse reads a comma-separated grade sheet. A header line starting with
// "student" is skipped; blank lines are ignored.
func Parse(reader io.Reader) ([]Row, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse grade sheet: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for i, record := range records {
		if len(record) == 0 {
			continue
		}

		first := strings.TrimSpace(record[0])
		if first == "" && len(record) == 1 {
			continue
		}
		if i == 0 && strings.HasPrefix(strings.ToLower(first), "student") {
			continue
		}

		row := Row{StudentID: first}
		if len(record) > 1 {
			row.Score = strings.TrimSpace(record[1])
		}
		if len(record) > 2 {
			row.Feedback = strings.TrimSpace(record[2])
		}
		rows = append(rows, row)
	}

	return rows, nil
}
