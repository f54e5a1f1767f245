package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	loadsync "canvas-load/internal/sync"
)

// Keep header order EXACT, downstream sheets key on it.
var reportHeader = []string{
	"KIND",
	"COURSE",
	"NAME",
	"CANVAS_ID",
	"EXISTING",
	"STATUS",
	"ERROR",
}

// WriteReportCSV writes one line per report row.
func WriteReportCSV(w io.Writer, r *loadsync.Report) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if err := cw.Write(toReportRow(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toReportRow(row loadsync.Row) []string {
	status := "ok"
	if row.Error != "" {
		status = "failed"
	}

	canvasID := ""
	if row.CanvasID > 0 {
		canvasID = strconv.FormatInt(row.CanvasID, 10)
	}

	return []string{
		string(row.Kind),                 // KIND
		row.Course,                       // COURSE
		oneLine(row.Name),                // NAME
		canvasID,                         // CANVAS_ID
		strconv.FormatBool(row.Existing), // EXISTING
		status,                           // STATUS
		oneLine(row.Error),               // ERROR
	}
}

// oneLine keeps API error bodies from breaking rows in spreadsheet tools.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
