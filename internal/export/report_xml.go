package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	loadsync "canvas-load/internal/sync"
)

type xmlReport struct {
	XMLName    xml.Name     `xml:"load_report"`
	LoadID     string       `xml:"load_id,attr"`
	Domain     string       `xml:"domain,attr"`
	StartedAt  string       `xml:"started_at"`
	FinishedAt string       `xml:"finished_at"`
	Summary    []xmlSummary `xml:"summary>kind"`
	Items      []xmlItem    `xml:"items>item"`
}

type xmlSummary struct {
	Name     string `xml:"name,attr"`
	Ok       int    `xml:"ok,attr"`
	Failed   int    `xml:"failed,attr"`
	Existing int    `xml:"existing,attr"`
}

type xmlItem struct {
	Kind     string `xml:"kind,attr"`
	Course   string `xml:"course,omitempty"`
	Name     string `xml:"name"`
	CanvasID int64  `xml:"canvas_id,omitempty"`
	Existing bool   `xml:"existing"`
	Error    string `xml:"error,omitempty"`
}

// WriteReportXML writes the report with a per-kind summary block.
func WriteReportXML(outPath string, r *loadsync.Report) error {
	b, err := MarshalReportXML(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		return fmt.Errorf("export: write xml: %w", err)
	}
	return nil
}

func MarshalReportXML(r *loadsync.Report) ([]byte, error) {
	out := xmlReport{
		LoadID:     r.LoadID,
		Domain:     r.Domain,
		StartedAt:  formatTS(r.StartedAt),
		FinishedAt: formatTS(r.FinishedAt),
		Items:      make([]xmlItem, 0, len(r.Rows)),
	}

	byKind := map[loadsync.Kind]*xmlSummary{}
	for _, kind := range r.Kinds() {
		s := &xmlSummary{Name: string(kind)}
		byKind[kind] = s
	}
	for _, row := range r.Rows {
		s := byKind[row.Kind]
		switch {
		case row.Error != "":
			s.Failed++
		case row.Existing:
			s.Existing++
			s.Ok++
		default:
			s.Ok++
		}
		out.Items = append(out.Items, xmlItem{
			Kind:     string(row.Kind),
			Course:   row.Course,
			Name:     oneLine(row.Name),
			CanvasID: row.CanvasID,
			Existing: row.Existing,
			Error:    oneLine(row.Error),
		})
	}
	for _, kind := range r.Kinds() {
		out.Summary = append(out.Summary, *byKind[kind])
	}

	b, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal xml: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}

func formatTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
