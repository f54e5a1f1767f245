package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"

	loadsync "canvas-load/internal/sync"
)

// ReportFileName is "load-<id>-<finished at>.csv", in UTC.
func ReportFileName(r *loadsync.Report) string {
	ts := r.FinishedAt
	if ts.IsZero() {
		ts = r.StartedAt
	}
	id := strings.TrimSpace(r.LoadID)
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("load-%s-%s.csv", id, ts.UTC().Format("20060102T150405Z"))
}

// WriteReportFile writes the CSV report into dir and returns its path. With
// compress the file is brotli encoded and gets a ".br" suffix.
func WriteReportFile(dir string, r *loadsync.Report, compress bool) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}

	name := ReportFileName(r)
	if compress {
		name += ".br"
	}
	outPath := filepath.Join(dir, name)

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("export: create file: %w", err)
	}

	if err := writeReport(f, r, compress); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("export: close file: %w", err)
	}
	return outPath, nil
}

func writeReport(w io.Writer, r *loadsync.Report, compress bool) error {
	bw := bufio.NewWriter(w)
	if !compress {
		if err := WriteReportCSV(bw, r); err != nil {
			return fmt.Errorf("export: write csv: %w", err)
		}
		return bw.Flush()
	}

	br := brotli.NewWriterLevel(bw, brotli.DefaultCompression)
	if err := WriteReportCSV(br, r); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("export: brotli: %w", err)
	}
	return bw.Flush()
}

// ReadReportFile returns the CSV bytes of a report written by WriteReportFile,
// decompressing ".br" files.
func ReadReportFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".br") {
		r = brotli.NewReader(f)
	}
	return io.ReadAll(r)
}
