package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"canvas-load/internal/concurrency"
	"canvas-load/internal/export"
	loadsync "canvas-load/internal/sync"
)

type runOptions struct {
	workers int
	upload  bool
	xml     bool
}

// runResult is what one load left behind.
type runResult struct {
	LoadID  string
	Report  *loadsync.Report
	Path    string
	XMLPath string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <load-id>...",
		Short: "Provision one or more loads into Canvas and write a report per load",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("workers") {
				opts.workers = a.cfg.LoadWorkers
			}
			return a.runLoads(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "loads processed in parallel (default LOAD_WORKERS)")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "upload the reports over SFTP")
	cmd.Flags().BoolVar(&opts.xml, "xml", false, "also write an XML summary next to each CSV report")
	return cmd
}

func (a *app) runLoads(ctx context.Context, out io.Writer, ids []string, opts runOptions) error {
	results, errs := concurrency.ProcessParallel(ctx, ids, concurrency.ParallelOptions{MaxWorkers: opts.workers},
		func(ctx context.Context, i int, id string) (runResult, error) {
			return a.runLoad(ctx, id, opts)
		})

	var done []runResult
	for _, res := range results {
		if res.Report == nil {
			continue
		}
		done = append(done, res)
		printSummary(out, res)
	}

	if opts.upload && len(done) > 0 {
		errs = append(errs, a.uploadReports(ctx, done, opts.workers)...)
	}
	return errors.Join(errs...)
}

// runLoad runs one load. A report is kept even when the run is aborted so
// the rows done so far are not lost.
func (a *app) runLoad(ctx context.Context, id string, opts runOptions) (runResult, error) {
	res := runResult{LoadID: id}

	l, err := a.loader(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", id, err)
	}

	report, runErr := loadsync.Run(ctx, l.Load, l)
	if report == nil {
		return res, fmt.Errorf("load %s: %w", id, runErr)
	}
	res.Report = report

	res.Path, err = export.WriteReportFile(a.cfg.ReportDir, report, a.cfg.ReportBrotli)
	if err != nil {
		return res, errors.Join(runErr, fmt.Errorf("load %s: %w", id, err))
	}
	if opts.xml {
		res.XMLPath = strings.TrimSuffix(strings.TrimSuffix(res.Path, ".br"), ".csv") + ".xml"
		if err := export.WriteReportXML(res.XMLPath, report); err != nil {
			return res, errors.Join(runErr, fmt.Errorf("load %s: %w", id, err))
		}
	}
	if runErr != nil {
		return res, fmt.Errorf("load %s: %w", id, runErr)
	}
	return res, nil
}

func (a *app) uploadReports(ctx context.Context, results []runResult, workers int) []error {
	var paths []string
	for _, r := range results {
		paths = append(paths, r.Path)
		if r.XMLPath != "" {
			paths = append(paths, r.XMLPath)
		}
	}

	cfg := a.sftpConfig()
	return concurrency.ForEach(ctx, paths, concurrency.ParallelOptions{MaxWorkers: workers},
		func(ctx context.Context, i int, p string) error {
			if err := a.upload(ctx, cfg, p, filepath.Base(p)); err != nil {
				log.WithError(err).WithField("path", p).Error("report upload failed")
				return err
			}
			return nil
		})
}

func printSummary(out io.Writer, res runResult) {
	r := res.Report
	fmt.Fprintf(out, "load %s: %d rows, %d failed, report %s\n", r.LoadID, len(r.Rows), len(r.Failures()), res.Path)

	counts := r.Counts()
	for _, k := range r.Kinds() {
		fmt.Fprintf(out, "  %-12s %d\n", k, counts[k])
	}
	for _, row := range r.Failures() {
		name := row.Name
		if row.Course != "" {
			name = row.Course + "/" + row.Name
		}
		fmt.Fprintf(out, "  FAILED %s %s: %s\n", row.Kind, name, row.Error)
	}
}
