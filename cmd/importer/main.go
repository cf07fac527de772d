package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/kirillkom/calibration-tracker/internal/bootstrap"
	"github.com/kirillkom/calibration-tracker/internal/config"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
	"github.com/kirillkom/calibration-tracker/internal/observability/logging"
)

type summary struct {
	Certificates any    `json:"certificates,omitempty"`
	Legacy       any    `json:"legacy,omitempty"`
	Report       string `json:"report,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "importer:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dir             = fs.String("dir", "", "directory of certificate documents (pdf, txt)")
		legacy          = fs.String("legacy", "", "legacy tracking spreadsheet (csv or xlsx)")
		createUnmatched = fs.Bool("create-unmatched", false, "create tools for certificates that match nothing")
		reportPath      = fs.String("report", "", "write the certificate batch report to this xlsx file")
		dbDriver        = fs.String("db", "", "override DB_DRIVER (postgres or sqlite)")
		sqlitePath      = fs.String("sqlite", "", "override SQLITE_PATH")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" && *legacy == "" {
		fs.Usage()
		return errors.New("one of -dir or -legacy is required")
	}

	cfg := config.Load()
	if *dbDriver != "" {
		cfg.DBDriver = *dbDriver
	}
	if *sqlitePath != "" {
		cfg.SQLitePath = *sqlitePath
	}
	logger := logging.NewJSONLoggerTo(stderr, "importer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "importer", Logger: logger, SkipQueue: true})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	var out summary
	if *legacy != "" {
		f, err := os.Open(*legacy)
		if err != nil {
			return fmt.Errorf("open legacy file: %w", err)
		}
		result, err := app.Legacy.ImportFile(ctx, filepath.Base(*legacy), f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("legacy import: %w", err)
		}
		out.Legacy = result
	}

	if *dir != "" {
		uploads, closeAll, err := collectUploads(*dir)
		if err != nil {
			return err
		}
		result, err := app.Certificates.Import(ctx, uploads, ports.BatchOptions{CreateUnmatched: *createUnmatched})
		closeAll()
		if err != nil {
			return fmt.Errorf("certificate import: %w", err)
		}
		out.Certificates = result

		if *reportPath != "" {
			data, err := app.Reporter.BatchReport(*result)
			if err != nil {
				return fmt.Errorf("build report: %w", err)
			}
			if err := os.WriteFile(*reportPath, data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			out.Report = *reportPath
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// collectUploads opens every regular file in dir in name order; the batch
// decides which extensions it accepts.
func collectUploads(dir string) ([]ports.Upload, func(), error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]*os.File, 0, len(names))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	uploads := make([]ports.Upload, 0, len(names))
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", name, err)
		}
		files = append(files, f)
		uploads = append(uploads, ports.Upload{Filename: name, Body: f})
	}
	return uploads, closeAll, nil
}
