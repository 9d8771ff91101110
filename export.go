package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/auth"
	"github.com/ekaya-inc/ekaya-reports/pkg/config"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

var exportFlags struct {
	report     string
	format     string
	out        string
	search     string
	sortColumn int
	sortDir    string
	tenant     string
	userEmail  string
	session    map[string]string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a report to a CSV or XLSX file",
	Example: `  ekaya-reports export --report ORD --format csv --tenant acme
  ekaya-reports export --report sales --format xlsx --out sales.xlsx --search north`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, ok := models.ParseExportFormat(exportFlags.format)
		if !ok {
			return fmt.Errorf("unsupported format %q (must be csv or xlsx)", exportFlags.format)
		}

		cfg, err := config.LoadFile(configPath, Version)
		if err != nil {
			return err
		}
		// Keep the terminal for the spinner; only warnings reach stderr.
		logger, err := zap.NewProduction(zap.IncreaseLevel(zap.WarnLevel))
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx = auth.WithClaims(ctx, &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "cli"},
			TenantID:         exportFlags.tenant,
			Email:            exportFlags.userEmail,
		})
		if len(exportFlags.session) > 0 {
			values := make(map[any]any, len(exportFlags.session))
			for k, v := range exportFlags.session {
				values[k] = v
			}
			ctx = auth.WithSessionValues(ctx, values)
		}

		direction := models.SortAsc
		if exportFlags.sortDir == "desc" || exportFlags.sortDir == "DESC" {
			direction = models.SortDesc
		}
		req := &models.GridRequest{
			GlobalSearch:  exportFlags.search,
			SortColumn:    exportFlags.sortColumn,
			SortDirection: direction,
			Format:        format,
		}

		spinner, _ := pterm.DefaultSpinner.Start("Exporting report " + exportFlags.report)

		var (
			file *os.File
			path string
		)
		open := func(def *models.ReportDefinition, columns []string) (export.RowWriter, error) {
			path = exportFlags.out
			if path == "" {
				path = fmt.Sprintf("%s_%s.%s", def.FileBaseName(), time.Now().Format("20060102_150405"), format.Extension())
			}
			f, err := os.Create(path)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", path, err)
			}
			file = f

			if format == models.ExportFormatXLSX {
				return export.NewXLSXWriter(f, def.Title)
			}
			return export.NewCSVWriter(f, export.CSVOptions{
				Delimiter: cfg.Export.CSVDelimiterRune(),
				CRLF:      cfg.Export.CSVCRLF,
				BOM:       cfg.Export.CSVBOM,
			}), nil
		}

		n, err := eng.service.Export(ctx, exportFlags.report, req, open)
		if file != nil {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close %s: %w", path, cerr)
			}
		}
		if err != nil {
			if spinner != nil {
				spinner.Fail("Export failed")
			}
			if file != nil {
				_ = os.Remove(path)
			}
			return err
		}

		if spinner != nil {
			spinner.Success(fmt.Sprintf("Exported %d rows to %s", n, path))
		}
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.report, "report", "r", "", "report id or short code")
	f.StringVarP(&exportFlags.format, "format", "f", "csv", "output format: csv or xlsx")
	f.StringVarP(&exportFlags.out, "out", "o", "", "output file (default <short-code>_<timestamp>.<ext>)")
	f.StringVar(&exportFlags.search, "search", "", "global search term")
	f.IntVar(&exportFlags.sortColumn, "sort-column", 0, "zero-based column index to sort by")
	f.StringVar(&exportFlags.sortDir, "sort-dir", "asc", "sort direction: asc or desc")
	f.StringVar(&exportFlags.tenant, "tenant", "", "tenant bound to @tenant parameters")
	f.StringVar(&exportFlags.userEmail, "user-email", "", "email bound to @user:email parameters")
	f.StringToStringVar(&exportFlags.session, "session", nil, "values bound to @session: parameters (key=value)")
	_ = exportCmd.MarkFlagRequired("report")
}
