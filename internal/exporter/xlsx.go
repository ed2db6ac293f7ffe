// Package exporter writes the license register to files operators can
// hand to finance or support: an xlsx workbook and a plain CSV.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"keyserve/internal/license"
)

const registerSheet = "Licenses"

var registerHeaders = []string{
	"Key", "Type", "Duration (days)", "Activated", "Hardware Prefix",
	"Activated At", "Expires At", "Created At", "Activations", "Checks",
}

// RegisterWriter renders license records into operator-facing files.
type RegisterWriter struct {
	loc    *time.Location
	logger *slog.Logger
}

// NewRegisterWriter creates a register writer. loc selects the timezone
// for the timestamp columns.
func NewRegisterWriter(loc *time.Location, logger *slog.Logger) *RegisterWriter {
	if loc == nil {
		loc = time.UTC
	}
	return &RegisterWriter{loc: loc, logger: logger}
}

// WriteXLSX writes the register as an Excel workbook.
func (w *RegisterWriter) WriteXLSX(filePath string, records []license.Record) error {
	if err := ensureDir(filePath); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(registerSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	for col, header := range registerHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(registerSheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i := range records {
		row := w.row(&records[i])
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(registerSheet, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	w.logger.Info("license register exported",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(records)),
	)
	return nil
}

// WriteCSV writes the register as CSV with the same columns as the
// workbook.
func (w *RegisterWriter) WriteCSV(filePath string, records []license.Record) error {
	if err := ensureDir(filePath); err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(registerHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range records {
		if err := cw.Write(w.row(&records[i])); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	w.logger.Info("license register exported",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(records)),
	)
	return nil
}

func (w *RegisterWriter) row(rec *license.Record) []string {
	activated := "no"
	prefix := ""
	activatedAt := ""
	if rec.Activated() {
		activated = "yes"
		prefix = license.HardwarePrefix(rec.HardwareID)
		activatedAt = license.FormatDisplay(*rec.ActivatedAt, w.loc)
	}
	expiresAt := ""
	if !rec.ExpiresAt.IsZero() {
		expiresAt = license.FormatDisplay(rec.ExpiresAt, w.loc)
	}
	createdAt := ""
	if !rec.CreatedAt.IsZero() {
		createdAt = license.FormatDisplay(rec.CreatedAt, w.loc)
	}
	return []string{
		rec.Key,
		string(rec.EffectiveType()),
		strconv.Itoa(rec.EffectiveDurationDays()),
		activated,
		prefix,
		activatedAt,
		expiresAt,
		createdAt,
		strconv.FormatInt(rec.ActivationCount, 10),
		strconv.FormatInt(rec.CheckCount, 10),
	}
}

func ensureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}
