package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/evalIA/property-import-service/internal/logger"
	"github.com/evalIA/property-import-service/internal/models"
)

// Report renders the user's latest batch as an XLSX workbook
func (b *BatchCoordinator) Report(ctx context.Context, userID string) ([]byte, error) {
	start := time.Now()
	if b.run(userID) == nil {
		return nil, fmt.Errorf("%w: no batch for user", ErrSessionNotFound)
	}
	progress := b.Progress(userID)
	results := b.Results(userID)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Batch"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if err := writeBatchSheet(f, sheet, progress, results); err != nil {
		return nil, fmt.Errorf("xlsx render: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info(ctx, "batch.report.ok",
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// sheetWriter keeps the first cell error so a report is never silently truncated
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(w.sheet, cell, v)
}

func (w *sheetWriter) width(from, to string, width float64) {
	if w.err == nil {
		w.err = w.f.SetColWidth(w.sheet, from, to, width)
	}
}

func writeBatchSheet(f *excelize.File, sheet string, progress models.BatchProgress, results []BatchFileResult) error {
	w := &sheetWriter{f: f, sheet: sheet}

	headers := []string{
		"File",
		"Document Type",
		"Status",
		"Records",
		"Avg Confidence",
		"Property IDs",
		"Session ID",
		"Error",
	}
	for i, h := range headers {
		w.set(i+1, 1, h)
	}

	row := 2
	for _, r := range results {
		w.set(1, row, r.FileName)
		w.set(2, row, string(r.DocumentType))
		w.set(3, row, string(r.Status))
		w.set(4, row, r.Records)
		w.set(5, row, r.Confidence)
		w.set(6, row, strings.Join(r.PropertyIDs, ", "))
		w.set(7, row, r.SessionID)
		w.set(8, row, r.Error)
		row++
	}

	// Summary below the table
	row++
	summary := [][2]any{
		{"Total files", progress.TotalFiles},
		{"Completed", len(progress.CompletedFiles)},
		{"Failed", len(progress.FailedFiles)},
		{"Cancelled", progress.Cancelled},
		{"Merge mode", string(progress.MergeMode)},
	}
	for _, kv := range summary {
		w.set(1, row, kv[0])
		w.set(2, row, kv[1])
		row++
	}

	w.width("A", "A", 36) // file
	w.width("B", "C", 22)
	w.width("D", "E", 14)
	w.width("F", "G", 40)
	w.width("H", "H", 60) // error
	return w.err
}
