// Package excel renders evaluation runs into xlsx workbooks for sharing
// with the planning team.
package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

const summarySheet = "Resumo"

var summaryHeader = []string{
	"Modelo", "Status", "Casos", "Aprovados", "Acurácia", "Latência média (ms)", "Início", "Fim",
}

var resultHeader = []string{
	"Caso", "Pontuação", "Aprovado", "Latência (ms)", "Erro", "Resposta",
}

type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// WriteRunReport writes one workbook: a summary sheet with a row per model
// run plus a per-model sheet with every case result.
func (w *Writer) WriteRunReport(path string, runs []domain.ValidationRun, results map[string][]domain.ValidationResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	writeRow(f, summarySheet, 1, toCells(summaryHeader))

	for i, run := range runs {
		writeRow(f, summarySheet, i+2, []any{
			run.ModelID,
			string(run.Status),
			run.TotalTests,
			run.PassedTests,
			run.OverallAccuracy,
			run.MeanLatencyMs,
			run.StartedAt.Format(time.RFC3339),
			formatEndedAt(run.EndedAt),
		})

		if err := writeModelSheet(f, run, results[run.ID]); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func writeModelSheet(f *excelize.File, run domain.ValidationRun, results []domain.ValidationResult) error {
	sheet := sheetName(run.ModelID)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheet, err)
	}
	writeRow(f, sheet, 1, toCells(resultHeader))

	for i, result := range results {
		approved := "não"
		if result.IsCorrect {
			approved = "sim"
		}
		writeRow(f, sheet, i+2, []any{
			result.TestCaseID,
			result.Score,
			approved,
			result.LatencyMs,
			result.ErrorKind,
			result.Answer,
		})
	}
	return nil
}

// sheetName keeps model ids inside the 31 character sheet name limit and
// strips the characters xlsx forbids.
func sheetName(modelID string) string {
	cleaned := make([]rune, 0, len(modelID))
	for _, r := range modelID {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			cleaned = append(cleaned, '_')
		default:
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) > 31 {
		cleaned = cleaned[:31]
	}
	return string(cleaned)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		_ = f.SetCellValue(sheet, cell, value)
	}
}

func toCells(header []string) []any {
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	return cells
}

func formatEndedAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
