package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/use-agent/catalog/models"
)

const excelSheet = "Products"

var excelHeader = []any{
	"Product ID", "Name", "Price", "Currency", "Image URL", "Product URL",
	"Availability", "Category", "Subcategory",
}

// Excel writes one row per product id into a workbook saved on every Write.
// A repeated id overwrites its earlier row.
type Excel struct {
	mu   sync.Mutex
	path string
	file *excelize.File
	rows map[string]int
	next int
}

// NewExcel creates a workbook that will be saved to path.
func NewExcel(path string) (*Excel, error) {
	if path == "" {
		return nil, fmt.Errorf("sink: excel path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: create directory: %w", err)
		}
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", excelSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: rename sheet: %w", err)
	}
	if err := f.SetSheetRow(excelSheet, "A1", &excelHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(excelSheet, 1, 1, style)
	}

	return &Excel{path: path, file: f, rows: make(map[string]int), next: 2}, nil
}

func (s *Excel) Name() string { return string(KindExcel) }

func (s *Excel) Write(_ context.Context, products []models.NormalizedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		row, ok := s.rows[p.ProductID]
		if !ok {
			row = s.next
			s.next++
			s.rows[p.ProductID] = row
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{
			p.ProductID, p.Name, deref(p.Price), p.Currency, deref(p.ImageURL), deref(p.ProductURL),
			deref(p.Availability), deref(p.Category), deref(p.Subcategory),
		}
		if err := s.file.SetSheetRow(excelSheet, cell, &values); err != nil {
			return fmt.Errorf("sink: excel row %d: %w", row, err)
		}
	}
	return s.file.SaveAs(s.path)
}

func (s *Excel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.SaveAs(s.path); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// deref renders nil pointers as empty cells.
func deref[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
