package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
)

const (
	SheetName = "Medicamentos"

	headerFill   = "E0E0E0"
	providerFill = "B8D4E8"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type column struct {
	header string
	width  float64
}

var baseColumns = []column{
	{"Nombre", 50},
	{"CUM", 15},
	{"Invima", 20},
	{"Lote", 15},
	{"Valor Unitario", 15},
	{"IVA", 10},
	{"Valor Total", 15},
}

// Service renders medication records as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// FileName returns the attachment name for a workbook generated at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("medicamentos_%d.xlsx", t.UnixMilli())
}

// MedicationsXLSX returns a workbook with one row per record. Each provider
// adds a code and a price column; records without a match for a provider
// carry the "N/A" and "No disponible" sentinels.
func (s *Service) MedicationsXLSX(records []entity.MedicationRecord, providers []string) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	cols := append([]column(nil), baseColumns...)
	for _, p := range providers {
		cols = append(cols, column{"Código " + p, 15}, column{"Precio " + p, 18})
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetColWidth(SheetName, name, name, c.width)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}

	if err := s.styleHeader(f, len(baseColumns), len(cols)); err != nil {
		return nil, err
	}

	for i, r := range records {
		r.Normalize()
		row := []any{r.Name, r.RegulatoryCode, r.RegistrationID, r.Batch, r.UnitPrice, r.Tax, r.TotalPrice}
		for _, p := range providers {
			row = append(row, r.ProviderCode(p), r.ProviderPrice(p))
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(records),
		"providers", len(providers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) styleHeader(f *excelize.File, base, total int) error {
	plain, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(base, 1)
	if err := f.SetCellStyle(SheetName, "A1", last, plain); err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	if total == base {
		return nil
	}

	prov, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{providerFill}},
	})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	first, _ := excelize.CoordinatesToCellName(base+1, 1)
	last, _ = excelize.CoordinatesToCellName(total, 1)
	if err := f.SetCellStyle(SheetName, first, last, prov); err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	return nil
}
