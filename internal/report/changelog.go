package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/nao1215/portalshot/internal/model"
	"github.com/xuri/excelize/v2"
)

// changeLogSheet is the worksheet name of an XLSX change log.
const changeLogSheet = "Hash Comparison"

// WriteChangeLog writes the change records to path with the fixed
// columns URL, Previous Hash, Current Hash and Status.
// A ".xlsx" suffix selects XLSX; anything else is written as CSV.
// The header row is written even when records is empty.
func WriteChangeLog(path string, records []model.ChangeRecord) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeChangeLogXLSX(path, records)
	}
	return writeAtomic(path, func(w io.Writer) error {
		return writeChangeLogCSV(w, records)
	})
}

func writeChangeLogCSV(w io.Writer, records []model.ChangeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.ChangeLogHeader); err != nil {
		return fmt.Errorf("failed to write change log header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write change log row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush change log: %w", err)
	}
	return nil
}

func writeChangeLogXLSX(path string, records []model.ChangeRecord) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), changeLogSheet); err != nil {
		return fmt.Errorf("failed to name change log sheet: %w", err)
	}
	if err := f.SetSheetRow(changeLogSheet, "A1", &model.ChangeLogHeader); err != nil {
		return fmt.Errorf("failed to write change log header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := r.Row()
		if err := f.SetSheetRow(changeLogSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write change log row: %w", err)
		}
	}

	return writeAtomic(path, func(w io.Writer) error {
		if _, err := f.WriteTo(w); err != nil {
			return fmt.Errorf("failed to write change log: %w", err)
		}
		return nil
	})
}
