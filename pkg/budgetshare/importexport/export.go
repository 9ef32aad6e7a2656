// Package importexport moves a group's ledger in and out of the service as
// JSON, CSV or XLSX downloads and JSON batch uploads.
package importexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/mikepea/budgetshare/pkg/budgetshare/entries"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
)

const sheetName = "Ledger"

var header = []string{"Date", "Type", "Category", "Title", "Value", "By"}

// Row is one exported ledger entry with names resolved.
type Row struct {
	ID       uint   `json:"id"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	TypeID   uint   `json:"type_id"`
	Category string `json:"category"`
	// CategoryID is nil for entries whose category was removed.
	CategoryID *uint  `json:"category_id"`
	Title      string `json:"title"`
	Value      string `json:"value"`
	By         *uint  `json:"by"`
}

// Exporter collects every entry of a group.
type Exporter struct {
	entries *entries.Service
	catalog *refdata.Catalog
}

func NewExporter(svc *entries.Service, catalog *refdata.Catalog) *Exporter {
	return &Exporter{entries: svc, catalog: catalog}
}

// Rows pages through the whole ledger, newest first.
func (e *Exporter) Rows(ctx context.Context, userID, groupID uint) ([]Row, error) {
	var rows []Row
	for offset := 0; ; {
		page, total, err := e.entries.List(ctx, userID, groupID, entries.Filter{
			Limit:  entries.MaxLimit,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		for _, entry := range page {
			rows = append(rows, e.row(entry))
		}
		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			return rows, nil
		}
	}
}

func (e *Exporter) row(entry models.LedgerEntry) Row {
	r := Row{
		ID:         entry.ID,
		Date:       entry.Date.Format(entries.DateLayout),
		TypeID:     entry.TypeID,
		CategoryID: entry.CategoryID,
		Title:      entry.Title,
		Value:      entry.Value.StringFixed(2),
		By:         entry.ByID,
	}
	if t, ok := e.catalog.EntryType(entry.TypeID); ok {
		r.Type = t.Name
	}
	if entry.CategoryID != nil {
		if cat, ok := e.catalog.Category(*entry.CategoryID); ok {
			r.Category = cat.Name
		}
	}
	return r
}

func (r Row) cells() []string {
	by := ""
	if r.By != nil {
		by = strconv.FormatUint(uint64(*r.By), 10)
	}
	return []string{r.Date, r.Type, r.Category, r.Title, r.Value, by}
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to a single-sheet workbook. Values are numeric cells.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cells := r.cells()
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		if v, err := strconv.ParseFloat(r.Value, 64); err == nil {
			values[4] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "C", 15)
	f.SetColWidth(sheetName, "D", "D", 30)
	f.SetColWidth(sheetName, "E", "E", 12)

	return f.Write(w)
}
