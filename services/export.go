package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"lab-dashboard/internal/logger"
	"lab-dashboard/models"

	"github.com/xuri/excelize/v2"
)

const (
	ExportJSON  = "json"
	ExportExcel = "excel"
	ExportBoth  = "both"
)

// DocumentLister is the list view the export reads
type DocumentLister interface {
	ListDocuments(ctx context.Context, bypass bool) ([]models.DocumentSummary, error)
}

// ExportService renders the corpus inventory for download
type ExportService struct {
	docs DocumentLister
	now  func() time.Time
}

func NewExportService(docs DocumentLister) *ExportService {
	return &ExportService{docs: docs, now: time.Now}
}

// ExportFile is a rendered download
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
	Records     int
}

// InventoryExport is the JSON form of the inventory
type InventoryExport struct {
	ExportDate time.Time                `json:"exportDate"`
	Summary    InventorySummary         `json:"summary"`
	Documents  []models.DocumentSummary `json:"documents"`
}

type InventorySummary struct {
	Total      int            `json:"total"`
	Vectorized int            `json:"vectorized"`
	Authors    int            `json:"authors"`
	ByType     map[string]int `json:"byType"`
	ByStatus   map[string]int `json:"byStatus"`
}

func summarize(docs []models.DocumentSummary) InventorySummary {
	s := InventorySummary{
		Total:    len(docs),
		ByType:   map[string]int{},
		ByStatus: map[string]int{},
	}
	authors := map[string]bool{}
	for _, d := range docs {
		s.ByType[string(d.Type)]++
		s.ByStatus[string(d.Status)]++
		if d.Vectorized {
			s.Vectorized++
		}
		if d.Author != "" {
			authors[d.Author] = true
		}
	}
	s.Authors = len(authors)
	return s
}

// Export renders the inventory as json, excel or both (zip)
func (es *ExportService) Export(ctx context.Context, format string) (*ExportFile, error) {
	if format == "" {
		format = ExportExcel
	}

	docs, err := es.docs.ListDocuments(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	data := &InventoryExport{
		ExportDate: es.now(),
		Summary:    summarize(docs),
		Documents:  docs,
	}
	stamp := data.ExportDate.Format("20060102_150405")

	switch format {
	case ExportJSON:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return &ExportFile{
			Name:        "documents_" + stamp + ".json",
			ContentType: "application/json; charset=utf-8",
			Data:        b,
			Records:     len(docs),
		}, nil

	case ExportExcel:
		b, err := es.excel(data)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Name:        "documents_" + stamp + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        b,
			Records:     len(docs),
		}, nil

	case ExportBoth:
		b, err := es.zip(data, stamp)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Name:        "documents_" + stamp + ".zip",
			ContentType: "application/zip",
			Data:        b,
			Records:     len(docs),
		}, nil
	}

	return nil, fmt.Errorf("unsupported export format %q", format)
}

var inventoryHeaders = []string{
	"ID", "Name", "Title", "Type", "Author", "Year", "Status", "Uploaded At", "Characters", "Vectorized",
}

func (es *ExportService) excel(data *InventoryExport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	sheetName := "Documents"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	rows := [][]interface{}{make([]interface{}, len(inventoryHeaders))}
	for i, h := range inventoryHeaders {
		rows[0][i] = h
	}
	for _, d := range data.Documents {
		year := interface{}("")
		if d.Year > 0 {
			year = d.Year
		}
		rows = append(rows, []interface{}{
			d.ID, d.Name, d.Title, string(d.Type), d.Author, year, string(d.Status),
			d.UploadedAt.Format("2006-01-02 15:04:05"), d.ContentLength, d.Vectorized,
		})
	}
	if err := writeRows(f, sheetName, rows); err != nil {
		return nil, err
	}

	for i := range inventoryHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := 15.0
		if inventoryHeaders[i] == "Title" || inventoryHeaders[i] == "Name" {
			width = 40
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	summarySheetName := "Summary"
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	s := data.Summary
	summary := [][]interface{}{
		{"Export Date", data.ExportDate.Format("2006-01-02 15:04:05")},
		{"Total Documents", s.Total},
		{"Vectorized", s.Vectorized},
		{"Authors", s.Authors},
		{"", ""},
		{"Type", "Count"},
	}
	summary = append(summary, countRows(s.ByType)...)
	summary = append(summary, []interface{}{"", ""}, []interface{}{"Status", "Count"})
	summary = append(summary, countRows(s.ByStatus)...)
	if err := writeRows(f, summarySheetName, summary); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func countRows(counts map[string]int) [][]interface{} {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []interface{}{k, counts[k]})
	}
	return rows
}

func (es *ExportService) zip(data *InventoryExport, stamp string) ([]byte, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	excelData, err := es.excel(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string][]byte{
		"documents_" + stamp + ".json": jsonData,
		"documents_" + stamp + ".xlsx": excelData,
	} {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry: %w", err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write zip entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip: %w", err)
	}
	return buf.Bytes(), nil
}
