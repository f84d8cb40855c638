package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"lab-dashboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type listerStub []models.DocumentSummary

func (l listerStub) ListDocuments(context.Context, bool) ([]models.DocumentSummary, error) {
	return l, nil
}

func exportFixture() *ExportService {
	docs := listerStub{
		{ID: "a", Name: "a.pdf", Title: "心拍変動", Type: models.TypeThesis, Author: "小野 健太", Year: 2024, Status: models.StatusReady, Vectorized: true},
		{ID: "b", Name: "b.pdf", Title: "視線計測", Type: models.TypePaper, Author: "佐藤 花子", Status: models.StatusReady},
		{ID: "c", Name: "c.pdf", Title: "c", Type: models.TypeThesis, Status: models.StatusError},
	}
	svc := NewExportService(docs)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportExcel(t *testing.T) {
	file, err := exportFixture().Export(context.Background(), ExportExcel)
	require.NoError(t, err)
	assert.Equal(t, "documents_20260301_090000.xlsx", file.Name)
	assert.Equal(t, 3, file.Records)

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Documents")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, inventoryHeaders, rows[0])
	assert.Equal(t, "心拍変動", rows[1][2])
	assert.Equal(t, "2024", rows[1][5])

	total, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}

func TestExportJSON(t *testing.T) {
	file, err := exportFixture().Export(context.Background(), ExportJSON)
	require.NoError(t, err)

	var out InventoryExport
	require.NoError(t, json.Unmarshal(file.Data, &out))
	assert.Equal(t, 3, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Vectorized)
	assert.Equal(t, 2, out.Summary.Authors)
	assert.Equal(t, 2, out.Summary.ByType["thesis"])
	assert.Equal(t, 1, out.Summary.ByStatus["error"])
}

func TestExportBoth(t *testing.T) {
	file, err := exportFixture().Export(context.Background(), ExportBoth)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := exportFixture().Export(context.Background(), "pdf")
	assert.Error(t, err)
}
