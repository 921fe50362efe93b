package export

import (
	"bytes"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/template"
)

const sheetName = "Items"

// FixedXLSX renders fixed-schema items as a spreadsheet with the same
// row-per-distribution layout as the CSV export.
func FixedXLSX(items []*models.Item) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	header := make([]any, len(fixedHeader))
	for i, h := range fixedHeader {
		header[i] = h
	}
	if err := writeRow(f, 1, header); err != nil {
		return nil, err
	}

	rowNum := 2
	for _, it := range items {
		base := []any{
			it.Page, it.RowNo, it.ProductName, it.JANCode, it.VendorCode,
			it.Size, it.Color, it.ReportedTotal,
		}
		tail := []any{it.CalculatedTotal, verificationStatus(it)}

		if len(it.Distributions) == 0 {
			row := append(append(append([]any{}, base...), "", ""), tail...)
			if err := writeRow(f, rowNum, row); err != nil {
				return nil, err
			}
			rowNum++
			continue
		}
		for _, d := range it.Distributions {
			row := append(append(append([]any{}, base...), d.Code, d.Quantity), tail...)
			if err := writeRow(f, rowNum, row); err != nil {
				return nil, err
			}
			rowNum++
		}
	}

	return flush(f)
}

// TemplateXLSX renders dynamic-schema items with the template's display
// columns.
func TemplateXLSX(t *models.Template, items []*models.Item) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	cols := template.Columns(t)

	header := make([]any, 0, len(cols)+2)
	header = append(header, "page")
	for _, c := range cols {
		header = append(header, c.Label)
	}
	header = append(header, "verified")
	if err := writeRow(f, 1, header); err != nil {
		return nil, err
	}

	for i, it := range items {
		row := make([]any, 0, len(cols)+2)
		row = append(row, it.Page)
		for _, c := range cols {
			row = append(row, cellValue(lookupField(it.Fields, c.Key)))
		}
		row = append(row, boolToken(it.IsVerified))
		if err := writeRow(f, i+2, row); err != nil {
			return nil, err
		}
	}

	return flush(f)
}

func writeRow(f *excelize.File, rowNum int, values []any) error {
	cell := "A" + strconv.Itoa(rowNum)
	return f.SetSheetRow(sheetName, cell, &values)
}

func flush(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
