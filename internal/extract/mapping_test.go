package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickscan/pickscan/internal/models"
)

func TestParseDistributions(t *testing.T) {
	dists := ParseDistributions("101:3|102:5|103:2")
	require.Len(t, dists, 3)
	assert.Equal(t, models.Distribution{Code: "101", Quantity: 3}, dists[0])
	assert.Equal(t, models.Distribution{Code: "103", Quantity: 2}, dists[2])
}

func TestParseDistributionsDropsMalformedPairs(t *testing.T) {
	dists := ParseDistributions("A:3|bad|B:2")
	require.Len(t, dists, 2)
	assert.Equal(t, "A", dists[0].Code)
	assert.Equal(t, "B", dists[1].Code)
}

func TestParseDistributionsUnparsableQuantityIsZero(t *testing.T) {
	dists := ParseDistributions("A:x|B:4")
	require.Len(t, dists, 2)
	assert.Equal(t, 0, dists[0].Quantity)
	assert.Equal(t, 4, dists[1].Quantity)
}

func TestParseDistributionsEmpty(t *testing.T) {
	assert.Empty(t, ParseDistributions(""))
	assert.Empty(t, ParseDistributions("|||"))
	assert.Empty(t, ParseDistributions(":|:"))
}

func TestNormalizeVendorCode(t *testing.T) {
	assert.Equal(t, "995668D", NormalizeVendorCode("0000 00 995668D"))
	assert.Equal(t, "995668D", NormalizeVendorCode("0000　00　995668D"))
	assert.Equal(t, "995668D", NormalizeVendorCode("  995668D  "))
	assert.Equal(t, "", NormalizeVendorCode("   "))
	assert.Equal(t, "", NormalizeVendorCode(""))
}

func TestCoerceInt(t *testing.T) {
	assert.Equal(t, 7, coerceInt(float64(7)))
	assert.Equal(t, 7, coerceInt("7"))
	assert.Equal(t, 7, coerceInt(" 7 "))
	assert.Equal(t, 0, coerceInt("n/a"))
	assert.Equal(t, 0, coerceInt(nil))
}

func TestStripResponseCodeFence(t *testing.T) {
	in := "```json\n[{\"no\":\"1\"}]\n```"
	assert.Equal(t, `[{"no":"1"}]`, stripResponse(in))
}

func TestStripResponseBareFence(t *testing.T) {
	in := "```\n[{\"no\":\"1\"}]\n```"
	assert.Equal(t, `[{"no":"1"}]`, stripResponse(in))
}

func TestStripResponseSurroundingProse(t *testing.T) {
	in := "Here are the rows:\n[{\"no\":\"1\"}]\nDone."
	assert.Equal(t, `[{"no":"1"}]`, stripResponse(in))
}

func TestStripResponseNoJSON(t *testing.T) {
	assert.Equal(t, "", stripResponse("no structured data on this page"))
	assert.Equal(t, "", stripResponse(""))
}

func TestMapFixedRow(t *testing.T) {
	row := fixedRow{
		No:            "1",
		ProductName:   "Cotton Shirt",
		JanCode:       "4901234567890",
		VendorCode:    "0000 00 995668D",
		Size:          "M",
		Color:         "Navy",
		Total:         float64(8),
		Distributions: "101:3|102:5",
		BBox:          []int{10, 20, 110, 990},
	}

	item := mapFixedRow(row, "job-1", "orders.pdf", 2)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "job-1", item.JobID)
	assert.Equal(t, 2, item.Page)
	assert.Equal(t, "orders.pdf", item.SourceFile)
	assert.Equal(t, "995668D", item.VendorCode)
	assert.Equal(t, 8, item.ReportedTotal)
	assert.Equal(t, 8, item.CalculatedTotal)
	assert.True(t, item.IsCorrect)
	assert.False(t, item.IsVerified)
	require.NotNil(t, item.BBox)
	assert.Equal(t, 10, item.BBox.Top)
	assert.Equal(t, 990, item.BBox.Right)
}

func TestMapFixedRowMismatchedTotals(t *testing.T) {
	row := fixedRow{
		No:            "2",
		Total:         "12",
		Distributions: "101:3|102:5",
	}

	item := mapFixedRow(row, "job-1", "orders.pdf", 1)

	assert.Equal(t, 12, item.ReportedTotal)
	assert.Equal(t, 8, item.CalculatedTotal)
	assert.False(t, item.IsCorrect)
}

func TestMapFixedRowInvalidBBox(t *testing.T) {
	item := mapFixedRow(fixedRow{No: "1", BBox: []int{1, 2}}, "job-1", "a.pdf", 1)
	assert.Nil(t, item.BBox)
}

func TestMapTemplateRowLiftsBBox(t *testing.T) {
	row := map[string]any{
		"invoiceNo": "INV-42",
		"amount":    float64(1200),
		"bbox":      []any{float64(5), float64(10), float64(200), float64(900)},
	}

	item := mapTemplateRow(row, "job-2", "tmpl-1", "invoice.pdf", 3)

	assert.Equal(t, "tmpl-1", item.TemplateID)
	require.NotNil(t, item.BBox)
	assert.Equal(t, 5, item.BBox.Top)
	assert.Equal(t, 900, item.BBox.Right)
	assert.NotContains(t, item.Fields, "bbox")
	assert.Equal(t, "INV-42", item.Fields["invoiceNo"])
}
