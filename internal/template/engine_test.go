package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pickscan/pickscan/internal/models"
)

func invoiceTemplate() *models.Template {
	return &models.Template{
		ID:   "tmpl-1",
		Name: "Invoice",
		Fields: []models.FieldDef{
			{Name: "invoiceNo", Label: "Invoice No", Type: models.FieldString, Required: true},
			{Name: "amount", Label: "Amount", Type: models.FieldNumber},
			{Name: "paid", Label: "Paid", Type: models.FieldBoolean},
			{
				Name:  "lines",
				Label: "Lines",
				Type:  models.FieldArray,
				Children: []models.FieldDef{
					{Name: "sku", Label: "SKU", Type: models.FieldString, Required: true},
					{Name: "qty", Label: "Qty", Type: models.FieldNumber},
				},
			},
			{Name: "scores", Label: "Scores", Type: models.FieldArray},
			{
				Name:  "customer",
				Label: "Customer",
				Type:  models.FieldObject,
				Children: []models.FieldDef{
					{Name: "name", Label: "Name", Type: models.FieldString},
					{Name: "code", Label: "Code", Type: models.FieldString},
				},
			},
			{Name: "bbox", Label: "Region", Type: models.FieldArray},
		},
	}
}

func TestBuildSchemaShape(t *testing.T) {
	schema := BuildSchema(invoiceTemplate())

	require.Equal(t, genai.TypeArray, schema.Type)
	row := schema.Items
	require.Equal(t, genai.TypeObject, row.Type)
	assert.Contains(t, row.Required, "invoiceNo")
	assert.NotContains(t, row.Required, "amount")

	assert.Equal(t, genai.TypeString, row.Properties["invoiceNo"].Type)
	assert.Equal(t, genai.TypeNumber, row.Properties["amount"].Type)
	assert.Equal(t, genai.TypeBoolean, row.Properties["paid"].Type)
}

func TestBuildSchemaArrayOfObjects(t *testing.T) {
	schema := BuildSchema(invoiceTemplate())
	lines := schema.Items.Properties["lines"]

	require.Equal(t, genai.TypeArray, lines.Type)
	require.Equal(t, genai.TypeObject, lines.Items.Type)
	assert.Equal(t, genai.TypeString, lines.Items.Properties["sku"].Type)
	assert.Contains(t, lines.Items.Required, "sku")
}

func TestBuildSchemaBareArrayDefaultsToNumbers(t *testing.T) {
	schema := BuildSchema(invoiceTemplate())
	scores := schema.Items.Properties["scores"]

	require.Equal(t, genai.TypeArray, scores.Type)
	assert.Equal(t, genai.TypeNumber, scores.Items.Type)
}

func TestBuildSchemaNestedObject(t *testing.T) {
	schema := BuildSchema(invoiceTemplate())
	customer := schema.Items.Properties["customer"]

	require.Equal(t, genai.TypeObject, customer.Type)
	assert.Equal(t, genai.TypeString, customer.Properties["name"].Type)
}

func TestBuildPromptGeneratesFieldList(t *testing.T) {
	prompt := BuildPrompt(invoiceTemplate())

	assert.Contains(t, prompt, "Invoice No")
	assert.Contains(t, prompt, "[required]")
	assert.Contains(t, prompt, "SKU")
}

func TestBuildPromptPrefersCustomPrompt(t *testing.T) {
	tmpl := invoiceTemplate()
	tmpl.Prompt = "Extract invoice rows exactly as printed."

	assert.Equal(t, tmpl.Prompt, BuildPrompt(tmpl))
}

func TestColumnsFlattening(t *testing.T) {
	cols := Columns(invoiceTemplate())

	byKey := make(map[string]Column, len(cols))
	for _, c := range cols {
		byKey[c.Key] = c
	}

	// Array-of-object collapses to one nested column.
	lines := byKey["lines"]
	assert.True(t, lines.Nested)
	assert.True(t, lines.Editable)

	// Object flattens per child with composed labels.
	name, ok := byKey["customer.name"]
	require.True(t, ok)
	assert.Equal(t, "Customer / Name", name.Label)
	_, hasParent := byKey["customer"]
	assert.False(t, hasParent)

	// The reserved bounding-region column is never editable.
	assert.False(t, byKey["bbox"].Editable)
}
