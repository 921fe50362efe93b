package extract

import (
	"google.golang.org/genai"
)

// FixedInstruction is the built-in prompt for picking-list extraction.
const FixedInstruction = `Extract every data row from this scanned picking-list page.

For each row return:
- no: the row number or label as printed
- productName: the product name
- janCode: the JAN code if present
- vendorCode: the vendor item code if present
- size: the size column value
- color: the color column value
- total: the total quantity as stated on the document
- distributions: every destination allocation as "CODE:QTY" pairs joined with "|", e.g. "101:3|205:2"
- bbox: the bounding box of the row as [top, left, bottom, right] on a 0-1000 scale

Return rows in top-to-bottom order. Do not invent rows; skip headers and footers.`

// FixedSchema is the structured-output schema for the built-in picking-list
// row shape. Field names here are the wire names; mapping.go renames and
// coerces them into the internal item shape.
func FixedSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"no":          {Type: genai.TypeString, Description: "row number or label as printed"},
				"productName": {Type: genai.TypeString, Description: "product name"},
				"janCode":     {Type: genai.TypeString, Description: "JAN code"},
				"vendorCode":  {Type: genai.TypeString, Description: "vendor item code"},
				"size":        {Type: genai.TypeString, Description: "size"},
				"color":       {Type: genai.TypeString, Description: "color"},
				"total":       {Type: genai.TypeNumber, Description: "reported total quantity"},
				"distributions": {
					Type:        genai.TypeString,
					Description: `destination allocations as "CODE:QTY" pairs joined with "|"`,
				},
				"bbox": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeInteger},
					Description: "row bounding box [top, left, bottom, right], 0-1000 scale",
				},
			},
			Required: []string{"no", "productName", "total", "distributions"},
		},
	}
}
