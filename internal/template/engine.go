package template

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pickscan/pickscan/internal/models"
)

// Column is derived display metadata for one table column.
type Column struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Nested   bool   `json:"nested"`
	Editable bool   `json:"editable"`
}

// BuildSchema translates a field-definition tree into a structured-output
// schema mirroring the tree shape. Rows extract as an array of objects.
func BuildSchema(t *models.Template) *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: objectSchema(t.Fields),
	}
}

func objectSchema(fields []models.FieldDef) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(fields))
	var required []string
	for _, f := range fields {
		properties[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

func fieldSchema(f models.FieldDef) *genai.Schema {
	switch f.Type {
	case models.FieldArray:
		if len(f.Children) > 0 {
			// Array of objects; required-ness threads through every level.
			return &genai.Schema{
				Type:        genai.TypeArray,
				Items:       objectSchema(f.Children),
				Description: f.Description,
			}
		}
		// Arrays without child definitions default to arrays of numbers.
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeNumber},
			Description: f.Description,
		}
	case models.FieldObject:
		s := objectSchema(f.Children)
		s.Description = f.Description
		return s
	case models.FieldNumber:
		return &genai.Schema{Type: genai.TypeNumber, Description: f.Description}
	case models.FieldBoolean:
		return &genai.Schema{Type: genai.TypeBoolean, Description: f.Description}
	default:
		return &genai.Schema{Type: genai.TypeString, Description: f.Description}
	}
}

// BuildPrompt returns the template's custom prompt when supplied, otherwise
// a generated instruction enumerating every field definition.
func BuildPrompt(t *models.Template) string {
	if strings.TrimSpace(t.Prompt) != "" {
		return t.Prompt
	}

	var b strings.Builder
	b.WriteString("Extract every data row from this document page.\n\n")
	b.WriteString("For each row return the following fields:\n")
	writeFieldLines(&b, t.Fields, 0)
	b.WriteString("\nReturn rows in top-to-bottom order. Do not invent rows.")
	return b.String()
}

func writeFieldLines(b *strings.Builder, fields []models.FieldDef, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		b.WriteString(fmt.Sprintf("%s- %s (%s, %s)", indent, f.Label, f.Name, f.Type))
		if f.Required {
			b.WriteString(" [required]")
		}
		if f.Description != "" {
			b.WriteString(": " + f.Description)
		}
		var bounds []string
		if f.Min != nil {
			bounds = append(bounds, fmt.Sprintf("min %v", *f.Min))
		}
		if f.Max != nil {
			bounds = append(bounds, fmt.Sprintf("max %v", *f.Max))
		}
		if f.Pattern != "" {
			bounds = append(bounds, "pattern "+f.Pattern)
		}
		if len(bounds) > 0 {
			b.WriteString(" (" + strings.Join(bounds, ", ") + ")")
		}
		b.WriteString("\n")
		if len(f.Children) > 0 {
			writeFieldLines(b, f.Children, depth+1)
		}
	}
}

// Columns derives flat display-column metadata from the same tree:
// array-of-object fields collapse to one nested column, object fields
// flatten to one column per child with a composed label, everything else is
// one column. Every column is editable except the reserved bounding-region
// field.
func Columns(t *models.Template) []Column {
	cols := make([]Column, 0, len(t.Fields))
	for _, f := range t.Fields {
		switch {
		case f.Type == models.FieldArray && len(f.Children) > 0:
			cols = append(cols, Column{
				Key:      f.Name,
				Label:    f.Label,
				Nested:   true,
				Editable: f.Name != models.BBoxFieldName,
			})
		case f.Type == models.FieldObject && len(f.Children) > 0:
			for _, child := range f.Children {
				cols = append(cols, Column{
					Key:      f.Name + "." + child.Name,
					Label:    f.Label + " / " + child.Label,
					Editable: child.Name != models.BBoxFieldName,
				})
			}
		default:
			cols = append(cols, Column{
				Key:      f.Name,
				Label:    f.Label,
				Editable: f.Name != models.BBoxFieldName,
			})
		}
	}
	return cols
}
