package models

import (
	"time"
)

// FieldType 字段类型
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// BBoxFieldName is the reserved field name carrying the bounding region of a
// row. It is threaded through generated schemas but never exposed as an
// editable display column.
const BBoxFieldName = "bbox"

// FieldDef is one node of a user-authored field-definition tree.
// Array fields with Children extract as arrays of objects; array fields
// without Children default to arrays of numbers. Object fields flatten into
// one display column per child.
type FieldDef struct {
	Name        string     `json:"name" validate:"required"`
	Label       string     `json:"label" validate:"required"`
	Type        FieldType  `json:"type" validate:"required,oneof=string number boolean array object"`
	Description string     `json:"description"`
	Required    bool       `json:"required"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	Pattern     string     `json:"pattern,omitempty"`
	Children    []FieldDef `json:"children,omitempty" validate:"dive"`
}

// Template is a named, versioned field-definition tree driving dynamic
// extraction. Templates are user configuration, referenced by jobs and items
// via id only.
type Template struct {
	ID      string     `json:"id" validate:"required"`
	Name    string     `json:"name" validate:"required"`
	Version int        `json:"version"`
	Prompt  string     `json:"prompt,omitempty"`
	Fields  []FieldDef `json:"fields" validate:"required,min=1,dive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
