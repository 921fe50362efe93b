package models

// Distribution is one (destination code, quantity) pair of a picking-list row.
type Distribution struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// BoundingBox locates a source row on its page image, normalized to a
// 0-1000 coordinate scale.
type BoundingBox struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
}

// Item is one extracted data row. Fixed-schema rows populate the named
// picking-list fields; template rows carry TemplateID and the open Fields
// map instead. TemplateID == "" selects fixed mode.
type Item struct {
	ID    string `json:"id"`
	JobID string `json:"jobId"`
	// Page is 1-based; the backing page image is keyed by Page-1.
	Page       int    `json:"page"`
	SourceFile string `json:"sourceFile"`

	// Fixed-schema fields.
	RowNo           string         `json:"no,omitempty"`
	ProductName     string         `json:"productName,omitempty"`
	JANCode         string         `json:"janCode,omitempty"`
	VendorCode      string         `json:"vendorCode,omitempty"`
	Size            string         `json:"size,omitempty"`
	Color           string         `json:"color,omitempty"`
	ReportedTotal   int            `json:"reportedTotal"`
	Distributions   []Distribution `json:"distributions"`
	CalculatedTotal int            `json:"calculatedTotal"`
	IsCorrect       bool           `json:"isCorrect"`

	// Dynamic-schema fields.
	TemplateID string         `json:"templateId,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`

	BBox       *BoundingBox `json:"bbox,omitempty"`
	IsVerified bool         `json:"isVerified"`

	// ImageHandle is a process-local reference to the page image bytes.
	// It is stripped before every persistence write and re-synthesized on
	// restore; it never survives a restart.
	ImageHandle string `json:"imageHandle,omitempty"`
}

// Recalculate recomputes the derived totals from the current distributions.
// Invariant: calculatedTotal == sum of distribution quantities and
// isCorrect == (calculatedTotal == reportedTotal), after every edit that
// touches distributions or the reported total.
func (it *Item) Recalculate() {
	sum := 0
	for _, d := range it.Distributions {
		sum += d.Quantity
	}
	it.CalculatedTotal = sum
	it.IsCorrect = it.CalculatedTotal == it.ReportedTotal
}
