package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pickscan/pickscan/internal/models"
)

// fixedRow is the wire shape of one extracted picking-list row.
type fixedRow struct {
	No            string `json:"no"`
	ProductName   string `json:"productName"`
	JanCode       string `json:"janCode"`
	VendorCode    string `json:"vendorCode"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	Total         any    `json:"total"`
	Distributions string `json:"distributions"`
	BBox          []int  `json:"bbox"`
}

// ParseDistributions parses a "code1:qty1|code2:qty2" string. Malformed
// pairs (missing code or quantity) are silently dropped; a quantity that is
// present but unparsable counts as 0.
func ParseDistributions(s string) []models.Distribution {
	out := make([]models.Distribution, 0)
	for _, pair := range strings.Split(s, "|") {
		code, qty, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		code = strings.TrimSpace(code)
		qty = strings.TrimSpace(qty)
		if code == "" || qty == "" {
			continue
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			n = 0
		}
		out = append(out, models.Distribution{Code: code, Quantity: n})
	}
	return out
}

// NormalizeVendorCode collapses every whitespace variant (including the
// full-width space) to single ASCII spaces and, when multiple tokens
// remain, keeps only the last one.
func NormalizeVendorCode(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// coerceInt turns a loosely typed JSON value into an int, defaulting to 0.
func coerceInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// bboxFromCoords maps a [top, left, bottom, right] quadruple (0-1000 scale)
// into a BoundingBox; anything else yields nil.
func bboxFromCoords(coords []int) *models.BoundingBox {
	if len(coords) != 4 {
		return nil
	}
	return &models.BoundingBox{
		Top:    coords[0],
		Left:   coords[1],
		Bottom: coords[2],
		Right:  coords[3],
	}
}

// mapFixedRow builds an internal item from one wire row. Item ids are
// generated here and never reused across retries; isVerified always starts
// false on fresh extraction.
func mapFixedRow(row fixedRow, jobID, sourceFile string, page int) *models.Item {
	item := &models.Item{
		ID:            uuid.New().String(),
		JobID:         jobID,
		Page:          page,
		SourceFile:    sourceFile,
		RowNo:         row.No,
		ProductName:   row.ProductName,
		JANCode:       row.JanCode,
		VendorCode:    NormalizeVendorCode(row.VendorCode),
		Size:          row.Size,
		Color:         row.Color,
		ReportedTotal: coerceInt(row.Total),
		Distributions: ParseDistributions(row.Distributions),
		BBox:          bboxFromCoords(row.BBox),
		IsVerified:    false,
	}
	item.Recalculate()
	return item
}

// mapTemplateRow builds an internal item from a template-shaped row. The
// reserved bounding-region field is lifted out of the open field map.
func mapTemplateRow(row map[string]any, jobID, templateID, sourceFile string, page int) *models.Item {
	item := &models.Item{
		ID:         uuid.New().String(),
		JobID:      jobID,
		Page:       page,
		SourceFile: sourceFile,
		TemplateID: templateID,
		IsVerified: false,
	}

	if raw, ok := row[models.BBoxFieldName]; ok {
		if coords, ok := raw.([]any); ok {
			ints := make([]int, 0, len(coords))
			for _, c := range coords {
				ints = append(ints, coerceInt(c))
			}
			item.BBox = bboxFromCoords(ints)
		}
		delete(row, models.BBoxFieldName)
	}
	item.Fields = row
	return item
}

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// stripResponse removes markdown code fences and trims the payload down to
// its outermost JSON delimiters. An empty result means no JSON was found.
func stripResponse(s string) string {
	s = strings.TrimSpace(s)
	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = matches[1]
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	end := strings.LastIndexAny(s, "]}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
