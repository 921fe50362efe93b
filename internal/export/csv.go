package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/template"
)

// utf8BOM makes spreadsheet software on Windows pick up the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var fixedHeader = []string{
	"page", "row no", "product name", "JAN code", "vendor code",
	"size", "color", "reported total", "destination code", "quantity",
	"calculated total", "verification status",
}

// Filename builds the download name for an export artifact.
func Filename(prefix, ext string) string {
	return fmt.Sprintf("%s_%d.%s", prefix, time.Now().UnixMilli(), ext)
}

// FixedCSV flattens fixed-schema items to CSV: one row per
// (item, distribution) pair. Items without distributions still emit one row
// with blank distribution columns, so every extracted row is visible in the
// export. Output is UTF-8 with a leading byte-order mark.
func FixedCSV(items []*models.Item) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(fixedHeader); err != nil {
		return nil, err
	}

	for _, it := range items {
		base := []string{
			strconv.Itoa(it.Page),
			it.RowNo,
			it.ProductName,
			it.JANCode,
			it.VendorCode,
			it.Size,
			it.Color,
			strconv.Itoa(it.ReportedTotal),
		}
		tail := []string{
			strconv.Itoa(it.CalculatedTotal),
			verificationStatus(it),
		}

		if len(it.Distributions) == 0 {
			row := append(append(append([]string{}, base...), "", ""), tail...)
			if err := w.Write(row); err != nil {
				return nil, err
			}
			continue
		}
		for _, d := range it.Distributions {
			row := append(append(append([]string{}, base...), d.Code, strconv.Itoa(d.Quantity)), tail...)
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func verificationStatus(it *models.Item) string {
	if it.IsCorrect {
		return "OK"
	}
	return "needs review"
}

// TemplateCSV flattens dynamic-schema items against their template: page,
// one column per display column in field-definition order, then verified.
func TemplateCSV(t *models.Template, items []*models.Item) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	cols := template.Columns(t)

	w := csv.NewWriter(&buf)
	header := make([]string, 0, len(cols)+2)
	header = append(header, "page")
	for _, c := range cols {
		header = append(header, c.Label)
	}
	header = append(header, "verified")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, it := range items {
		row := make([]string, 0, len(cols)+2)
		row = append(row, strconv.Itoa(it.Page))
		for _, c := range cols {
			row = append(row, cellValue(lookupField(it.Fields, c.Key)))
		}
		row = append(row, boolToken(it.IsVerified))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookupField resolves a display-column key against the open field map,
// following one level of dotted path for flattened object children.
func lookupField(fields map[string]any, key string) any {
	if v, ok := fields[key]; ok {
		return v
	}
	parent, child, found := strings.Cut(key, ".")
	if !found {
		return nil
	}
	obj, ok := fields[parent].(map[string]any)
	if !ok {
		return nil
	}
	return obj[child]
}

// cellValue renders one field value as CSV text. Arrays of objects embed as
// JSON, primitive arrays join with ", ", booleans use yes/no tokens.
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return boolToken(val)
	case float64:
		return formatNumber(val)
	case json.Number:
		return val.String()
	case []any:
		if len(val) > 0 {
			if _, ok := val[0].(map[string]any); ok {
				encoded, err := json.Marshal(val)
				if err != nil {
					return ""
				}
				return string(encoded)
			}
		}
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = cellValue(elem)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		// Object without column flattening: stable key order.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + cellValue(val[k])
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func boolToken(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatNumber drops the trailing ".0" JSON decoding leaves on integers.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
