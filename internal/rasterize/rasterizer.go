package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/pkg/logger"
)

// Page is one rasterized page of a source document, in document order.
type Page struct {
	Data        []byte
	ContentType string
}

// Rasterizer converts a source document into an ordered page image sequence.
// PDF input renders one compressed JPEG per page, bounded by MaxDimension;
// raster input passes through unchanged as a single page.
type Rasterizer struct {
	maxDimension int
	jpegQuality  int // 1-100
	logger       logger.Logger
}

// NewRasterizer bounds output pages to maxDimension pixels on the longest
// edge and re-encodes with the given lossy quality (0-1 scale).
func NewRasterizer(maxDimension int, quality float64, log logger.Logger) *Rasterizer {
	q := int(quality * 100)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return &Rasterizer{
		maxDimension: maxDimension,
		jpegQuality:  q,
		logger:       log,
	}
}

// Rasterize produces the page sequence for one document. It either returns
// every page or fails with a RasterizationError; no partial page list.
func (r *Rasterizer) Rasterize(ctx context.Context, filename string, data []byte, contentType string) ([]Page, error) {
	if strings.HasPrefix(contentType, "image/") {
		// Already a raster image: single page, original bytes untouched.
		return []Page{{Data: data, ContentType: contentType}}, nil
	}

	if contentType != "application/pdf" {
		return nil, &models.RasterizationError{
			Filename: filename,
			Err:      fmt.Errorf("unsupported content type %q", contentType),
		}
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &models.RasterizationError{Filename: filename, Err: err}
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, &models.RasterizationError{
			Filename: filename,
			Err:      fmt.Errorf("document has no pages"),
		}
	}

	pages := make([]Page, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, &models.RasterizationError{Filename: filename, Err: ctx.Err()}
		default:
		}

		img, err := doc.Image(pageNum)
		if err != nil {
			return nil, &models.RasterizationError{
				Filename: filename,
				Err:      fmt.Errorf("failed to render page %d: %w", pageNum+1, err),
			}
		}

		encoded, err := r.encode(img)
		if err != nil {
			return nil, &models.RasterizationError{
				Filename: filename,
				Err:      fmt.Errorf("failed to encode page %d: %w", pageNum+1, err),
			}
		}
		pages = append(pages, Page{Data: encoded, ContentType: "image/jpeg"})
	}

	r.logger.Info("Rasterized document",
		logger.String("filename", filename),
		logger.Int("pages", len(pages)),
	)
	return pages, nil
}

func (r *Rasterizer) encode(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() > r.maxDimension || bounds.Dy() > r.maxDimension {
		img = imaging.Fit(img, r.maxDimension, r.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
