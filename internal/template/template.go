// Package template inspects uploaded certificate template PDFs.
package template

import (
	"errors"
	"fmt"

	"github.com/InkLedgerLabs/certmark/backend/internal/geometry"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrEmptyTemplate indicates a PDF without any pages.
var ErrEmptyTemplate = errors.New("template: pdf has no pages")

// Info describes a validated template: page count and per-page dimensions in
// PDF points. Page dimensions are the design reference size annotations are
// placed against.
type Info struct {
	PageCount int
	PageSizes []geometry.Size
}

// PageSize returns the design reference size of the 1-based page, falling
// back to the first page for out-of-range values.
func (i Info) PageSize(page int) geometry.Size {
	if len(i.PageSizes) == 0 {
		return geometry.Size{}
	}
	if page < 1 || page > len(i.PageSizes) {
		return i.PageSizes[0]
	}
	return i.PageSizes[page-1]
}

// Inspect validates the PDF and reads its page count and page dimensions.
func Inspect(path string) (Info, error) {
	config := model.NewDefaultConfiguration()

	if err := pdfapi.ValidateFile(path, config); err != nil {
		return Info{}, fmt.Errorf("template validation failed: %w", err)
	}

	pageCount, err := pdfapi.PageCountFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("template page count failed: %w", err)
	}
	if pageCount < 1 {
		return Info{}, ErrEmptyTemplate
	}

	dims, err := pdfapi.PageDimsFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("template page dimensions failed: %w", err)
	}

	sizes := make([]geometry.Size, 0, len(dims))
	for _, dim := range dims {
		sizes = append(sizes, geometry.Size{Width: dim.Width, Height: dim.Height})
	}

	return Info{PageCount: pageCount, PageSizes: sizes}, nil
}
