package fields

import (
	"math"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// DefaultTolerance is the page-fraction tolerance used for field equality
const DefaultTolerance = 0.001

// AreEqual compares two fields with DefaultTolerance
func AreEqual(a, b BaseField, compareDescription bool) bool {
	return AreEqualWithin(a, b, compareDescription, DefaultTolerance)
}

// AreEqualWithin reports whether a and b occupy the same position on the same
// page with the same mandatory flag. Each coordinate must differ by strictly
// less than tol.
func AreEqualWithin(a, b BaseField, compareDescription bool, tol float64) bool {
	if a.Page != b.Page || a.Mandatory != b.Mandatory {
		return false
	}
	if compareDescription && a.Description != b.Description {
		return false
	}
	return math.Abs(a.X-b.X) < tol &&
		math.Abs(a.Y-b.Y) < tol &&
		math.Abs(a.Width-b.Width) < tol &&
		math.Abs(a.Height-b.Height) < tol
}

// Validate checks that the field lies on a page and within its bounds
func (b BaseField) Validate() error {
	if b.Page < 1 {
		return pdferrors.ErrInvalidGeometry.WithField(b.Name).WithContext("page must be 1 or greater")
	}
	if b.X < 0 || b.Y < 0 || b.Width < 0 || b.Height < 0 {
		return pdferrors.ErrInvalidGeometry.WithField(b.Name).WithPage(b.Page).WithContext("negative coordinate")
	}
	if b.X+b.Width > 1+DefaultTolerance || b.Y+b.Height > 1+DefaultTolerance {
		return pdferrors.ErrInvalidGeometry.WithField(b.Name).WithPage(b.Page).WithContext("field exceeds page")
	}
	return nil
}

// ToPoints converts page fractions to engine points for a page of the given size
func (b BaseField) ToPoints(pageWidth, pageHeight float64) engine.Rect {
	return engine.Rect{
		Left:   b.X * pageWidth,
		Top:    b.Y * pageHeight,
		Width:  b.Width * pageWidth,
		Height: b.Height * pageHeight,
	}
}

// FromPoints sets the geometry of b from engine points for a page of the given size
func (b *BaseField) FromPoints(r engine.Rect, pageWidth, pageHeight float64) {
	if pageWidth <= 0 || pageHeight <= 0 {
		return
	}
	b.X = r.Left / pageWidth
	b.Y = r.Top / pageHeight
	b.Width = r.Width / pageWidth
	b.Height = r.Height / pageHeight
}

// PageSize selects page and returns its dimensions in points. Sizes are read
// on every call since pages of one document may differ.
func PageSize(pages engine.Pages, page int) (width, height float64, err error) {
	if err := pages.SelectPage(page); err != nil {
		return 0, 0, pdferrors.Wrap(pdferrors.ErrorTypePrecondition, "cannot select page", err).WithPage(page)
	}
	return pages.PageWidth(), pages.PageHeight(), nil
}
