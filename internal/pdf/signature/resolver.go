// Package signature pairs placed raster images with the signature fields
// they were stamped into.
package signature

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

// PlaceholderImage is returned for signatures applied outside the visible page
const PlaceholderImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// containmentError inflates the upper bound of a field box
const containmentError = 1e-4

// Document is the engine surface the resolver reads images through
type Document interface {
	engine.Pages
	engine.ImageSource
}

// Resolver finds the raster image stamped inside a signature field
type Resolver struct {
	doc        Document
	documentID string
	cache      *Cache
	logger     *log.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithCache shares an inventory cache between resolvers
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger for swallowed decode failures
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver for the document identified by documentID.
// Without a cache every lookup rebuilds the page inventory.
func NewResolver(doc Document, documentID string, opts ...Option) *Resolver {
	r := &Resolver{
		doc:        doc,
		documentID: documentID,
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveImage returns the image inside field as a PNG data URI, or nil when
// no placed image fits the field
func (r *Resolver) ResolveImage(field fields.SignatureField) *string {
	if field.Width == 0 && field.Height == 0 && field.X == 0 && field.Y == 1 {
		placeholder := PlaceholderImage
		return &placeholder
	}

	inv, err := r.inventory(field.Page)
	if err != nil {
		r.logger.Printf("signature: no inventory for page %d of %s: %v", field.Page, r.documentID, err)
		return nil
	}

	for _, img := range inv.Images {
		if !Contains(field.BaseField, img) {
			continue
		}
		uri, err := r.encode(field.Page, img)
		if err != nil {
			r.logger.Printf("signature: cannot decode image %d for field %s: %v", img.ImageID, field.Name, err)
			return nil
		}
		return &uri
	}
	return nil
}

// Populate fills the Image of every signature field
func (r *Resolver) Populate(p *fields.PDFFields) {
	for i := range p.SignatureFields {
		p.SignatureFields[i].Image = r.ResolveImage(p.SignatureFields[i])
	}
}

// Contains reports whether img lies inside field. Only the upper edges are
// widened by the error factor.
func Contains(field fields.BaseField, img fields.SignatureImageInPage) bool {
	return field.X <= img.X &&
		field.X+field.Width+containmentError >= img.X+img.W &&
		field.Y <= img.Y &&
		field.Y+field.Height+containmentError >= img.Y+img.H
}

func (r *Resolver) inventory(page int) (*fields.SignatureImagesInPage, error) {
	if r.cache != nil {
		if inv, ok := r.cache.Get(r.documentID, page); ok {
			return inv, nil
		}
	}

	w, h, err := fields.PageSize(r.doc, page)
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, pdferrors.New(pdferrors.ErrorTypeCorruptInput, "page has no size").WithPage(page)
	}
	list, err := r.doc.PageImageList(page)
	if err != nil {
		return nil, err
	}
	defer list.Release()

	inv := &fields.SignatureImagesInPage{Page: page}
	for i := 0; i < list.Count(); i++ {
		b := list.Bounds(i)
		inv.Images = append(inv.Images, fields.SignatureImageInPage{
			ImageListID: list.ID(),
			ImageID:     list.ImageID(i),
			ImageIndex:  i,
			ImageGID:    uuid.NewString(),
			X:           b.Left / w,
			Y:           b.Top / h,
			W:           b.Width / w,
			H:           b.Height / h,
		})
	}

	if r.cache != nil {
		r.cache.Put(r.documentID, inv)
	}
	return inv, nil
}

// encode reopens the page image list, decodes the entry and re-encodes it
// as a PNG data URI
func (r *Resolver) encode(page int, entry fields.SignatureImageInPage) (string, error) {
	list, err := r.doc.PageImageList(page)
	if err != nil {
		return "", err
	}
	defer list.Release()

	if entry.ImageIndex >= list.Count() || list.ImageID(entry.ImageIndex) != entry.ImageID {
		return "", fmt.Errorf("image %d moved since inventory was built", entry.ImageID)
	}

	handle, err := list.Image(entry.ImageIndex)
	if err != nil {
		return "", err
	}
	defer handle.Release()

	raw, err := handle.Encoded()
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
