// Package reduce rebuilds oversized documents from re-encoded page images.
package reduce

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Defaults for the size reduction heuristic
const (
	DefaultThreshold = 5 << 20
	DefaultDPI       = 110.0
	DefaultQuality   = 60
)

// Reducer re-encodes every page of an oversized document as a full-page JPEG
type Reducer struct {
	factory   engine.Factory
	threshold int
	dpi       float64
	quality   int
	password  string
	logger    *log.Logger
}

// Option configures a Reducer
type Option func(*Reducer)

// WithThreshold sets the byte length at which reduction is attempted
func WithThreshold(n int) Option {
	return func(r *Reducer) { r.threshold = n }
}

// WithDPI sets the rasterization resolution
func WithDPI(dpi float64) Option {
	return func(r *Reducer) { r.dpi = dpi }
}

// WithQuality sets the JPEG quality, 1 to 100
func WithQuality(q int) Option {
	return func(r *Reducer) { r.quality = q }
}

// WithPassword sets the password used to open documents
func WithPassword(password string) Option {
	return func(r *Reducer) { r.password = password }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(r *Reducer) { r.logger = logger }
}

// NewReducer creates a reducer that opens documents through factory
func NewReducer(factory engine.Factory, opts ...Option) *Reducer {
	r := &Reducer{
		factory:   factory,
		threshold: DefaultThreshold,
		dpi:       DefaultDPI,
		quality:   DefaultQuality,
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReduceIfOversized returns a rebuilt document when data reaches the
// threshold and the rebuilt bytes are strictly smaller; otherwise data
func (r *Reducer) ReduceIfOversized(data []byte) ([]byte, error) {
	if len(data) < r.threshold {
		return data, nil
	}

	src := r.factory.New()
	if err := src.LoadFromBytes(data, r.password); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to load document for reduction", err)
	}
	dst := r.factory.New()
	if err := dst.NewDocument(); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to create reduced document", err)
	}

	for p := 1; p <= src.PageCount(); p++ {
		if err := src.SelectPage(p); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "cannot select page", err).WithPage(p)
		}
		w, h, rotation := src.PageWidth(), src.PageHeight(), src.PageRotation()

		img, err := r.pageImage(src, p, w, h)
		if err != nil {
			return nil, err
		}

		if err := dst.NewPage(w, h); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to add page", err).WithPage(p)
		}
		if err := dst.SetPageRotation(rotation); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to rotate page", err).WithPage(p)
		}
		if err := dst.DrawImage(img, engine.Rect{Width: w, Height: h}); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to place page image", err).WithPage(p)
		}
	}

	out, err := dst.SaveToBytes()
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to save reduced document", err)
	}
	if len(out) >= len(data) {
		r.logger.Printf("reduce: rebuilt document is not smaller (%d >= %d bytes), keeping original", len(out), len(data))
		return data, nil
	}
	r.logger.Printf("reduce: %d -> %d bytes", len(data), len(out))
	return out, nil
}

// pageImage returns the JPEG that replaces page p: the down-sampled scan
// when the page holds one, the rendered page otherwise
func (r *Reducer) pageImage(doc engine.Document, p int, w, h float64) ([]byte, error) {
	scan, err := r.scanImage(doc, p, w, h)
	if err != nil {
		r.logger.Printf("reduce: page %d scan unusable, rendering instead: %v", p, err)
	}
	if scan != nil {
		return r.encode(scan, w, h)
	}

	rendered, err := doc.RenderPage(p, r.dpi)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to render page", err).WithPage(p)
	}
	img, _, err := image.Decode(bytes.NewReader(rendered))
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to decode rendered page", err).WithPage(p)
	}
	return r.encode(img, w, h)
}

// scanImage returns the first placed image whose pixel size is at least the
// page size in points, or nil
func (r *Reducer) scanImage(doc engine.Document, p int, w, h float64) (image.Image, error) {
	list, err := doc.PageImageList(p)
	if err != nil {
		return nil, err
	}
	defer list.Release()

	for i := 0; i < list.Count(); i++ {
		pw, ph := list.PixelSize(i)
		if float64(pw) < w || float64(ph) < h {
			continue
		}
		handle, err := list.Image(i)
		if err != nil {
			return nil, err
		}
		defer handle.Release()

		raw, err := handle.Encoded()
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decode image %d: %w", list.ImageID(i), err)
		}
		return img, nil
	}
	return nil, nil
}

// encode down-samples img to the DPI target when it is larger and encodes
// it as JPEG
func (r *Reducer) encode(img image.Image, w, h float64) ([]byte, error) {
	tw := max(1, int(w*r.dpi/72))
	th := max(1, int(h*r.dpi/72))
	b := img.Bounds()
	if b.Dx() > tw || b.Dy() > th {
		scaled := image.NewRGBA(image.Rect(0, 0, tw, th))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to encode page image", err)
	}
	return buf.Bytes(), nil
}
