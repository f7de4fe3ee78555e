package placeholder

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
)

// Letter size is used when a page tree carries no usable MediaBox
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
	maxTreeDepth      = 10
)

// LedongthucSource reads pages and word blocks straight from PDF bytes. The
// library exposes no fill color, so every block is reported without one.
type LedongthucSource struct {
	reader *pdf.Reader
	page   int
	box    mediaBox
}

type mediaBox struct {
	llx, lly, urx, ury float64
}

func (b mediaBox) width() float64  { return b.urx - b.llx }
func (b mediaBox) height() float64 { return b.ury - b.lly }

var _ Source = (*LedongthucSource)(nil)

// NewLedongthucSource parses data
func NewLedongthucSource(data []byte) (*LedongthucSource, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return &LedongthucSource{reader: r}, nil
}

// PageCount returns the number of pages
func (s *LedongthucSource) PageCount() int {
	return s.reader.NumPage()
}

// SelectPage makes page the current page
func (s *LedongthucSource) SelectPage(page int) error {
	if page < 1 || page > s.reader.NumPage() {
		return fmt.Errorf("invalid page number %d (document has %d pages)", page, s.reader.NumPage())
	}
	s.page = page
	s.box = pageBox(s.reader.Page(page))
	return nil
}

func (s *LedongthucSource) PageWidth() float64  { return s.box.width() }
func (s *LedongthucSource) PageHeight() float64 { return s.box.height() }

// PageRotation returns the /Rotate entry of the current page
func (s *LedongthucSource) PageRotation() int {
	if s.page == 0 {
		return 0
	}
	return int(inherited(s.reader.Page(s.page).V, "Rotate").Int64())
}

// ExtractTextBlocks groups the glyph runs of a page into words with a
// top-left origin
func (s *LedongthucSource) ExtractTextBlocks(page int) (blocks []engine.TextBlock, err error) {
	if err := s.SelectPage(page); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read content of page %d: %v", page, r)
		}
	}()

	content := s.reader.Page(page).Content()
	return groupWords(content.Text, s.box), nil
}

// groupWords joins consecutive glyphs on one baseline until whitespace or a
// horizontal gap separates them
func groupWords(glyphs []pdf.Text, box mediaBox) []engine.TextBlock {
	var (
		out     []engine.TextBlock
		current *engine.TextBlock
		word    strings.Builder
		lastY   float64
		lastEnd float64
	)

	flush := func() {
		if current != nil && word.Len() > 0 {
			current.Text = word.String()
			out = append(out, *current)
		}
		current = nil
		word.Reset()
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		size := g.FontSize
		if size == 0 {
			size = 12
		}
		if current != nil && (math.Abs(g.Y-lastY) > size/4 || g.X-lastEnd > size/4 || g.Font != current.Font) {
			flush()
		}

		top := box.ury - (g.Y + size)
		left := g.X - box.llx
		if current == nil {
			current = &engine.TextBlock{
				Font:     g.Font,
				FontSize: size,
				Bounds:   engine.Rect{Left: left, Top: top, Width: g.W, Height: size},
			}
		} else {
			current.Bounds = union(current.Bounds, engine.Rect{Left: left, Top: top, Width: g.W, Height: size})
		}
		word.WriteString(g.S)
		lastY = g.Y
		lastEnd = g.X + g.W
	}
	flush()
	return out
}

// pageBox returns the MediaBox of a page, following the page tree for
// inherited entries
func pageBox(page pdf.Page) mediaBox {
	v := inherited(page.V, "MediaBox")
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return mediaBox{urx: defaultPageWidth, ury: defaultPageHeight}
	}
	var c [4]float64
	for i := range c {
		c[i] = number(v.Index(i))
	}
	b := mediaBox{llx: min(c[0], c[2]), lly: min(c[1], c[3]), urx: max(c[0], c[2]), ury: max(c[1], c[3])}
	if b.width() <= 0 || b.height() <= 0 {
		return mediaBox{urx: defaultPageWidth, ury: defaultPageHeight}
	}
	return b
}

func inherited(v pdf.Value, key string) pdf.Value {
	for i := 0; i < maxTreeDepth && !v.IsNull(); i++ {
		if k := v.Key(key); !k.IsNull() {
			return k
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func number(v pdf.Value) float64 {
	switch v.Kind() {
	case pdf.Integer:
		return float64(v.Int64())
	case pdf.Real:
		return v.Float64()
	default:
		return 0
	}
}
