// Package placeholder recovers field positions from colored bracket markers
// authored into a template, such as {signature} printed in red.
package placeholder

import (
	"io"
	"log"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

// Pair is the opening and closing marker of a placeholder
type Pair struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// DefaultPair and DefaultColor are used when Extract is given none
var (
	DefaultPair  = Pair{Open: "{", Close: "}"}
	DefaultColor = "red"
)

// maxBlocks is the longest run of text blocks one placeholder may span
const maxBlocks = 3

// Source is the page and text surface the extractor scans
type Source interface {
	engine.Pages
	engine.TextSource
}

// Extractor scans every page of a source for placeholders
type Extractor struct {
	src    Source
	logger *log.Logger
}

// NewExtractor creates an extractor over src. A nil logger discards output.
func NewExtractor(src Source, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Extractor{src: src, logger: logger}
}

// Extract returns one coordinate per placeholder whose blocks are printed in
// color. Blocks that carry no color information match any color.
func (e *Extractor) Extract(pair *Pair, color string) ([]fields.FieldCoordinate, error) {
	p := DefaultPair
	if pair != nil && pair.Open != "" && pair.Close != "" {
		p = *pair
	}
	if color == "" {
		color = DefaultColor
	}

	var out []fields.FieldCoordinate
	for page := 1; page <= e.src.PageCount(); page++ {
		w, h, err := fields.PageSize(e.src, page)
		if err != nil {
			return nil, err
		}
		if w <= 0 || h <= 0 {
			return nil, pdferrors.New(pdferrors.ErrorTypeCorruptInput, "page has no size").WithPage(page)
		}
		blocks, err := e.src.ExtractTextBlocks(page)
		if err != nil {
			e.logger.Printf("placeholder: skipping page %d: %v", page, err)
			continue
		}
		out = append(out, scanPage(blocks, p, color, page, w, h)...)
	}
	return out, nil
}

// scanPage runs the lookahead over the blocks of one page
func scanPage(blocks []engine.TextBlock, p Pair, color string, page int, w, h float64) []fields.FieldCoordinate {
	var out []fields.FieldCoordinate
	for i := 0; i < len(blocks); {
		if !colorMatches(blocks[i].Color, color) {
			i++
			continue
		}
		name, n := match(blocks[i:], p, color)
		if n == 0 {
			i++
			continue
		}

		first, last := blocks[i], blocks[i+n-1]
		box := union(first.Bounds, last.Bounds)
		tc := first.Color
		if tc == "" {
			tc = color
		}
		out = append(out, fields.FieldCoordinate{
			Text:      name,
			FontName:  first.Font,
			TextSize:  first.FontSize,
			TextColor: tc,
			Page:      page,
			Left:      box.Left / w,
			Top:       box.Top / h,
			Width:     box.Width / w,
			Height:    box.Height / h,
		})
		i += n
	}
	return out
}

// match tries to assemble one placeholder from the first 1 to maxBlocks
// blocks. It returns the name and the number of blocks consumed, or 0.
func match(blocks []engine.TextBlock, p Pair, color string) (string, int) {
	start := strings.TrimSpace(blocks[0].Text)

	// {name} reads forward; }name{ is the same marker with reversed glyph order
	for _, m := range []Pair{p, {Open: p.Close, Close: p.Open}} {
		if !strings.HasPrefix(start, m.Open) {
			continue
		}
		var text strings.Builder
		for n := 1; n <= maxBlocks && n <= len(blocks); n++ {
			b := blocks[n-1]
			if n > 1 && !colorMatches(b.Color, color) {
				break
			}
			text.WriteString(strings.TrimSpace(b.Text))
			s := text.String()
			if len(s) > len(m.Open) && strings.HasSuffix(s, m.Close) {
				if name := cleanName(s[len(m.Open) : len(s)-len(m.Close)]); name != "" {
					return name, n
				}
				break
			}
		}
	}
	return "", 0
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ","))
}

func colorMatches(blockColor, target string) bool {
	return blockColor == "" || strings.EqualFold(blockColor, target)
}

// union returns the normalized box spanning a and b
func union(a, b engine.Rect) engine.Rect {
	left := min(a.Left, b.Left)
	top := min(a.Top, b.Top)
	right := max(a.Right(), b.Right())
	bottom := max(a.Bottom(), b.Bottom())
	return engine.Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}
