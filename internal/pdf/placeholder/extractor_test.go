package placeholder

import (
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine/enginetest"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/pdftest"
)

func block(text, color string, left, top, width float64) engine.TextBlock {
	return engine.TextBlock{
		Text:     text,
		Color:    color,
		Font:     "Helvetica",
		FontSize: 10,
		Bounds:   engine.Rect{Left: left, Top: top, Width: width, Height: 10},
	}
}

func documentWith(pages ...[]engine.TextBlock) *enginetest.Document {
	doc := enginetest.New()
	for _, blocks := range pages {
		doc.State.Pages = append(doc.State.Pages, enginetest.Page{Width: 500, Height: 1000, Blocks: blocks})
	}
	return doc
}

func names(coords []fields.FieldCoordinate) []string {
	out := make([]string, 0, len(coords))
	for _, c := range coords {
		out = append(out, c.Text)
	}
	return out
}

func TestExtract_Patterns(t *testing.T) {
	tests := []struct {
		name   string
		blocks []engine.TextBlock
		want   []string
	}{
		{
			name:   "single_block",
			blocks: []engine.TextBlock{block("{name}", "red", 50, 100, 40)},
			want:   []string{"name"},
		},
		{
			name: "three_blocks_with_comma",
			blocks: []engine.TextBlock{
				block("{", "red", 50, 100, 5),
				block("email,", "red", 55, 100, 30),
				block("}", "red", 85, 100, 5),
			},
			want: []string{"email"},
		},
		{
			name: "two_blocks",
			blocks: []engine.TextBlock{
				block("{first", "red", 50, 100, 25),
				block("name}", "red", 75, 100, 25),
			},
			want: []string{"firstname"},
		},
		{
			name:   "reversed",
			blocks: []engine.TextBlock{block("}date{", "red", 50, 100, 30)},
			want:   []string{"date"},
		},
		{
			name: "reversed_split",
			blocks: []engine.TextBlock{
				block("}", "red", 50, 100, 5),
				block("sig{", "red", 55, 100, 20),
			},
			want: []string{"sig"},
		},
		{
			name: "too_many_blocks",
			blocks: []engine.TextBlock{
				block("{", "red", 50, 100, 5),
				block("a", "red", 55, 100, 5),
				block("b", "red", 60, 100, 5),
				block("}", "red", 65, 100, 5),
			},
		},
		{
			name: "wrong_color",
			blocks: []engine.TextBlock{
				block("{name}", "black", 50, 100, 40),
				block("{other}", "RED", 50, 200, 40),
			},
			want: []string{"other"},
		},
		{
			name: "color_change_breaks_run",
			blocks: []engine.TextBlock{
				block("{", "red", 50, 100, 5),
				block("name}", "blue", 55, 100, 25),
			},
		},
		{
			name:   "empty_name",
			blocks: []engine.TextBlock{block("{}", "red", 50, 100, 10), block("{ , }", "red", 50, 120, 10)},
		},
		{
			name: "consecutive",
			blocks: []engine.TextBlock{
				block("{a}", "red", 50, 100, 15),
				block("plain", "red", 70, 100, 25),
				block("{b", "red", 100, 100, 10),
				block("}", "red", 110, 100, 5),
			},
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coords, err := NewExtractor(documentWith(tt.blocks), nil).Extract(nil, "")
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, coords)
				return
			}
			assert.Equal(t, tt.want, names(coords))
		})
	}
}

func TestExtract_BoundingBox(t *testing.T) {
	doc := documentWith(
		nil,
		[]engine.TextBlock{
			block("{", "red", 50, 100, 5),
			block("amount,", "red", 57, 98, 40),
			block("}", "red", 100, 102, 5),
		},
	)

	coords, err := NewExtractor(doc, nil).Extract(nil, "red")
	require.NoError(t, err)
	require.Len(t, coords, 1)

	c := coords[0]
	assert.Equal(t, 2, c.Page)
	assert.Equal(t, "Helvetica", c.FontName)
	assert.Equal(t, 10.0, c.TextSize)
	assert.Equal(t, "red", c.TextColor)
	// First and last blocks only: x 50..105, y 100..112
	assert.InDelta(t, 0.1, c.Left, 1e-9)
	assert.InDelta(t, 0.1, c.Top, 1e-9)
	assert.InDelta(t, 0.11, c.Width, 1e-9)
	assert.InDelta(t, 0.012, c.Height, 1e-9)
}

func TestExtract_CustomPair(t *testing.T) {
	doc := documentWith([]engine.TextBlock{
		block("[[initials]]", "green", 10, 10, 40),
		block("{name}", "green", 10, 30, 40),
	})

	coords, err := NewExtractor(doc, nil).Extract(&Pair{Open: "[[", Close: "]]"}, "green")
	require.NoError(t, err)
	assert.Equal(t, []string{"initials"}, names(coords))
}

func TestExtract_UncoloredBlocksMatchAnyColor(t *testing.T) {
	doc := documentWith([]engine.TextBlock{block("{name}", "", 10, 10, 40)})

	coords, err := NewExtractor(doc, nil).Extract(nil, "purple")
	require.NoError(t, err)
	require.Len(t, coords, 1)
	assert.Equal(t, "purple", coords[0].TextColor)
}

func TestExtract_SkipsUnreadablePage(t *testing.T) {
	doc := documentWith([]engine.TextBlock{block("{a}", "red", 10, 10, 20)})
	doc.Fail["ExtractTextBlocks"] = errors.New("broken content stream")

	coords, err := NewExtractor(doc, nil).Extract(nil, "")
	require.NoError(t, err)
	assert.Empty(t, coords)
}

func TestGroupWords(t *testing.T) {
	box := mediaBox{urx: 600, ury: 800}
	glyphs := []pdf.Text{
		{Font: "F1", FontSize: 10, X: 100, Y: 700, W: 5, S: "{"},
		{Font: "F1", FontSize: 10, X: 105, Y: 700, W: 5, S: "a"},
		{Font: "F1", FontSize: 10, X: 110, Y: 700, W: 5, S: "}"},
		{Font: "F1", FontSize: 10, X: 115, Y: 700, W: 3, S: " "},
		{Font: "F1", FontSize: 10, X: 118, Y: 700, W: 5, S: "b"},
		// Next line
		{Font: "F1", FontSize: 10, X: 100, Y: 680, W: 5, S: "c"},
	}

	words := groupWords(glyphs, box)
	require.Len(t, words, 3)
	assert.Equal(t, "{a}", words[0].Text)
	assert.Equal(t, engine.Rect{Left: 100, Top: 90, Width: 15, Height: 10}, words[0].Bounds)
	assert.Equal(t, "b", words[1].Text)
	assert.Equal(t, "c", words[2].Text)
	assert.InDelta(t, 110.0, words[2].Bounds.Top, 1e-9)
	assert.Empty(t, words[0].Color)
}

func TestLedongthucSource_Pages(t *testing.T) {
	data := pdftest.Build([]pdftest.Page{{Width: 612, Height: 792}, {Width: 842, Height: 595}})

	src, err := NewLedongthucSource(data)
	require.NoError(t, err)
	assert.Equal(t, 2, src.PageCount())

	require.NoError(t, src.SelectPage(2))
	assert.Equal(t, 842.0, src.PageWidth())
	assert.Equal(t, 595.0, src.PageHeight())
	assert.Equal(t, 0, src.PageRotation())

	assert.Error(t, src.SelectPage(3))
	_, err = NewLedongthucSource([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestPageBox_DefaultsToLetter(t *testing.T) {
	b := pageBox(pdf.Page{})
	assert.Equal(t, 612.0, b.width())
	assert.Equal(t, 792.0, b.height())
}
