package reduce

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine/enginetest"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// noisePNG is a poorly compressible image standing in for a scanned page
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func scannedDocument(t *testing.T) []byte {
	t.Helper()
	return enginetest.Bytes(enginetest.State{Pages: []enginetest.Page{{
		Width:    612,
		Height:   792,
		Rotation: 90,
		Images: []enginetest.Image{{
			ID:          1,
			Bounds:      engine.Rect{Width: 612, Height: 792},
			PixelWidth:  1224,
			PixelHeight: 1584,
			Data:        noisePNG(t, 1224, 1584),
		}},
	}}})
}

func TestReducer_BelowThresholdPassesThrough(t *testing.T) {
	factory := &enginetest.Factory{}
	r := NewReducer(factory, WithThreshold(1<<20))

	in := []byte("small document")
	out, err := r.ReduceIfOversized(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Empty(t, factory.Created, "no engine work below the threshold")
}

func TestReducer_ReplacesScannedPage(t *testing.T) {
	factory := &enginetest.Factory{}
	r := NewReducer(factory, WithThreshold(1))

	in := scannedDocument(t)
	out, err := r.ReduceIfOversized(in)
	require.NoError(t, err)
	assert.Less(t, len(out), len(in))

	state, err := enginetest.Decode(out)
	require.NoError(t, err)
	require.Len(t, state.Pages, 1)
	page := state.Pages[0]
	assert.Equal(t, 90, page.Rotation)
	require.Len(t, page.Draws, 1)
	assert.Equal(t, "image", page.Draws[0].Op)
	assert.Equal(t, engine.Rect{Width: 612, Height: 792}, page.Draws[0].Bounds)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(page.Draws[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 935, cfg.Width, "scan is down-sampled to the DPI target")
	assert.Equal(t, 1210, cfg.Height)

	assert.Zero(t, factory.Created[0].Calls["RenderPage"])
	assert.Zero(t, factory.Created[0].OpenHandles)
}

func TestReducer_RendersPagesWithoutScan(t *testing.T) {
	factory := &enginetest.Factory{}
	r := NewReducer(factory, WithThreshold(1), WithDPI(36))

	in := enginetest.Bytes(enginetest.State{Pages: []enginetest.Page{
		{Width: 612, Height: 792, Images: []enginetest.Image{{ID: 1, PixelWidth: 100, PixelHeight: 100, Data: noisePNG(t, 100, 100)}}},
		{Width: 792, Height: 612},
	}})

	out, err := r.ReduceIfOversized(in)
	require.NoError(t, err)
	require.Less(t, len(out), len(in))

	state, err := enginetest.Decode(out)
	require.NoError(t, err)
	require.Len(t, state.Pages, 2)
	assert.Equal(t, 792.0, state.Pages[1].Width)
	assert.Equal(t, 2, factory.Created[0].Calls["RenderPage"])
}

func TestReducer_NeverGrowsDocument(t *testing.T) {
	factory := &enginetest.Factory{}
	r := NewReducer(factory, WithThreshold(1))

	in := enginetest.Bytes(enginetest.State{Pages: []enginetest.Page{{Width: 612, Height: 792}}})
	out, err := r.ReduceIfOversized(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReducer_UndecodableScanFallsBackToRender(t *testing.T) {
	factory := &enginetest.Factory{}
	r := NewReducer(factory, WithThreshold(1), WithDPI(36))

	in := enginetest.Bytes(enginetest.State{Pages: []enginetest.Page{{
		Width:  612,
		Height: 792,
		Images: []enginetest.Image{{ID: 1, PixelWidth: 2000, PixelHeight: 2000, Data: bytes.Repeat([]byte("x"), 64<<10)}},
	}}})

	out, err := r.ReduceIfOversized(in)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), len(in))
	assert.Equal(t, 1, factory.Created[0].Calls["RenderPage"])
	assert.Zero(t, factory.Created[0].OpenHandles)
}

func TestReducer_CorruptInput(t *testing.T) {
	r := NewReducer(&enginetest.Factory{}, WithThreshold(1))

	out, err := r.ReduceIfOversized([]byte("not a document at all"))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, pdferrors.ErrorTypeCorruptInput, pdferrors.TypeOf(err))
}
