// Package enginetest provides an in-memory engine.Document for tests. Its
// byte format is a JSON snapshot of the document state behind a fixed header,
// so SaveToBytes and LoadFromBytes round-trip every field and page.
package enginetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"slices"
	"sync"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
)

// Header prefixes every byte stream produced by SaveToBytes
const Header = "%FAKEPDF-1\n"

// Page is one page of the fake document
type Page struct {
	Width    float64            `json:"width"`
	Height   float64            `json:"height"`
	Rotation int                `json:"rotation"`
	Images   []Image            `json:"images,omitempty"`
	Blocks   []engine.TextBlock `json:"blocks,omitempty"`
	Draws    []Draw             `json:"draws,omitempty"`
}

// Image is a placed raster
type Image struct {
	ID          int         `json:"id"`
	Bounds      engine.Rect `json:"bounds"`
	PixelWidth  int         `json:"pixel_width"`
	PixelHeight int         `json:"pixel_height"`
	Data        []byte      `json:"data"`
}

// Draw records one drawing primitive
type Draw struct {
	Op     string      `json:"op"`
	Text   string      `json:"text,omitempty"`
	Font   string      `json:"font,omitempty"`
	Size   float64     `json:"size,omitempty"`
	X      float64     `json:"x,omitempty"`
	Y      float64     `json:"y,omitempty"`
	Bounds engine.Rect `json:"bounds,omitempty"`
	Data   []byte      `json:"data,omitempty"`
}

// Field is a stored form field
type Field struct {
	engine.FieldSpec
	ReadOnly    bool `json:"read_only,omitempty"`
	Appearances int  `json:"appearances,omitempty"`
}

// State is everything persisted by SaveToBytes
type State struct {
	Pages  []Page   `json:"pages"`
	Fields []Field  `json:"fields"`
	Fonts  []string `json:"fonts,omitempty"`
}

// Document is an in-memory engine.Document
type Document struct {
	State State

	// Calls counts invocations per method name
	Calls map[string]int
	// Fail makes the named method return the error; FailTimes bounds how
	// many times (0 means always)
	Fail      map[string]error
	FailTimes map[string]int
	// EmptyFieldTableLoads is the number of subsequent loads that report an
	// empty field table
	EmptyFieldTableLoads int
	// OpenHandles counts image list and image handles not yet released
	OpenHandles int

	loaded     bool
	hideFields bool
	page       int
	nextListID int
}

var _ engine.Document = (*Document)(nil)

// New returns an unloaded document
func New() *Document {
	return &Document{
		Calls:     make(map[string]int),
		Fail:      make(map[string]error),
		FailTimes: make(map[string]int),
	}
}

// NewLoaded returns a loaded document with the given page sizes
func NewLoaded(sizes ...[2]float64) *Document {
	d := New()
	d.loaded = true
	for _, s := range sizes {
		d.State.Pages = append(d.State.Pages, Page{Width: s[0], Height: s[1]})
	}
	if len(d.State.Pages) > 0 {
		d.page = 1
	}
	return d
}

// Bytes encodes a state in the fake byte format
func Bytes(s State) []byte {
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return append([]byte(Header), data...)
}

// Decode parses bytes produced by SaveToBytes
func Decode(data []byte) (State, error) {
	var s State
	if !bytes.HasPrefix(data, []byte(Header)) {
		return s, fmt.Errorf("not a fake document")
	}
	err := json.Unmarshal(data[len(Header):], &s)
	return s, err
}

func (d *Document) call(name string) error {
	d.Calls[name]++
	err, ok := d.Fail[name]
	if !ok {
		return nil
	}
	if n := d.FailTimes[name]; n > 0 {
		if n == 1 {
			delete(d.Fail, name)
		}
		d.FailTimes[name] = n - 1
	}
	return err
}

// Loader

func (d *Document) LoadFromBytes(data []byte, _ string) error {
	if err := d.call("LoadFromBytes"); err != nil {
		return err
	}
	s, err := Decode(data)
	if err != nil {
		return err
	}
	d.State = s
	d.loaded = true
	d.page = 0
	if len(s.Pages) > 0 {
		d.page = 1
	}
	d.hideFields = false
	if d.EmptyFieldTableLoads > 0 {
		d.EmptyFieldTableLoads--
		d.hideFields = true
	}
	return nil
}

func (d *Document) NewDocument() error {
	if err := d.call("NewDocument"); err != nil {
		return err
	}
	d.State = State{}
	d.loaded = true
	d.page = 0
	return nil
}

func (d *Document) SaveToBytes() ([]byte, error) {
	if err := d.call("SaveToBytes"); err != nil {
		return nil, err
	}
	return Bytes(d.State), nil
}

func (d *Document) IsLoaded() bool { return d.loaded }

// Pages

func (d *Document) PageCount() int { return len(d.State.Pages) }

func (d *Document) SelectPage(page int) error {
	if page < 1 || page > len(d.State.Pages) {
		return fmt.Errorf("page %d out of range", page)
	}
	d.page = page
	return nil
}

func (d *Document) current() *Page {
	if d.page < 1 || d.page > len(d.State.Pages) {
		return &Page{}
	}
	return &d.State.Pages[d.page-1]
}

func (d *Document) PageWidth() float64  { return d.current().Width }
func (d *Document) PageHeight() float64 { return d.current().Height }
func (d *Document) PageRotation() int   { return d.current().Rotation }

// FieldTable

func (d *Document) field(index int) *Field {
	if index < 0 || index >= len(d.State.Fields) {
		return &Field{}
	}
	return &d.State.Fields[index]
}

func (d *Document) FieldCount() int {
	if d.hideFields {
		return 0
	}
	return len(d.State.Fields)
}

func (d *Document) FindField(name string) int {
	if d.hideFields {
		return -1
	}
	for i, f := range d.State.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (d *Document) FieldKind(i int) engine.FieldKind { return d.field(i).Kind }
func (d *Document) FieldTitle(i int) string          { return d.field(i).Name }
func (d *Document) FieldPage(i int) int              { return d.field(i).Page }
func (d *Document) FieldBounds(i int) engine.Rect    { return d.field(i).Bounds }
func (d *Document) FieldValue(i int) string          { return d.field(i).Value }
func (d *Document) FieldRequired(i int) bool         { return d.field(i).Required }
func (d *Document) FieldDescription(i int) string    { return d.field(i).Description }
func (d *Document) FieldOptions(i int) []string      { return d.field(i).Options }
func (d *Document) FieldChecked(i int) bool          { return d.field(i).Checked }
func (d *Document) FieldMultiline(i int) bool        { return d.field(i).Multiline }
func (d *Document) FieldHidden(i int) bool           { return d.field(i).Hidden }

func (d *Document) SetFieldBounds(i, page int, bounds engine.Rect) error {
	if err := d.call("SetFieldBounds"); err != nil {
		return err
	}
	d.field(i).Page = page
	d.field(i).Bounds = bounds
	return nil
}

func (d *Document) SetFieldValue(i int, value string) error {
	if err := d.call("SetFieldValue"); err != nil {
		return err
	}
	d.field(i).Value = value
	return nil
}

func (d *Document) SetFieldRequired(i int, required bool) error {
	if err := d.call("SetFieldRequired"); err != nil {
		return err
	}
	d.field(i).Required = required
	return nil
}

func (d *Document) SetFieldDescription(i int, description string) error {
	if err := d.call("SetFieldDescription"); err != nil {
		return err
	}
	d.field(i).Description = description
	return nil
}

func (d *Document) SetFieldChecked(i int, checked bool) error {
	if err := d.call("SetFieldChecked"); err != nil {
		return err
	}
	d.field(i).Checked = checked
	return nil
}

func (d *Document) SetFieldReadOnly(i int, readOnly bool) error {
	if err := d.call("SetFieldReadOnly"); err != nil {
		return err
	}
	d.field(i).ReadOnly = readOnly
	return nil
}

func (d *Document) SetFieldMultiline(i int, multiline bool) error {
	if err := d.call("SetFieldMultiline"); err != nil {
		return err
	}
	d.field(i).Multiline = multiline
	return nil
}

func (d *Document) RegenerateAppearance(i int) error {
	if err := d.call("RegenerateAppearance"); err != nil {
		return err
	}
	d.field(i).Appearances++
	return nil
}

func (d *Document) AddChoiceOption(i int, option string) error {
	if err := d.call("AddChoiceOption"); err != nil {
		return err
	}
	f := d.field(i)
	f.Options = append(f.Options, option)
	return nil
}

func (d *Document) RemoveChoiceOption(i int, option string) error {
	if err := d.call("RemoveChoiceOption"); err != nil {
		return err
	}
	f := d.field(i)
	idx := slices.Index(f.Options, option)
	if idx < 0 {
		return fmt.Errorf("option %q not found", option)
	}
	f.Options = slices.Delete(f.Options, idx, idx+1)
	return nil
}

func (d *Document) KidCount(i int) int { return len(d.field(i).Kids) }

func (d *Document) Kid(i, kid int) engine.KidSpec {
	kids := d.field(i).Kids
	if kid < 0 || kid >= len(kids) {
		return engine.KidSpec{}
	}
	return kids[kid]
}

func (d *Document) AddFields(specs []engine.FieldSpec) error {
	if err := d.call("AddFields"); err != nil {
		return err
	}
	for _, s := range specs {
		if d.FindField(s.Name) >= 0 {
			return fmt.Errorf("field %q already exists", s.Name)
		}
		s.Options = append([]string(nil), s.Options...)
		s.Kids = append([]engine.KidSpec(nil), s.Kids...)
		d.State.Fields = append(d.State.Fields, Field{FieldSpec: s})
	}
	return nil
}

func (d *Document) DeleteFields(names []string) error {
	if err := d.call("DeleteFields"); err != nil {
		return err
	}
	for _, name := range names {
		idx := d.FindField(name)
		if idx < 0 {
			return fmt.Errorf("field %q not found", name)
		}
		d.State.Fields = slices.Delete(d.State.Fields, idx, idx+1)
	}
	return nil
}

func (d *Document) RegisterFont(name string) error {
	if err := d.call("RegisterFont"); err != nil {
		return err
	}
	d.State.Fonts = append(d.State.Fonts, name)
	return nil
}

// ImageSource

func (d *Document) PageImageList(page int) (engine.ImageList, error) {
	if err := d.call("PageImageList"); err != nil {
		return nil, err
	}
	if page < 1 || page > len(d.State.Pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	d.nextListID++
	d.OpenHandles++
	return &imageList{doc: d, id: d.nextListID, images: d.State.Pages[page-1].Images}, nil
}

// RenderPage returns a PNG of the page at the requested resolution
func (d *Document) RenderPage(page int, dpi float64) ([]byte, error) {
	if err := d.call("RenderPage"); err != nil {
		return nil, err
	}
	if page < 1 || page > len(d.State.Pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	p := d.State.Pages[page-1]
	w := max(1, int(p.Width*dpi/72))
	h := max(1, int(p.Height*dpi/72))
	return SolidPNG(w, h, color.White), nil
}

type imageList struct {
	doc      *Document
	id       int
	images   []Image
	released bool
}

func (l *imageList) ID() int                  { return l.id }
func (l *imageList) Count() int               { return len(l.images) }
func (l *imageList) ImageID(i int) int        { return l.images[i].ID }
func (l *imageList) Bounds(i int) engine.Rect { return l.images[i].Bounds }

func (l *imageList) PixelSize(i int) (int, int) {
	return l.images[i].PixelWidth, l.images[i].PixelHeight
}

func (l *imageList) Image(i int) (engine.Image, error) {
	if err := l.doc.call("Image"); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(l.images) {
		return nil, fmt.Errorf("image %d out of range", i)
	}
	l.doc.OpenHandles++
	return &imageHandle{doc: l.doc, data: l.images[i].Data}, nil
}

func (l *imageList) Release() {
	if !l.released {
		l.released = true
		l.doc.OpenHandles--
	}
}

type imageHandle struct {
	doc      *Document
	data     []byte
	released bool
}

func (h *imageHandle) Encoded() ([]byte, error) {
	if err := h.doc.call("Encoded"); err != nil {
		return nil, err
	}
	return h.data, nil
}

func (h *imageHandle) Release() {
	if !h.released {
		h.released = true
		h.doc.OpenHandles--
	}
}

// TextSource

func (d *Document) ExtractTextBlocks(page int) ([]engine.TextBlock, error) {
	if err := d.call("ExtractTextBlocks"); err != nil {
		return nil, err
	}
	if page < 1 || page > len(d.State.Pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	return d.State.Pages[page-1].Blocks, nil
}

// Canvas

func (d *Document) NewPage(width, height float64) error {
	if err := d.call("NewPage"); err != nil {
		return err
	}
	d.State.Pages = append(d.State.Pages, Page{Width: width, Height: height})
	d.page = len(d.State.Pages)
	return nil
}

func (d *Document) SetPageRotation(degrees int) error {
	if err := d.call("SetPageRotation"); err != nil {
		return err
	}
	d.current().Rotation = degrees
	return nil
}

func (d *Document) DrawText(text string, x, y float64, font string, size float64) error {
	if err := d.call("DrawText"); err != nil {
		return err
	}
	p := d.current()
	p.Draws = append(p.Draws, Draw{Op: "text", Text: text, X: x, Y: y, Font: font, Size: size})
	return nil
}

func (d *Document) DrawLine(x1, y1, x2, y2, width float64) error {
	if err := d.call("DrawLine"); err != nil {
		return err
	}
	p := d.current()
	p.Draws = append(p.Draws, Draw{Op: "line", X: x1, Y: y1, Bounds: engine.Rect{Left: x2, Top: y2, Width: width}})
	return nil
}

func (d *Document) DrawImage(data []byte, bounds engine.Rect) error {
	if err := d.call("DrawImage"); err != nil {
		return err
	}
	p := d.current()
	p.Draws = append(p.Draws, Draw{Op: "image", Bounds: bounds, Data: data})
	return nil
}

// Factory hands out fake documents and remembers them. It is safe for
// concurrent use; read Created only after the users are done.
type Factory struct {
	Created []*Document
	// Setup is applied to every new document
	Setup func(*Document)

	mu sync.Mutex
}

// New implements engine.Factory
func (f *Factory) New() engine.Document {
	d := New()
	if f.Setup != nil {
		f.Setup(d)
	}
	f.mu.Lock()
	f.Created = append(f.Created, d)
	f.mu.Unlock()
	return d
}

// Merger joins fake documents page by page
type Merger struct {
	Calls  int
	Inputs []string
	// Err is returned by every call when set
	Err error

	mu sync.Mutex
}

var _ engine.Merger = (*Merger)(nil)

// MergeFiles implements engine.Merger
func (m *Merger) MergeFiles(inFiles []string, outFile string) error {
	m.mu.Lock()
	m.Calls++
	m.Inputs = append(m.Inputs, inFiles...)
	m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	var merged State
	for _, in := range inFiles {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		s, err := Decode(data)
		if err != nil {
			return err
		}
		merged.Pages = append(merged.Pages, s.Pages...)
	}
	return os.WriteFile(outFile, Bytes(merged), 0o600)
}

// SolidPNG encodes a w×h image filled with c
func SolidPNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
