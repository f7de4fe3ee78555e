package engine

// Document is a single loaded document handle of the rendering/mutation engine.
// A Document is not safe for concurrent use; callers serialize all operations
// against one handle and use one handle per goroutine.
type Document interface {
	Loader
	Pages
	FieldTable
	ImageSource
	TextSource
	Canvas
}

// Factory creates fresh, unloaded document handles
type Factory interface {
	New() Document
}

// Loader moves documents in and out of the engine
type Loader interface {
	LoadFromBytes(data []byte, password string) error
	NewDocument() error
	SaveToBytes() ([]byte, error)
	IsLoaded() bool
}

// Pages exposes page navigation. Dimensions are reported in points for the
// currently selected page.
type Pages interface {
	PageCount() int
	SelectPage(page int) error
	PageWidth() float64
	PageHeight() float64
	PageRotation() int
}

// FieldTable exposes form field introspection and mutation. Indexes are
// positions in the engine field table and are only stable until the next
// AddFields or DeleteFields call.
type FieldTable interface {
	FieldCount() int
	FindField(name string) int

	FieldKind(index int) FieldKind
	FieldTitle(index int) string
	FieldPage(index int) int
	FieldBounds(index int) Rect
	FieldValue(index int) string
	FieldRequired(index int) bool
	FieldDescription(index int) string
	FieldOptions(index int) []string
	FieldChecked(index int) bool
	FieldMultiline(index int) bool
	FieldHidden(index int) bool

	SetFieldBounds(index, page int, bounds Rect) error
	SetFieldValue(index int, value string) error
	SetFieldRequired(index int, required bool) error
	SetFieldDescription(index int, description string) error
	SetFieldChecked(index int, checked bool) error
	SetFieldReadOnly(index int, readOnly bool) error
	SetFieldMultiline(index int, multiline bool) error
	RegenerateAppearance(index int) error

	AddChoiceOption(index int, option string) error
	RemoveChoiceOption(index int, option string) error

	// Radio groups are one field with indexed sub-positions (kids)
	KidCount(index int) int
	Kid(index, kid int) KidSpec

	AddFields(specs []FieldSpec) error
	DeleteFields(names []string) error

	RegisterFont(name string) error
}

// ImageSource lists the raster images placed on a page
type ImageSource interface {
	PageImageList(page int) (ImageList, error)
	RenderPage(page int, dpi float64) ([]byte, error)
}

// ImageList is a native handle over the images of one page. Release must be
// called on every exit path.
type ImageList interface {
	ID() int
	Count() int
	ImageID(index int) int
	Bounds(index int) Rect
	PixelSize(index int) (width, height int)
	Image(index int) (Image, error)
	Release()
}

// Image is a native handle over one placed image
type Image interface {
	// Encoded returns the image in a format decodable by the image package
	Encoded() ([]byte, error)
	Release()
}

// TextSource extracts word-granularity text blocks from a page
type TextSource interface {
	ExtractTextBlocks(page int) ([]TextBlock, error)
}

// Canvas provides the drawing primitives used to compose new pages.
// Coordinates are points with a top-left origin on the selected page.
type Canvas interface {
	NewPage(width, height float64) error
	SetPageRotation(degrees int) error
	DrawText(text string, x, y float64, font string, size float64) error
	DrawLine(x1, y1, x2, y2, width float64) error
	DrawImage(data []byte, bounds Rect) error
}

// Merger is the file-list merge primitive
type Merger interface {
	MergeFiles(inFiles []string, outFile string) error
}
