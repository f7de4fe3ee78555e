package engine

// FieldKind identifies the structural type of an engine field
type FieldKind string

const (
	FieldKindText      FieldKind = "text"
	FieldKindChoice    FieldKind = "choice"
	FieldKindCheckBox  FieldKind = "checkbox"
	FieldKindSignature FieldKind = "signature"
	FieldKindRadio     FieldKind = "radio"
	FieldKindUnknown   FieldKind = "unknown"
)

// Rect is an axis-aligned box in points with a top-left origin
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the right edge of the rectangle
func (r Rect) Right() float64 {
	return r.Left + r.Width
}

// Bottom returns the bottom edge of the rectangle
func (r Rect) Bottom() float64 {
	return r.Top + r.Height
}

// FieldSpec describes a field to create through AddFields
type FieldSpec struct {
	Kind        FieldKind `json:"kind"`
	Name        string    `json:"name"`
	Page        int       `json:"page"`
	Bounds      Rect      `json:"bounds"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
	Value       string    `json:"value,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Checked     bool      `json:"checked,omitempty"`
	Multiline   bool      `json:"multiline,omitempty"`
	Hidden      bool      `json:"hidden,omitempty"`
	Kids        []KidSpec `json:"kids,omitempty"`
}

// KidSpec is one sub-position of a radio group
type KidSpec struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Page        int    `json:"page"`
	Bounds      Rect   `json:"bounds"`
}

// TextBlock is one word-granularity run of text on a page
type TextBlock struct {
	Text     string  `json:"text"`
	Color    string  `json:"color"`
	Font     string  `json:"font"`
	FontSize float64 `json:"font_size"`
	Bounds   Rect    `json:"bounds"`
}
