package fields

import (
	"time"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
)

// TextFieldType selects single or multi line rendering of a text field
type TextFieldType string

const (
	TextFieldTypeText      TextFieldType = "text"
	TextFieldTypeMultiline TextFieldType = "multiline"
)

// BaseField holds the attributes shared by every field. X, Y, Width and
// Height are fractions of the page width and height with a top-left origin.
type BaseField struct {
	Page        int     `json:"page"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Mandatory   bool    `json:"mandatory"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// TextField is a single or multi line text input
type TextField struct {
	BaseField
	Value         string        `json:"value"`
	TextFieldType TextFieldType `json:"text_field_type"`
	IsHidden      bool          `json:"is_hidden"`
}

// ChoiceField is a drop-down or list box with an ordered option list
type ChoiceField struct {
	BaseField
	Options        []string `json:"options"`
	SelectedOption string   `json:"selected_option"`
}

// CheckBoxField is a two-state button
type CheckBoxField struct {
	BaseField
	IsChecked bool `json:"is_checked"`
}

// SignatureField is a signature placeholder. Image is populated lazily with a
// data URI once a placed raster has been matched to the field.
type SignatureField struct {
	BaseField
	Image *string `json:"image,omitempty"`
}

// RadioField is one button of a radio group
type RadioField struct {
	BaseField
	Value string `json:"value"`
}

// RadioGroupField is a named set of mutually exclusive buttons. The engine
// stores it as a single field whose kids are the buttons.
type RadioGroupField struct {
	Name              string       `json:"name"`
	SelectedRadioName string       `json:"selected_radio_name"`
	RadioFields       []RadioField `json:"radio_fields"`
}

// PDFFields is the unit of comparison between the stored template layout and
// a submitted layout
type PDFFields struct {
	TextFields       []TextField       `json:"text_fields"`
	ChoiceFields     []ChoiceField     `json:"choice_fields"`
	CheckBoxFields   []CheckBoxField   `json:"check_box_fields"`
	SignatureFields  []SignatureField  `json:"signature_fields"`
	RadioGroupFields []RadioGroupField `json:"radio_group_fields"`
}

// Field is the closed set of field variants. Only the types of this package
// implement it; switch over the concrete pointer types to dispatch.
type Field interface {
	Kind() engine.FieldKind
	FieldName() string
	sealed()
}

func (*TextField) Kind() engine.FieldKind       { return engine.FieldKindText }
func (*ChoiceField) Kind() engine.FieldKind     { return engine.FieldKindChoice }
func (*CheckBoxField) Kind() engine.FieldKind   { return engine.FieldKindCheckBox }
func (*SignatureField) Kind() engine.FieldKind  { return engine.FieldKindSignature }
func (*RadioGroupField) Kind() engine.FieldKind { return engine.FieldKindRadio }

func (f *TextField) FieldName() string       { return f.Name }
func (f *ChoiceField) FieldName() string     { return f.Name }
func (f *CheckBoxField) FieldName() string   { return f.Name }
func (f *SignatureField) FieldName() string  { return f.Name }
func (f *RadioGroupField) FieldName() string { return f.Name }

func (*TextField) sealed()       {}
func (*ChoiceField) sealed()     {}
func (*CheckBoxField) sealed()   {}
func (*SignatureField) sealed()  {}
func (*RadioGroupField) sealed() {}

// Base returns the shared attributes of a simple field. Radio groups have no
// single geometry and report ok=false.
func Base(f Field) (BaseField, bool) {
	switch v := f.(type) {
	case *TextField:
		return v.BaseField, true
	case *ChoiceField:
		return v.BaseField, true
	case *CheckBoxField:
		return v.BaseField, true
	case *SignatureField:
		return v.BaseField, true
	case *RadioGroupField:
		return BaseField{}, false
	default:
		return BaseField{}, false
	}
}

// Simple returns every non-radio field in a stable order: text, choice,
// checkbox, signature. The returned pointers alias the slices of p.
func (p *PDFFields) Simple() []Field {
	out := make([]Field, 0, len(p.TextFields)+len(p.ChoiceFields)+len(p.CheckBoxFields)+len(p.SignatureFields))
	for i := range p.TextFields {
		out = append(out, &p.TextFields[i])
	}
	for i := range p.ChoiceFields {
		out = append(out, &p.ChoiceFields[i])
	}
	for i := range p.CheckBoxFields {
		out = append(out, &p.CheckBoxFields[i])
	}
	for i := range p.SignatureFields {
		out = append(out, &p.SignatureFields[i])
	}
	return out
}

// Count returns the number of simple fields plus the number of radio groups
func (p *PDFFields) Count() int {
	return len(p.TextFields) + len(p.ChoiceFields) + len(p.CheckBoxFields) +
		len(p.SignatureFields) + len(p.RadioGroupFields)
}

// IsMandatory reports whether any button of the group is mandatory
func (g *RadioGroupField) IsMandatory() bool {
	for _, r := range g.RadioFields {
		if r.Mandatory {
			return true
		}
	}
	return false
}

// FieldCoordinate is a field position recovered from a placeholder marker.
// Left, Top, Width and Height are page fractions like BaseField.
type FieldCoordinate struct {
	Text      string  `json:"text"`
	FontName  string  `json:"font_name"`
	TextSize  float64 `json:"text_size"`
	TextColor string  `json:"text_color"`
	Page      int     `json:"page"`
	Left      float64 `json:"left"`
	Top       float64 `json:"top"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// AuditTraceSigner is the provenance of one signer. Zero times mean the event
// did not happen.
type AuditTraceSigner struct {
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	Means               string    `json:"means"`
	DocumentPassword    bool      `json:"document_password"`
	DocumentOTP         bool      `json:"document_otp"`
	DocumentIDP         bool      `json:"document_idp"`
	SignedFromIPAddress string    `json:"signed_from_ip_address"`
	FirstViewIPAddress  string    `json:"first_view_ip_address"`
	DeviceInformation   string    `json:"device_information"`
	TimeLastSent        time.Time `json:"time_last_sent"`
	TimeViewed          time.Time `json:"time_viewed"`
	TimeSigned          time.Time `json:"time_signed"`
}

// DocumentCollectionAuditTrace is the sender side of an audit trail
type DocumentCollectionAuditTrace struct {
	CollectionID      string             `json:"collection_id"`
	CollectionName    string             `json:"collection_name"`
	UserName          string             `json:"user_name"`
	UserEmail         string             `json:"user_email"`
	UserPhone         string             `json:"user_phone"`
	CreationTime      time.Time          `json:"creation_time"`
	CreationIP        string             `json:"creation_ip"`
	AuditTraceSigners []AuditTraceSigner `json:"audit_trace_signers"`
}

// SignatureImagesList is the image inventory of one document, per page
type SignatureImagesList struct {
	DocumentID string                         `json:"document_id"`
	Pages      map[int]*SignatureImagesInPage `json:"pages"`
}

// SignatureImagesInPage is the inventory of one page and its expiry
type SignatureImagesInPage struct {
	Page    int                    `json:"page"`
	Images  []SignatureImageInPage `json:"images"`
	Expires time.Time              `json:"expires"`
}

// SignatureImageInPage is one placed raster normalized to page fractions
type SignatureImageInPage struct {
	ImageListID int     `json:"image_list_id"`
	ImageID     int     `json:"image_id"`
	ImageIndex  int     `json:"image_index"`
	ImageGID    string  `json:"image_gid"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	W           float64 `json:"w"`
	H           float64 `json:"h"`
}
