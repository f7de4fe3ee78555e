package embed

import (
	"io"
	"log"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

// Default font substitution chain
var (
	DefaultFallbackFonts = []string{"Helvetica", "DejaVuSans", "LiberationSans"}
	DefaultCJKFont       = "NotoSansCJK"
)

// Fonts configures the substitution chain registered before values are written
type Fonts struct {
	Fallback []string
	// CJK is registered only when a text value contains CJK ideographs
	CJK string
}

// DefaultFonts returns the default substitution chain
func DefaultFonts() Fonts {
	return Fonts{
		Fallback: append([]string(nil), DefaultFallbackFonts...),
		CJK:      DefaultCJKFont,
	}
}

// Document is the engine surface the embedder writes through
type Document interface {
	engine.Loader
	engine.FieldTable
}

// Embedder flattens text and choice values into a document
type Embedder struct {
	doc      Document
	fonts    Fonts
	password string
	logger   *log.Logger
}

// Option configures an Embedder
type Option func(*Embedder)

// WithFonts overrides the font substitution chain
func WithFonts(f Fonts) Option {
	return func(e *Embedder) { e.fonts = f }
}

// WithPassword sets the password used to load documents
func WithPassword(password string) Option {
	return func(e *Embedder) { e.password = password }
}

// WithLogger sets the logger for skipped fields and fonts
func WithLogger(logger *log.Logger) Option {
	return func(e *Embedder) { e.logger = logger }
}

// NewEmbedder creates an embedder writing through doc
func NewEmbedder(doc Document, opts ...Option) *Embedder {
	e := &Embedder{
		doc:    doc,
		fonts:  DefaultFonts(),
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed writes text and choice values into data and returns the new bytes.
// Individual field and font failures are logged and skipped. When readOnly
// is set the fields are locked and their appearance regenerated.
func (e *Embedder) Embed(textFields []fields.TextField, choiceFields []fields.ChoiceField, data []byte, readOnly bool) ([]byte, error) {
	if err := e.load(data); err != nil {
		return nil, err
	}

	// Some engine states expose an empty field table until the document is
	// loaded a second time
	if e.doc.FieldCount() == 0 && len(textFields)+len(choiceFields) > 0 {
		e.logger.Printf("embed: field table empty, reloading document once")
		if err := e.load(data); err != nil {
			return nil, err
		}
	}

	// A reload discards registered fonts
	e.registerFonts(textFields)

	for _, tf := range textFields {
		if err := e.embedText(tf, readOnly); err != nil {
			e.logger.Printf("embed: skipping text field %s: %v", tf.Name, err)
		}
	}
	for _, cf := range choiceFields {
		if err := e.embedChoice(cf, readOnly); err != nil {
			e.logger.Printf("embed: skipping choice field %s: %v", cf.Name, err)
		}
	}

	out, err := e.doc.SaveToBytes()
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to save embedded document", err)
	}
	return out, nil
}

// load loads data, retrying once if the engine rejects the stream
func (e *Embedder) load(data []byte) error {
	err := e.doc.LoadFromBytes(data, e.password)
	if err == nil {
		return nil
	}
	e.logger.Printf("embed: engine rejected document, retrying: %v", err)
	if err := e.doc.LoadFromBytes(data, e.password); err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "engine rejected document", err)
	}
	return nil
}

func (e *Embedder) registerFonts(textFields []fields.TextField) {
	for _, name := range e.fonts.Fallback {
		if err := e.doc.RegisterFont(name); err != nil {
			e.logger.Printf("embed: skipping fallback font %s: %v", name, err)
		}
	}
	if e.fonts.CJK == "" || !anyCJK(textFields) {
		return
	}
	if err := e.doc.RegisterFont(e.fonts.CJK); err != nil {
		e.logger.Printf("embed: skipping CJK font %s: %v", e.fonts.CJK, err)
	}
}

func (e *Embedder) embedText(tf fields.TextField, readOnly bool) error {
	idx := e.doc.FindField(tf.Name)
	if idx < 0 {
		return pdferrors.ErrFieldNotFound.WithField(tf.Name)
	}
	if err := e.doc.SetFieldValue(idx, NormalizeValue(tf.Value)); err != nil {
		return err
	}
	if !readOnly {
		return nil
	}
	if err := e.doc.SetFieldReadOnly(idx, true); err != nil {
		return err
	}
	return e.doc.SetFieldMultiline(idx, true)
}

func (e *Embedder) embedChoice(cf fields.ChoiceField, readOnly bool) error {
	idx := e.doc.FindField(cf.Name)
	if idx < 0 {
		return pdferrors.ErrFieldNotFound.WithField(cf.Name)
	}
	selected := NormalizeValue(cf.SelectedOption)
	if e.doc.FieldValue(idx) != selected {
		if err := e.doc.SetFieldValue(idx, selected); err != nil {
			return err
		}
	}
	if !readOnly {
		return nil
	}
	if err := e.doc.SetFieldReadOnly(idx, true); err != nil {
		return err
	}
	return e.doc.RegenerateAppearance(idx)
}

// NormalizeValue unescapes &amp; and returns the NFC form of v
func NormalizeValue(v string) string {
	return norm.NFC.String(strings.ReplaceAll(v, "&amp;", "&"))
}

func anyCJK(textFields []fields.TextField) bool {
	for _, tf := range textFields {
		if ContainsCJK(tf.Value) {
			return true
		}
	}
	return false
}

// ContainsCJK reports whether s has a rune in the CJK Unified Ideographs block
func ContainsCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}
