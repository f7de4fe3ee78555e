// Package audit composes the audit trail documents of a signing transaction.
package audit

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/embed"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

// Mode selects which contact channels are printed for sender and signers
type Mode int

const (
	ModeEmail Mode = iota
	ModeSMS
	ModeBoth
)

// ParseMode maps "email", "sms" and "both" to a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "email":
		return ModeEmail, nil
	case "sms":
		return ModeSMS, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeEmail, fmt.Errorf("unknown audit mode %q", s)
	}
}

// Page geometry in points, top-left origin
const (
	pageWidth      = 612.0
	pageHeight     = 792.0
	marginLeft     = 54.0
	titleTop       = 60.0
	senderTop      = 100.0
	signerTop      = 210.0
	signerBlock    = 140.0
	lineHeight     = 14.0
	rowLineHeight  = 19.0
	rowsTop        = 110.0
	followUpTop    = 54.0
	titleFontSize  = 18.0
	bodyFontSize   = 9.0
	labelFontSize  = 10.0
	timeLayout     = "2006-01-02 15:04:05 MST"
	notHappened    = "-"
	rowTraceTitle  = "Audit Trail"
	traceTitle     = "Document Audit Trail"
	dividerWidth   = 0.75
	blockRuleWidth = 0.5
)

// Composer draws audit trail pages through fresh engine documents
type Composer struct {
	factory    engine.Factory
	merger     engine.Merger
	background []byte
	fonts      []string
	tempDir    string
	logger     *log.Logger
}

// Option configures a Composer
type Option func(*Composer)

// WithBackground sets the template every collection trace page starts from
func WithBackground(data []byte) Option {
	return func(c *Composer) { c.background = data }
}

// WithFonts overrides the fonts registered on every page
func WithFonts(fonts []string) Option {
	return func(c *Composer) { c.fonts = fonts }
}

// WithTempDir sets the parent directory of merge scratch directories
func WithTempDir(dir string) Option {
	return func(c *Composer) { c.tempDir = dir }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

// NewComposer creates a composer. merger joins the pages of multi-page traces.
func NewComposer(factory engine.Factory, merger engine.Merger, opts ...Option) *Composer {
	c := &Composer{
		factory: factory,
		merger:  merger,
		fonts:   append([]string(nil), embed.DefaultFallbackFonts...),
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComposeCollectionTrace draws the sender block and one block per signer, four
// signers per page, and returns the merged document
func (c *Composer) ComposeCollectionTrace(trace fields.DocumentCollectionAuditTrace, mode Mode) ([]byte, error) {
	layout := PageLayout(len(trace.AuditTraceSigners))
	pages := make([][]byte, 0, len(layout))

	for p, indexes := range layout {
		doc, err := c.startPage()
		if err != nil {
			return nil, err
		}
		if p == 0 {
			if err := drawSender(doc, c.font(), trace, mode); err != nil {
				return nil, err
			}
		}

		cursor := signerTop
		for _, i := range indexes {
			if err := drawSigner(doc, c.font(), i+1, trace.AuditTraceSigners[i], mode, cursor); err != nil {
				return nil, err
			}
			cursor += signerBlock
		}

		data, err := doc.SaveToBytes()
		if err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to save audit page", err).WithPage(p + 1)
		}
		pages = append(pages, data)
	}

	c.logger.Printf("audit: composed %d pages for %d signers", len(pages), len(trace.AuditTraceSigners))
	if len(pages) == 1 {
		return pages[0], nil
	}
	return c.mergePages(pages)
}

// ComposeRowTrace draws rows onto a styled first page followed by plain pages
func (c *Composer) ComposeRowTrace(rows []string) ([]byte, error) {
	doc := c.factory.New()
	if err := doc.NewDocument(); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to create document", err)
	}

	for p, pageRows := range RowPages(rows) {
		if err := doc.NewPage(pageWidth, pageHeight); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to add page", err).WithPage(p + 1)
		}
		c.registerFonts(doc)

		top := followUpTop
		if p == 0 {
			if err := doc.DrawText(rowTraceTitle, marginLeft, titleTop, c.font(), titleFontSize); err != nil {
				return nil, err
			}
			if err := doc.DrawLine(marginLeft, titleTop+28, pageWidth-marginLeft, titleTop+28, dividerWidth); err != nil {
				return nil, err
			}
			top = rowsTop
		}
		for i, row := range pageRows {
			if err := doc.DrawText(row, marginLeft, top+float64(i)*rowLineHeight, c.font(), bodyFontSize); err != nil {
				return nil, err
			}
		}
	}

	data, err := doc.SaveToBytes()
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to save row trace", err)
	}
	return data, nil
}

// startPage opens a fresh document from the background template, or a blank
// page without one, and registers the fonts
func (c *Composer) startPage() (engine.Document, error) {
	doc := c.factory.New()
	if len(c.background) > 0 {
		if err := doc.LoadFromBytes(c.background, ""); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to load audit background", err)
		}
		if err := doc.SelectPage(1); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "audit background has no page", err)
		}
	} else {
		if err := doc.NewDocument(); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to create document", err)
		}
		if err := doc.NewPage(pageWidth, pageHeight); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to add page", err)
		}
	}
	c.registerFonts(doc)
	return doc, nil
}

func (c *Composer) registerFonts(doc engine.Document) {
	for _, f := range c.fonts {
		if err := doc.RegisterFont(f); err != nil {
			c.logger.Printf("audit: skipping font %s: %v", f, err)
		}
	}
}

func (c *Composer) font() string {
	if len(c.fonts) == 0 {
		return embed.DefaultFallbackFonts[0]
	}
	return c.fonts[0]
}

// mergePages writes every page to a scratch directory, merges the files and
// reads back the result. The directory is removed on every path.
func (c *Composer) mergePages(pages [][]byte) (out []byte, err error) {
	dir, err := os.MkdirTemp(c.tempDir, "audit-trail-")
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to create merge directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			err = multierr.Append(err, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to remove merge directory", rmErr))
		}
	}()

	paths := make([]string, 0, len(pages))
	for i, page := range pages {
		path := filepath.Join(dir, fmt.Sprintf("%03d-%s.pdf", i, uuid.NewString()))
		if err := os.WriteFile(path, page, 0o600); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to write audit page", err).WithPage(i + 1)
		}
		paths = append(paths, path)
	}

	merged := filepath.Join(dir, uuid.NewString()+".pdf")
	if err := c.merger.MergeFiles(paths, merged); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to merge audit pages", err)
	}

	out, err = os.ReadFile(merged)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to read merged audit trail", err)
	}
	return out, nil
}

func drawSender(doc engine.Canvas, font string, trace fields.DocumentCollectionAuditTrace, mode Mode) error {
	lines := []string{
		fmt.Sprintf("Document: %s (%s)", trace.CollectionName, trace.CollectionID),
		"Sender: " + trace.UserName,
		contactLine(trace.UserEmail, trace.UserPhone, mode),
		fmt.Sprintf("Created: %s from %s", formatTime(trace.CreationTime), orDash(trace.CreationIP)),
	}
	if err := doc.DrawText(traceTitle, marginLeft, titleTop, font, titleFontSize); err != nil {
		return err
	}
	return drawLines(doc, font, lines, senderTop)
}

func drawSigner(doc engine.Canvas, font string, n int, s fields.AuditTraceSigner, mode Mode, top float64) error {
	if err := doc.DrawLine(marginLeft, top-6, pageWidth-marginLeft, top-6, blockRuleWidth); err != nil {
		return err
	}
	if err := doc.DrawText(fmt.Sprintf("Signer %d: %s", n, s.Name), marginLeft, top+4, font, labelFontSize); err != nil {
		return err
	}
	lines := []string{
		contactLine(s.Email, s.Phone, mode),
		fmt.Sprintf("Delivered by: %s  Security: %s", orDash(s.Means), security(s)),
		"Device: " + orDash(s.DeviceInformation),
		fmt.Sprintf("First viewed from: %s  Signed from: %s", orDash(s.FirstViewIPAddress), orDash(s.SignedFromIPAddress)),
		"Last sent: " + formatTime(s.TimeLastSent),
		"Viewed: " + formatTime(s.TimeViewed),
		"Signed: " + formatTime(s.TimeSigned),
	}
	return drawLines(doc, font, lines, top+4+lineHeight*1.5)
}

func drawLines(doc engine.Canvas, font string, lines []string, top float64) error {
	for i, line := range lines {
		if err := doc.DrawText(line, marginLeft, top+float64(i)*lineHeight, font, bodyFontSize); err != nil {
			return err
		}
	}
	return nil
}

func contactLine(email, phone string, mode Mode) string {
	switch mode {
	case ModeSMS:
		return "Phone: " + orDash(phone)
	case ModeBoth:
		return fmt.Sprintf("Email: %s  Phone: %s", orDash(email), orDash(phone))
	default:
		return "Email: " + orDash(email)
	}
}

func security(s fields.AuditTraceSigner) string {
	var out []string
	if s.DocumentPassword {
		out = append(out, "password")
	}
	if s.DocumentOTP {
		out = append(out, "one-time code")
	}
	if s.DocumentIDP {
		out = append(out, "identity provider")
	}
	if len(out) == 0 {
		return "none"
	}
	return strings.Join(out, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return notHappened
	}
	return t.UTC().Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return notHappened
	}
	return s
}
