// Package pdfcpu adapts the pdfcpu API to the byte and file operations the
// form engine needs: merging page files, validation and page counting.
package pdfcpu

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
)

// Toolkit runs pdfcpu operations with relaxed validation. A fresh
// configuration is built per call since pdfcpu records the command on it.
type Toolkit struct {
	strict bool
}

var _ engine.Merger = (*Toolkit)(nil)

// New returns a toolkit using relaxed validation
func New() *Toolkit {
	return &Toolkit{}
}

// NewStrict returns a toolkit using strict validation
func NewStrict() *Toolkit {
	return &Toolkit{strict: true}
}

func (t *Toolkit) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if t.strict {
		conf.ValidationMode = model.ValidationStrict
	}
	return conf
}

// MergeFiles merges inFiles in order into a new outFile
func (t *Toolkit) MergeFiles(inFiles []string, outFile string) error {
	if len(inFiles) == 0 {
		return fmt.Errorf("no files to merge")
	}
	if err := api.MergeCreateFile(inFiles, outFile, false, t.config()); err != nil {
		return fmt.Errorf("failed to merge %d files: %w", len(inFiles), err)
	}
	return nil
}

// Validate checks that data is a readable PDF
func (t *Toolkit) Validate(data []byte) error {
	if err := api.Validate(bytes.NewReader(data), t.config()); err != nil {
		return fmt.Errorf("invalid PDF: %w", err)
	}
	return nil
}

// ValidateFile checks the PDF at path
func (t *Toolkit) ValidateFile(path string) error {
	if err := api.ValidateFile(path, t.config()); err != nil {
		return fmt.Errorf("invalid PDF %s: %w", path, err)
	}
	return nil
}

// PageCount returns the number of pages of data
func (t *Toolkit) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), t.config())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
