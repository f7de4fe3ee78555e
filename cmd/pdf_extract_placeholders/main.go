package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/placeholder"
)

// ExtractionResult is the outcome of scanning one PDF for placeholders
type ExtractionResult struct {
	FilePath       string                   `json:"file_path"`
	Success        bool                     `json:"success"`
	PageCount      int                      `json:"page_count"`
	Placeholders   []fields.FieldCoordinate `json:"placeholders"`
	Error          string                   `json:"error,omitempty"`
	ExtractionTime string                   `json:"extraction_time,omitempty"`
}

type options struct {
	open, close, color string
	format             string
	verbose            bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdf_extract_placeholders", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.open, "open", placeholder.DefaultPair.Open, "Opening marker")
	fs.StringVar(&opts.close, "close", placeholder.DefaultPair.Close, "Closing marker")
	fs.StringVar(&opts.color, "color", placeholder.DefaultColor, "Marker text color")
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose output")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "Error: PDF file path required\n\n")
		printUsage(stderr)
		return 1
	}
	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", opts.format)
		return 1
	}

	result := extract(fs.Arg(0), opts, stderr)
	if opts.format == "json" {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
			return 1
		}
	} else {
		outputText(stdout, result)
	}
	if !result.Success {
		return 1
	}
	return 0
}

func extract(path string, opts options, stderr io.Writer) *ExtractionResult {
	start := time.Now()
	result := &ExtractionResult{FilePath: path, Placeholders: []fields.FieldCoordinate{}}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	src, err := placeholder.NewLedongthucSource(data)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.PageCount = src.PageCount()

	var logger *log.Logger
	if opts.verbose {
		logger = log.New(stderr, "[DEBUG] ", 0)
	}
	coords, err := placeholder.NewExtractor(src, logger).
		Extract(&placeholder.Pair{Open: opts.open, Close: opts.close}, opts.color)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if coords != nil {
		result.Placeholders = coords
	}
	result.Success = true
	result.ExtractionTime = time.Since(start).String()
	return result
}

func outputText(w io.Writer, result *ExtractionResult) {
	if !result.Success {
		fmt.Fprintf(w, "Placeholder extraction failed: %s\n", result.Error)
		return
	}
	fmt.Fprintf(w, "Found %d placeholders in %s (%d pages)\n", len(result.Placeholders), result.FilePath, result.PageCount)
	for i, c := range result.Placeholders {
		fmt.Fprintf(w, "[%d] %s\n", i+1, c.Text)
		fmt.Fprintf(w, "    Page: %d\n", c.Page)
		fmt.Fprintf(w, "    Font: %s %.1f\n", c.FontName, c.TextSize)
		fmt.Fprintf(w, "    Box: left %.4f top %.4f width %.4f height %.4f\n", c.Left, c.Top, c.Width, c.Height)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_extract_placeholders [OPTIONS] <pdf_file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -open      Opening marker (default {)")
	fmt.Fprintln(w, "  -close     Closing marker (default })")
	fmt.Fprintln(w, "  -color     Marker text color (default red)")
	fmt.Fprintln(w, "  -format    Output format: text (default), json")
	fmt.Fprintln(w, "  -verbose   Log skipped pages to stderr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdf_extract_placeholders contract.pdf")
	fmt.Fprintln(w, "  pdf_extract_placeholders -open '[[' -close ']]' -color green -format json lease.pdf")
}
