package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/convert"
	"github.com/a3tai/mcp-pdf-forms/internal/descriptions"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/audit"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/pdfcpu"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/placeholder"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/reconcile"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/security"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	paths     *security.PathValidator
	toolkit   *pdfcpu.Toolkit
	strict    *pdfcpu.Toolkit
	settings  pdf.Settings
	limiter   *convert.Limiter
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance confined to the data directory
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	paths, err := security.NewPathValidator(cfg.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	settings, err := cfg.ServiceSettings()
	if err != nil {
		return nil, err
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		paths:     paths,
		toolkit:   pdfcpu.New(),
		strict:    pdfcpu.NewStrict(),
		settings:  settings,
		limiter:   cfg.ConverterLimiter(),
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"form_plan",
		mcp.WithDescription(descriptions.FormPlanDescription),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Current field layout as JSON"),
		),
		mcp.WithString("submitted",
			mcp.Required(),
			mcp.Description("Desired field layout as JSON"),
		),
		mcp.WithString("duplicate_policy",
			mcp.Description("first_wins (default) or reject"),
		),
	), s.handleFormPlan)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_fields_equal",
		mcp.WithDescription(descriptions.FormFieldsEqualDescription),
		mcp.WithString("a", mcp.Required(), mcp.Description("First field as JSON")),
		mcp.WithString("b", mcp.Required(), mcp.Description("Second field as JSON")),
		mcp.WithBoolean("compare_description",
			mcp.Description("Treat a changed description as a difference"),
		),
	), s.handleFormFieldsEqual)

	s.mcpServer.AddTool(mcp.NewTool(
		"placeholder_extract",
		mcp.WithDescription(descriptions.PlaceholderExtractDescription),
		mcp.WithString("path", mcp.Required(), mcp.Description("PDF file inside the data directory")),
		mcp.WithString("open", mcp.Description("Opening marker, default {")),
		mcp.WithString("close", mcp.Description("Closing marker, default }")),
		mcp.WithString("color", mcp.Description("Marker color, default red")),
	), s.handlePlaceholderExtract)

	s.mcpServer.AddTool(mcp.NewTool(
		"audit_row_layout",
		mcp.WithDescription(descriptions.AuditRowLayoutDescription),
		mcp.WithNumber("signers", mcp.Description("Number of signers of a collection trace")),
		mcp.WithNumber("rows", mcp.Description("Number of rows of a row trace")),
	), s.handleAuditRowLayout)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_merge",
		mcp.WithDescription(descriptions.PDFMergeDescription),
		mcp.WithArray("inputs",
			mcp.Required(),
			mcp.Description("PDF files to merge, in order"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("output", mcp.Required(), mcp.Description("Merged PDF to create")),
	), s.handlePDFMerge)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_validate",
		mcp.WithDescription(descriptions.PDFValidateDescription),
		mcp.WithString("path", mcp.Required(), mcp.Description("PDF file inside the data directory")),
		mcp.WithBoolean("strict", mcp.Description("Use strict validation")),
	), s.handlePDFValidate)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.PDFServerInfoDescription),
	), s.handlePDFServerInfo)
}

// Handler functions
func (s *Server) handleFormPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateJSON, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	submittedJSON, err := request.RequireString("submitted")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	policy, err := reconcile.ParseDuplicatePolicy(request.GetString("duplicate_policy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var template, submitted fields.PDFFields
	if err := json.Unmarshal([]byte(templateJSON), &template); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid template layout: %v", err)), nil
	}
	if err := json.Unmarshal([]byte(submittedJSON), &submitted); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid submitted layout: %v", err)), nil
	}

	plan, err := reconcile.BuildPlan(template, submitted, policy)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summarizePlan(plan))
}

func (s *Server) handleFormFieldsEqual(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var a, b fields.BaseField
	for name, dst := range map[string]*fields.BaseField{"a": &a, "b": &b} {
		raw, err := request.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid field %s: %v", name, err)), nil
		}
	}

	equal := fields.AreEqual(a, b, request.GetBool("compare_description", false))
	if equal {
		return mcp.NewToolResultText(fmt.Sprintf("Fields %s and %s are equal within tolerance", a.Name, b.Name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Fields %s and %s differ", a.Name, b.Name)), nil
}

func (s *Server) handlePlaceholderExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.readInput(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	src, err := placeholder.NewLedongthucSource(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var pair *placeholder.Pair
	if open, closing := request.GetString("open", ""), request.GetString("close", ""); open != "" && closing != "" {
		pair = &placeholder.Pair{Open: open, Close: closing}
	}

	coords, err := placeholder.NewExtractor(src, s.logger()).Extract(pair, request.GetString("color", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if coords == nil {
		coords = []fields.FieldCoordinate{}
	}
	return jsonResult(coords)
}

func (s *Server) handleAuditRowLayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	signers := request.GetInt("signers", 0)
	rows := request.GetInt("rows", 0)
	if signers < 0 || rows < 0 {
		return mcp.NewToolResultError("signers and rows cannot be negative"), nil
	}

	layout := auditLayout{}
	for _, page := range audit.PageLayout(signers) {
		layout.SignersPerPage = append(layout.SignersPerPage, len(page))
	}
	for _, page := range audit.RowPages(make([]string, rows)) {
		layout.RowsPerPage = append(layout.RowsPerPage, len(page))
	}
	return jsonResult(layout)
}

func (s *Server) handlePDFMerge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawInputs, ok := request.GetArguments()["inputs"].([]any)
	if !ok || len(rawInputs) == 0 {
		return mcp.NewToolResultError("inputs must be a non-empty array of paths"), nil
	}
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inputs := make([]string, 0, len(rawInputs))
	for _, raw := range rawInputs {
		p, ok := raw.(string)
		if !ok {
			return mcp.NewToolResultError("inputs must be strings"), nil
		}
		abs, err := s.paths.ResolveInput(p)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("security validation failed: %v", err)), nil
		}
		inputs = append(inputs, abs)
	}
	out, err := s.paths.ResolveOutput(output)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("security validation failed: %v", err)), nil
	}

	// Merges share the converter slots
	err = s.limiter.Do(ctx, func(context.Context) error {
		return s.toolkit.MergeFiles(inputs, out)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read merged file: %v", err)), nil
	}
	pages, err := s.toolkit.PageCount(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Merged %d files into %s\nPages: %d\nSize: %d bytes",
		len(inputs), out, pages, len(data))), nil
}

func (s *Server) handlePDFValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.readInput(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tk := s.toolkit
	if request.GetBool("strict", false) {
		tk = s.strict
	}
	if err := tk.Validate(data); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %v", path, err)), nil
	}
	pages, err := tk.PageCount(data)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("PDF file %s is valid and readable\nPages: %d", path, pages)), nil
}

func (s *Server) handlePDFServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// readInput resolves path inside the data directory and reads it within the
// configured size limit
func (s *Server) readInput(path string) ([]byte, error) {
	abs, err := s.paths.ResolveInput(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.Size() > s.config.MaxFileSize {
		return nil, fmt.Errorf("file %s is %d bytes, larger than the limit of %d bytes", path, info.Size(), s.config.MaxFileSize)
	}
	return os.ReadFile(abs)
}

func (s *Server) logger() *log.Logger {
	if s.config.IsDebug() {
		return log.Default()
	}
	return nil
}

// Formatting
type planSummary struct {
	Updates     []string      `json:"updates"`
	Deletes     []string      `json:"deletes"`
	Adds        []string      `json:"adds"`
	ValueChecks []string      `json:"value_checks"`
	Radio       []radioChange `json:"radio"`
}

type radioChange struct {
	Kind     reconcile.RadioOpKind `json:"kind"`
	Group    string                `json:"group"`
	Selected string                `json:"selected,omitempty"`
}

type auditLayout struct {
	SignersPerPage []int `json:"signers_per_page"`
	RowsPerPage    []int `json:"rows_per_page"`
}

func summarizePlan(plan *reconcile.Plan) planSummary {
	out := planSummary{
		Updates:     []string{},
		Deletes:     []string{},
		Adds:        []string{},
		ValueChecks: []string{},
		Radio:       []radioChange{},
	}
	for _, u := range plan.Updates {
		out.Updates = append(out.Updates, describeField(u.Submitted))
	}
	for _, d := range plan.Deletes {
		out.Deletes = append(out.Deletes, describeField(d))
	}
	for _, a := range plan.Adds {
		out.Adds = append(out.Adds, describeField(a))
	}
	for _, v := range plan.ValueChecks {
		out.ValueChecks = append(out.ValueChecks, describeField(v.Submitted))
	}
	for _, op := range plan.Radio {
		out.Radio = append(out.Radio, radioChange{Kind: op.Kind, Group: op.Group.Name, Selected: op.Group.SelectedRadioName})
	}
	return out
}

func describeField(f fields.Field) string {
	return fmt.Sprintf("%s (%s)", f.FieldName(), f.Kind())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) formatServerInfo() string {
	c := s.config
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s - Server Information\n", c.ServerName, c.Version)
	fmt.Fprintf(&b, "Data Directory: %s\n", s.paths.Root())
	fmt.Fprintf(&b, "Max File Size: %d MB\n", c.MaxFileSize/(1024*1024))
	st := s.settings
	fmt.Fprintf(&b, "Reduce Threshold: %d bytes at %g DPI, JPEG quality %d\n", st.ReduceThreshold, st.RasterDPI, st.JPEGQuality)
	fmt.Fprintf(&b, "Signature Image Cache TTL: %s\n", st.CacheTTL)
	fmt.Fprintf(&b, "Workers: %d, Converter Slots: %d\n", st.Workers, s.limiter.Slots())
	if len(st.AuditBackground) > 0 {
		fmt.Fprintf(&b, "Audit Background: %s (%d bytes)\n", c.AuditBackground, len(st.AuditBackground))
	}
	b.WriteString("\nAvailable Tools:\n")
	for _, name := range descriptions.GetAllToolNames() {
		summary, _, _ := strings.Cut(descriptions.GetToolDescription(name), "\n")
		fmt.Fprintf(&b, "• %s: %s\n", name, summary)
	}
	return b.String()
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF forms MCP server in stdio mode")
		log.Printf("Data directory: %s", s.paths.Root())
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the tools over SSE until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting PDF forms MCP server on %s", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
		if err := sse.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("failed to shut down SSE server: %w", err)
		}
		return nil
	}
}
