package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/pdftest"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDirectory = dir
	cfg.Version = "1.0.0"
	cfg.MaxFileSize = 1024 * 1024

	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s, dir
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func writePDF(t *testing.T, dir, name string, pages int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pdftest.Build(pdftest.Letter(pages)), 0o644))
	return path
}

func TestNewServer(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		s, err := NewServer(nil)
		assert.Error(t, err)
		assert.Nil(t, s)
	})

	t.Run("unreadable audit background", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDirectory = t.TempDir()
		cfg.AuditBackground = filepath.Join(cfg.DataDirectory, "missing.pdf")
		s, err := NewServer(cfg)
		assert.ErrorContains(t, err, "audit background")
		assert.Nil(t, s)
	})

	t.Run("processing settings from config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDirectory = t.TempDir()
		cfg.AuditBackground = writePDF(t, cfg.DataDirectory, "background.pdf", 1)
		cfg.ConverterSlots = 3
		cfg.Workers = 6
		s, err := NewServer(cfg)
		require.NoError(t, err)
		assert.Equal(t, 3, s.limiter.Slots())
		assert.Equal(t, 6, s.settings.Workers)
		assert.NotEmpty(t, s.settings.AuditBackground)
		assert.Contains(t, s.formatServerInfo(), "Audit Background: "+cfg.AuditBackground)
	})

	t.Run("valid config", func(t *testing.T) {
		s, dir := newTestServer(t)
		assert.NotNil(t, s.mcpServer)
		assert.NotNil(t, s.toolkit)
		assert.NotNil(t, s.strict)

		root, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		got, err := filepath.EvalSymlinks(s.paths.Root())
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})
}

const templateLayout = `{
  "text_fields": [
    {"page": 1, "name": "name", "x": 0.1, "y": 0.1, "width": 0.3, "height": 0.05, "value": "Ada"},
    {"page": 1, "name": "city", "x": 0.1, "y": 0.2, "width": 0.3, "height": 0.05}
  ],
  "signature_fields": [
    {"page": 2, "name": "sig", "x": 0.5, "y": 0.8, "width": 0.2, "height": 0.05}
  ]
}`

const submittedLayout = `{
  "text_fields": [
    {"page": 1, "name": "name", "x": 0.1, "y": 0.1, "width": 0.3, "height": 0.05, "value": "Grace"},
    {"page": 1, "name": "city", "x": 0.1, "y": 0.4, "width": 0.3, "height": 0.05}
  ],
  "check_box_fields": [
    {"page": 1, "name": "agree", "x": 0.1, "y": 0.9, "width": 0.02, "height": 0.02}
  ]
}`

func TestHandleFormPlan(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("summarizes changes", func(t *testing.T) {
		result, err := s.handleFormPlan(context.Background(), call(map[string]interface{}{
			"template":  templateLayout,
			"submitted": submittedLayout,
		}))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))

		var summary planSummary
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summary))
		assert.Equal(t, []string{"city (text)"}, summary.Updates)
		assert.Equal(t, []string{"sig (signature)"}, summary.Deletes)
		assert.Equal(t, []string{"agree (checkbox)"}, summary.Adds)
		assert.Equal(t, []string{"name (text)"}, summary.ValueChecks)
		assert.Empty(t, summary.Radio)
	})

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing template",
			args: map[string]interface{}{"submitted": submittedLayout},
			want: "template",
		},
		{
			name: "invalid submitted json",
			args: map[string]interface{}{"template": templateLayout, "submitted": "{"},
			want: "invalid submitted layout",
		},
		{
			name: "unknown policy",
			args: map[string]interface{}{
				"template":         templateLayout,
				"submitted":        submittedLayout,
				"duplicate_policy": "last_wins",
			},
			want: "last_wins",
		},
		{
			name: "rejected duplicates",
			args: map[string]interface{}{
				"template":         templateLayout,
				"submitted":        `{"text_fields": [{"page": 1, "name": "a"}, {"page": 2, "name": "a"}]}`,
				"duplicate_policy": "reject",
			},
			want: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleFormPlan(context.Background(), call(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleFormFieldsEqual(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "within tolerance",
			args: map[string]interface{}{
				"a": `{"page": 1, "name": "f", "x": 0.1, "y": 0.2, "width": 0.3, "height": 0.04}`,
				"b": `{"page": 1, "name": "f", "x": 0.1005, "y": 0.2, "width": 0.3, "height": 0.04}`,
			},
			want: "equal within tolerance",
		},
		{
			name: "moved",
			args: map[string]interface{}{
				"a": `{"page": 1, "name": "f", "x": 0.1, "y": 0.2, "width": 0.3, "height": 0.04}`,
				"b": `{"page": 1, "name": "f", "x": 0.102, "y": 0.2, "width": 0.3, "height": 0.04}`,
			},
			want: "differ",
		},
		{
			name: "description ignored",
			args: map[string]interface{}{
				"a": `{"page": 1, "name": "f", "description": "old"}`,
				"b": `{"page": 1, "name": "f", "description": "new"}`,
			},
			want: "equal within tolerance",
		},
		{
			name: "description compared",
			args: map[string]interface{}{
				"a":                   `{"page": 1, "name": "f", "description": "old"}`,
				"b":                   `{"page": 1, "name": "f", "description": "new"}`,
				"compare_description": true,
			},
			want: "differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleFormFieldsEqual(context.Background(), call(tt.args))
			require.NoError(t, err)
			assert.False(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}

	t.Run("invalid field", func(t *testing.T) {
		result, err := s.handleFormFieldsEqual(context.Background(), call(map[string]interface{}{
			"a": "not json",
			"b": `{"name": "f"}`,
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandlePlaceholderExtract(t *testing.T) {
	s, dir := newTestServer(t)
	writePDF(t, dir, "blank.pdf", 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.pdf"), []byte("not a pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "huge.pdf"), make([]byte, 2*1024*1024), 0o644))

	t.Run("no markers", func(t *testing.T) {
		result, err := s.handlePlaceholderExtract(context.Background(), call(map[string]interface{}{
			"path": "blank.pdf",
		}))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))
		assert.JSONEq(t, "[]", resultText(t, result))
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "outside data directory", path: "../etc/passwd", want: "security validation failed"},
		{name: "missing file", path: "missing.pdf", want: "security validation failed"},
		{name: "too large", path: "huge.pdf", want: "larger than the limit"},
		{name: "not a pdf", path: "garbage.pdf", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handlePlaceholderExtract(context.Background(), call(map[string]interface{}{
				"path": tt.path,
			}))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleAuditRowLayout(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name        string
		signers     int
		rows        int
		wantSigners []int
		wantRows    []int
	}{
		{name: "one signer", signers: 1, wantSigners: []int{1}},
		{name: "five signers", signers: 5, wantSigners: []int{4, 1}},
		{name: "first page of rows", rows: 32, wantRows: []int{32}},
		{name: "rows overflow", rows: 33, wantRows: []int{32, 1}},
		{name: "three row pages", rows: 32 + 36 + 5, wantRows: []int{32, 36, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleAuditRowLayout(context.Background(), call(map[string]interface{}{
				"signers": float64(tt.signers),
				"rows":    float64(tt.rows),
			}))
			require.NoError(t, err)
			require.False(t, result.IsError, resultText(t, result))

			var layout auditLayout
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &layout))
			if tt.wantSigners != nil {
				assert.Equal(t, tt.wantSigners, layout.SignersPerPage)
			}
			if tt.wantRows != nil {
				assert.Equal(t, tt.wantRows, layout.RowsPerPage)
			}
		})
	}

	t.Run("negative", func(t *testing.T) {
		result, err := s.handleAuditRowLayout(context.Background(), call(map[string]interface{}{
			"rows": float64(-1),
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandlePDFMerge(t *testing.T) {
	s, dir := newTestServer(t)
	writePDF(t, dir, "contract.pdf", 2)
	writePDF(t, dir, "audit.pdf", 1)

	t.Run("merges in order", func(t *testing.T) {
		result, err := s.handlePDFMerge(context.Background(), call(map[string]interface{}{
			"inputs": []any{"contract.pdf", "audit.pdf"},
			"output": "signed.pdf",
		}))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))
		assert.Contains(t, resultText(t, result), "Merged 2 files")
		assert.Contains(t, resultText(t, result), "Pages: 3")
		assert.FileExists(t, filepath.Join(dir, "signed.pdf"))
	})

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "no inputs",
			args: map[string]interface{}{"inputs": []any{}, "output": "out.pdf"},
			want: "non-empty array",
		},
		{
			name: "non string input",
			args: map[string]interface{}{"inputs": []any{1.0}, "output": "out.pdf"},
			want: "must be strings",
		},
		{
			name: "missing output",
			args: map[string]interface{}{"inputs": []any{"audit.pdf"}},
			want: "output",
		},
		{
			name: "input outside data directory",
			args: map[string]interface{}{"inputs": []any{"../../etc/hosts"}, "output": "out.pdf"},
			want: "security validation failed",
		},
		{
			name: "output outside data directory",
			args: map[string]interface{}{"inputs": []any{"audit.pdf"}, "output": "../out.pdf"},
			want: "security validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handlePDFMerge(context.Background(), call(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandlePDFValidate(t *testing.T) {
	s, dir := newTestServer(t)
	writePDF(t, dir, "three.pdf", 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.pdf"), []byte("%PDF-1.4 broken"), 0o644))

	tests := []struct {
		name    string
		args    map[string]interface{}
		isError bool
		want    string
	}{
		{
			name: "valid relaxed",
			args: map[string]interface{}{"path": "three.pdf"},
			want: "Pages: 3",
		},
		{
			name: "valid strict",
			args: map[string]interface{}{"path": "three.pdf", "strict": true},
			want: "three.pdf",
		},
		{
			name: "corrupt",
			args: map[string]interface{}{"path": "garbage.pdf"},
			want: "validation failed",
		},
		{
			name:    "missing path",
			args:    map[string]interface{}{},
			isError: true,
			want:    "path",
		},
		{
			name:    "traversal",
			args:    map[string]interface{}{"path": "../three.pdf"},
			isError: true,
			want:    "security validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handlePDFValidate(context.Background(), call(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandlePDFServerInfo(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handlePDFServerInfo(context.Background(), call(nil))
	require.NoError(t, err)
	text := resultText(t, result)

	assert.True(t, strings.HasPrefix(text, "mcp-pdf-forms v1.0.0"))
	assert.Contains(t, text, "Max File Size: 1 MB")
	for _, name := range []string{"form_plan", "form_fields_equal", "placeholder_extract",
		"audit_row_layout", "pdf_merge", "pdf_validate", "pdf_server_info"} {
		assert.Contains(t, text, "• "+name+":")
	}
}
