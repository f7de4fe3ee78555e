package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	FormPlanDescription = `Compute the changes that turn a stored form layout into a submitted one, without touching any document.

**When to use:** Before reconciling a template with an edited layout, to preview which fields move, appear, disappear or change value.

**Input:** Two field layouts as JSON objects with text_fields, choice_fields, check_box_fields, signature_fields and radio_group_fields. Coordinates are fractions of the page size with a top-left origin.

**Examples:**
• Preview an edit: "Which fields of lease-template change if I move the signature box down?"
• Audit a submission: "List every field the submitted layout adds or removes"

**Semantics:**
1. Fields are matched by name; a name whose kind changes is deleted and re-added
2. Geometry is compared with a tolerance of 0.001 of the page size
3. Radio groups are replaced whole when any button differs; a new selection alone is patched

**Best practices:** Pass duplicate_policy "reject" to surface layouts that repeat a field name.`

	FormFieldsEqualDescription = `Check whether two field placements are the same within tolerance.

**When to use:** To decide if a field has really moved after a round trip through an editor that rounds coordinates.

**Input:** Two fields as JSON with page, name, x, y, width, height and optional description.

**Best practices:** Set compare_description when a changed tooltip should count as a change.`

	PlaceholderExtractDescription = `Find color-coded placeholder markers such as {signature} in a PDF and report where they are.

**When to use:** When a template author marked field positions with colored bracket text instead of real form fields.

**Examples:**
• Build fields from markers: "Extract the red {name} placeholders from contract.pdf"
• Custom markers: "Find [[initials]] markers in green"

**Output:** One entry per marker with name, page, font, size and the bounding box as page fractions.

**Best practices:** Markers may span up to three text runs; the comma before the closing bracket is ignored.`

	AuditRowLayoutDescription = `Show how an audit trail paginates for a number of signers or event rows.

**When to use:** To predict the page count of an audit trail before composing it.

**Semantics:** Four signers per page. Row traces hold 32 rows on the first page and 36 on every following page.`

	PDFMergeDescription = `Merge PDF files in order into a new PDF inside the data directory.

**When to use:** Appending an audit trail to a signed document, or joining converted attachments.

**Best practices:** Validate inputs with pdf_validate first; the output file is overwritten.`

	PDFValidateDescription = `Verify that a file is a readable PDF and report its page count.

**When to use:** Before embedding values into an uploaded template or merging user supplied files.

**Best practices:** Relaxed validation accepts common producer quirks; use strict when preparing archival output.`

	PDFServerInfoDescription = `Get server configuration, processing limits and the list of available tools.

**When to use:** First call in a session to learn the data directory and document size limits.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"form_plan":           FormPlanDescription,
	"form_fields_equal":   FormFieldsEqualDescription,
	"placeholder_extract": PlaceholderExtractDescription,
	"audit_row_layout":    AuditRowLayoutDescription,
	"pdf_merge":           PDFMergeDescription,
	"pdf_validate":        PDFValidateDescription,
	"pdf_server_info":     PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the sorted names of all tools
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
