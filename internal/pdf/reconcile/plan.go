package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

// DuplicatePolicy decides what happens when a layout repeats a field name
type DuplicatePolicy int

const (
	// FirstWins keeps the first field of a name and ignores later ones
	FirstWins DuplicatePolicy = iota
	// RejectDuplicates fails the plan with ErrDuplicateField
	RejectDuplicates
)

// ParseDuplicatePolicy maps "first_wins" and "reject" to a policy. An empty
// string selects FirstWins.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_wins":
		return FirstWins, nil
	case "reject":
		return RejectDuplicates, nil
	default:
		return FirstWins, fmt.Errorf("unknown duplicate policy %q", s)
	}
}

func (p DuplicatePolicy) String() string {
	if p == RejectDuplicates {
		return "reject"
	}
	return "first_wins"
}

// kindOrder is the order in which grouped engine calls are issued
var kindOrder = []engine.FieldKind{
	engine.FieldKindText,
	engine.FieldKindChoice,
	engine.FieldKindCheckBox,
	engine.FieldKindSignature,
}

// FieldPair is a template field and the submitted field of the same name
type FieldPair struct {
	Template  fields.Field `json:"template"`
	Submitted fields.Field `json:"submitted"`
}

// Plan is the set of changes converging a template layout to a submitted one
type Plan struct {
	// Updates differ in geometry, description or mandatory flag and are
	// patched in place
	Updates []FieldPair    `json:"updates"`
	Deletes []fields.Field `json:"deletes"`
	Adds    []fields.Field `json:"adds"`
	// ValueChecks have equal geometry; only their content may differ
	ValueChecks []FieldPair `json:"value_checks"`
	Radio       []RadioOp   `json:"radio"`
}

// IsStructural reports whether the plan adds, deletes or moves anything
func (p *Plan) IsStructural() bool {
	if len(p.Updates)+len(p.Deletes)+len(p.Adds) > 0 {
		return true
	}
	for _, op := range p.Radio {
		if op.Kind != RadioSelect {
			return true
		}
	}
	return false
}

// DeletesByKind groups deleted field names per kind in kindOrder
func (p *Plan) DeletesByKind() map[engine.FieldKind][]string {
	out := make(map[engine.FieldKind][]string)
	for _, f := range p.Deletes {
		out[f.Kind()] = append(out[f.Kind()], f.FieldName())
	}
	return out
}

// AddsByKind groups added fields per kind
func (p *Plan) AddsByKind() map[engine.FieldKind][]fields.Field {
	out := make(map[engine.FieldKind][]fields.Field)
	for _, f := range p.Adds {
		out[f.Kind()] = append(out[f.Kind()], f)
	}
	return out
}

// BuildPlan diffs the simple fields by name and the radio groups by group name
func BuildPlan(template, submitted fields.PDFFields, policy DuplicatePolicy) (*Plan, error) {
	templateFields := template.Simple()
	submittedFields := submitted.Simple()

	templateByName, err := indexByName(templateFields, policy)
	if err != nil {
		return nil, err
	}
	submittedByName, err := indexByName(submittedFields, policy)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}

	for _, f := range uniqueInOrder(templateFields) {
		if _, ok := submittedByName[f.FieldName()]; !ok {
			plan.Deletes = append(plan.Deletes, f)
		}
	}

	for _, s := range uniqueInOrder(submittedFields) {
		t, ok := templateByName[s.FieldName()]
		if !ok {
			plan.Adds = append(plan.Adds, s)
			continue
		}
		// A name that changed kind cannot be patched in place
		if t.Kind() != s.Kind() {
			plan.Deletes = append(plan.Deletes, t)
			plan.Adds = append(plan.Adds, s)
			continue
		}
		tb, _ := fields.Base(t)
		sb, _ := fields.Base(s)
		pair := FieldPair{Template: t, Submitted: s}
		if fields.AreEqual(tb, sb, true) {
			plan.ValueChecks = append(plan.ValueChecks, pair)
		} else {
			plan.Updates = append(plan.Updates, pair)
		}
	}

	radio, err := PlanRadioGroups(template.RadioGroupFields, submitted.RadioGroupFields, policy)
	if err != nil {
		return nil, err
	}
	plan.Radio = radio

	return plan, nil
}

func indexByName(list []fields.Field, policy DuplicatePolicy) (map[string]fields.Field, error) {
	out := make(map[string]fields.Field, len(list))
	for _, f := range list {
		if _, dup := out[f.FieldName()]; dup {
			if policy == RejectDuplicates {
				return nil, pdferrors.ErrDuplicateField.WithField(f.FieldName())
			}
			continue
		}
		out[f.FieldName()] = f
	}
	return out, nil
}

// uniqueInOrder drops every field whose name was already seen
func uniqueInOrder(list []fields.Field) []fields.Field {
	seen := make(map[string]bool, len(list))
	out := make([]fields.Field, 0, len(list))
	for _, f := range list {
		if seen[f.FieldName()] {
			continue
		}
		seen[f.FieldName()] = true
		out = append(out, f)
	}
	return out
}

// OptionDiff returns the options to remove from have and then append, in
// order, so that have reads want. Options missing from want go first; the
// remaining list keeps its longest common prefix with want and everything
// after it is re-added in submitted order. Repeated options in want count once.
func OptionDiff(have, want []string) (remove, add []string) {
	want = uniqueStrings(want)
	kept := make([]string, 0, len(have))
	for _, o := range have {
		if slices.Contains(want, o) {
			kept = append(kept, o)
		} else {
			remove = append(remove, o)
		}
	}
	prefix := 0
	for prefix < len(kept) && prefix < len(want) && kept[prefix] == want[prefix] {
		prefix++
	}
	remove = append(remove, kept[prefix:]...)
	add = append(add, want[prefix:]...)
	return remove, add
}

func uniqueStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
