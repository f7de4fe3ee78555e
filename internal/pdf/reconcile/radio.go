package reconcile

import (
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

// RadioOpKind is the action taken on a whole radio group
type RadioOpKind string

const (
	RadioCreate  RadioOpKind = "create"
	RadioDelete  RadioOpKind = "delete"
	RadioReplace RadioOpKind = "replace"
	RadioSelect  RadioOpKind = "select"
)

// RadioOp is one group-level change. Group is the submitted definition, or
// the template definition for deletes.
type RadioOp struct {
	Kind  RadioOpKind            `json:"kind"`
	Group fields.RadioGroupField `json:"group"`
}

// PlanRadioGroups diffs radio groups by group name. Sub-position indexes are
// not stable across insertion and deletion, so any structural difference
// replaces the whole group; only a changed selection is patched in place.
func PlanRadioGroups(template, submitted []fields.RadioGroupField, policy DuplicatePolicy) ([]RadioOp, error) {
	templateByName, templateOrder, err := indexGroups(template, policy)
	if err != nil {
		return nil, err
	}
	submittedByName, submittedOrder, err := indexGroups(submitted, policy)
	if err != nil {
		return nil, err
	}

	var ops []RadioOp
	for _, name := range templateOrder {
		if _, ok := submittedByName[name]; !ok {
			ops = append(ops, RadioOp{Kind: RadioDelete, Group: templateByName[name]})
		}
	}

	for _, name := range submittedOrder {
		s := submittedByName[name]
		t, ok := templateByName[name]
		switch {
		case !ok:
			ops = append(ops, RadioOp{Kind: RadioCreate, Group: s})
		case !sameGroupLayout(t, s):
			ops = append(ops, RadioOp{Kind: RadioReplace, Group: s})
		case t.SelectedRadioName != s.SelectedRadioName:
			ops = append(ops, RadioOp{Kind: RadioSelect, Group: s})
		}
	}
	return ops, nil
}

// sameGroupLayout reports whether both groups hold the same buttons at the
// same positions. Mandatory is a group-level flag in the engine, so every
// button is compared with the group's effective value.
func sameGroupLayout(t, s fields.RadioGroupField) bool {
	if len(t.RadioFields) != len(s.RadioFields) {
		return false
	}
	tMandatory, sMandatory := t.IsMandatory(), s.IsMandatory()
	if tMandatory != sMandatory {
		return false
	}

	byName := make(map[string]fields.RadioField, len(t.RadioFields))
	for _, r := range t.RadioFields {
		byName[r.Name] = r
	}
	for _, sr := range s.RadioFields {
		tr, ok := byName[sr.Name]
		if !ok {
			return false
		}
		tb, sb := tr.BaseField, sr.BaseField
		tb.Mandatory, sb.Mandatory = tMandatory, sMandatory
		if !fields.AreEqual(tb, sb, false) || tr.Value != sr.Value {
			return false
		}
	}
	return true
}

func indexGroups(groups []fields.RadioGroupField, policy DuplicatePolicy) (map[string]fields.RadioGroupField, []string, error) {
	byName := make(map[string]fields.RadioGroupField, len(groups))
	order := make([]string, 0, len(groups))
	for _, g := range groups {
		if _, dup := byName[g.Name]; dup {
			if policy == RejectDuplicates {
				return nil, nil, pdferrors.ErrDuplicateField.WithField(g.Name)
			}
			continue
		}
		byName[g.Name] = g
		order = append(order, g.Name)
	}
	return byName, order, nil
}
