package reconcile

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
)

func at(name string, x, y float64) fields.BaseField {
	return fields.BaseField{Page: 1, Name: name, X: x, Y: y, Width: 0.2, Height: 0.05}
}

func names(list []fields.Field) []string {
	out := make([]string, 0, len(list))
	for _, f := range list {
		out = append(out, f.FieldName())
	}
	return out
}

func TestBuildPlan(t *testing.T) {
	template := fields.PDFFields{
		TextFields: []fields.TextField{
			{BaseField: at("same", 0.1, 0.1)},
			{BaseField: at("moved", 0.1, 0.2)},
			{BaseField: at("gone", 0.1, 0.3)},
			{BaseField: at("retyped", 0.1, 0.4)},
		},
	}
	submitted := fields.PDFFields{
		TextFields: []fields.TextField{
			{BaseField: at("same", 0.1005, 0.1)},
			{BaseField: at("moved", 0.5, 0.2)},
			{BaseField: at("new", 0.1, 0.6)},
		},
		CheckBoxFields: []fields.CheckBoxField{
			{BaseField: at("retyped", 0.1, 0.4)},
		},
	}

	plan, err := BuildPlan(template, submitted, FirstWins)
	require.NoError(t, err)

	var updates, checks []string
	for _, p := range plan.Updates {
		updates = append(updates, p.Submitted.FieldName())
	}
	for _, p := range plan.ValueChecks {
		checks = append(checks, p.Submitted.FieldName())
	}
	assert.Equal(t, []string{"moved"}, updates)
	assert.Equal(t, []string{"same"}, checks)
	assert.Equal(t, []string{"gone", "retyped"}, names(plan.Deletes))
	assert.Equal(t, []string{"new", "retyped"}, names(plan.Adds))
	assert.True(t, plan.IsStructural())

	adds := plan.AddsByKind()
	assert.Len(t, adds["text"], 1)
	assert.Len(t, adds["checkbox"], 1)
}

func TestBuildPlan_DescriptionChangeIsUpdate(t *testing.T) {
	tf := fields.TextField{BaseField: at("a", 0.1, 0.1)}
	changed := tf
	changed.Description = "new tooltip"

	plan, err := BuildPlan(
		fields.PDFFields{TextFields: []fields.TextField{tf}},
		fields.PDFFields{TextFields: []fields.TextField{changed}}, FirstWins)
	require.NoError(t, err)
	assert.Len(t, plan.Updates, 1)
	assert.Empty(t, plan.ValueChecks)
}

func TestBuildPlan_DuplicatePolicy(t *testing.T) {
	submitted := fields.PDFFields{
		TextFields: []fields.TextField{
			{BaseField: at("dup", 0.1, 0.1), Value: "first"},
			{BaseField: at("dup", 0.5, 0.5), Value: "second"},
		},
	}

	plan, err := BuildPlan(fields.PDFFields{}, submitted, FirstWins)
	require.NoError(t, err)
	require.Len(t, plan.Adds, 1)
	assert.Equal(t, "first", plan.Adds[0].(*fields.TextField).Value)

	_, err = BuildPlan(fields.PDFFields{}, submitted, RejectDuplicates)
	require.Error(t, err)
	assert.ErrorIs(t, err, pdferrors.ErrDuplicateField)
}

func TestBuildPlan_EmptyIsNoop(t *testing.T) {
	layout := fields.PDFFields{
		TextFields:     []fields.TextField{{BaseField: at("a", 0.1, 0.1)}},
		CheckBoxFields: []fields.CheckBoxField{{BaseField: at("b", 0.1, 0.2)}},
	}
	plan, err := BuildPlan(layout, layout, FirstWins)
	require.NoError(t, err)
	assert.False(t, plan.IsStructural())
	assert.Len(t, plan.ValueChecks, 2)
}

func TestOptionDiff(t *testing.T) {
	tests := []struct {
		name       string
		have, want []string
		remove     []string
		add        []string
	}{
		{name: "equal", have: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "reordered", have: []string{"a", "b"}, want: []string{"b", "a"}, remove: []string{"a", "b"}, add: []string{"b", "a"}},
		{name: "add", have: []string{"a"}, want: []string{"a", "b"}, add: []string{"b"}},
		{name: "insert_in_middle", have: []string{"red", "green"}, want: []string{"red", "blue", "green"}, remove: []string{"green"}, add: []string{"blue", "green"}},
		{name: "remove", have: []string{"a", "b"}, want: []string{"b"}, remove: []string{"a"}},
		{name: "remove_and_reorder", have: []string{"a", "b", "c"}, want: []string{"c", "b"}, remove: []string{"a", "b", "c"}, add: []string{"c", "b"}},
		{name: "replace", have: []string{"a"}, want: []string{"b", "b"}, remove: []string{"a"}, add: []string{"b"}},
		{name: "repeated_want_already_met", have: []string{"b"}, want: []string{"b", "b"}},
		{name: "from_empty", want: []string{"x"}, add: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remove, add := OptionDiff(tt.have, tt.want)
			assert.Equal(t, tt.remove, remove)
			assert.Equal(t, tt.add, add)

			// applying the diff yields want without repeats
			got := slices.Clone(tt.have)
			for _, o := range remove {
				got = slices.Delete(got, slices.Index(got, o), slices.Index(got, o)+1)
			}
			got = append(got, add...)
			assert.Equal(t, slices.Compact(slices.Clone(tt.want)), got)
		})
	}
}

func radioGroup(name, selected string, buttons ...fields.RadioField) fields.RadioGroupField {
	return fields.RadioGroupField{Name: name, SelectedRadioName: selected, RadioFields: buttons}
}

func button(name string, x float64, mandatory bool) fields.RadioField {
	b := at(name, x, 0.5)
	b.Width, b.Height = 0.02, 0.02
	b.Mandatory = mandatory
	return fields.RadioField{BaseField: b, Value: name}
}

func TestPlanRadioGroups(t *testing.T) {
	template := []fields.RadioGroupField{
		radioGroup("keep", "a", button("a", 0.1, false), button("b", 0.2, false)),
		radioGroup("select", "a", button("a", 0.1, false), button("b", 0.2, false)),
		radioGroup("move", "a", button("a", 0.1, false), button("b", 0.2, false)),
		radioGroup("drop", "a", button("a", 0.1, false)),
	}
	submitted := []fields.RadioGroupField{
		radioGroup("keep", "a", button("b", 0.2, false), button("a", 0.1, false)),
		radioGroup("select", "b", button("a", 0.1, false), button("b", 0.2, false)),
		radioGroup("move", "a", button("a", 0.1, false), button("b", 0.6, false)),
		radioGroup("create", "x", button("x", 0.1, false)),
	}

	ops, err := PlanRadioGroups(template, submitted, FirstWins)
	require.NoError(t, err)

	got := make(map[string]RadioOpKind, len(ops))
	for _, op := range ops {
		got[op.Group.Name] = op.Kind
	}
	assert.Equal(t, map[string]RadioOpKind{
		"drop":   RadioDelete,
		"select": RadioSelect,
		"move":   RadioReplace,
		"create": RadioCreate,
	}, got)
}

func TestPlanRadioGroups_MandatoryIsGroupLevel(t *testing.T) {
	// The engine reports the group flag on every button
	template := []fields.RadioGroupField{
		radioGroup("g", "a", button("a", 0.1, true), button("b", 0.2, true)),
	}
	submitted := []fields.RadioGroupField{
		radioGroup("g", "a", button("a", 0.1, true), button("b", 0.2, false)),
	}
	ops, err := PlanRadioGroups(template, submitted, FirstWins)
	require.NoError(t, err)
	assert.Empty(t, ops)

	submitted[0].RadioFields[0].Mandatory = false
	ops, err = PlanRadioGroups(template, submitted, FirstWins)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, RadioReplace, ops[0].Kind)
}

func TestPlanRadioGroups_ButtonCountChange(t *testing.T) {
	template := []fields.RadioGroupField{radioGroup("g", "a", button("a", 0.1, false))}
	submitted := []fields.RadioGroupField{radioGroup("g", "a", button("a", 0.1, false), button("b", 0.2, false))}

	ops, err := PlanRadioGroups(template, submitted, FirstWins)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, RadioReplace, ops[0].Kind)
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    DuplicatePolicy
		wantErr bool
	}{
		{in: "", want: FirstWins},
		{in: "first_wins", want: FirstWins},
		{in: " Reject ", want: RejectDuplicates},
		{in: "last_wins", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDuplicatePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, must(ParseDuplicatePolicy(got.String())))
	}
}

func must(p DuplicatePolicy, err error) DuplicatePolicy {
	if err != nil {
		panic(err)
	}
	return p
}
