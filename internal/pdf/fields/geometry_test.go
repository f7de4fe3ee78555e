package fields

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine/enginetest"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

func base(x, y, w, h float64) BaseField {
	return BaseField{Page: 1, Name: "f", X: x, Y: y, Width: w, Height: h}
}

func TestAreEqual(t *testing.T) {
	ref := base(0.1, 0.2, 0.3, 0.05)

	tests := []struct {
		name    string
		other   BaseField
		descr   bool
		want    bool
		mutator func(*BaseField)
	}{
		{name: "identical", other: ref, want: true},
		{name: "within_tolerance", other: base(0.1009, 0.2, 0.3, 0.05), want: true},
		{name: "at_tolerance_is_unequal", other: base(0.1+DefaultTolerance+1e-9, 0.2, 0.3, 0.05), want: false},
		{name: "width_differs", other: base(0.1, 0.2, 0.31, 0.05), want: false},
		{name: "page_differs", other: ref, mutator: func(b *BaseField) { b.Page = 2 }, want: false},
		{name: "mandatory_differs", other: ref, mutator: func(b *BaseField) { b.Mandatory = true }, want: false},
		{name: "description_ignored", other: ref, mutator: func(b *BaseField) { b.Description = "x" }, want: true},
		{name: "description_compared", other: ref, descr: true, mutator: func(b *BaseField) { b.Description = "x" }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := tt.other
			if tt.mutator != nil {
				tt.mutator(&other)
			}
			assert.Equal(t, tt.want, AreEqual(ref, other, tt.descr))
			assert.Equal(t, tt.want, AreEqual(other, ref, tt.descr), "equality must be symmetric")
		})
	}
}

func TestAreEqualWithin_StrictBound(t *testing.T) {
	a := base(0.5, 0.5, 0.1, 0.1)
	b := base(0.5, 0.5, 0.1, 0.1)
	b.X = 0.75
	assert.False(t, AreEqualWithin(a, b, false, 0.25))
	assert.True(t, AreEqualWithin(a, b, false, 0.2500001))
}

func TestBaseField_Validate(t *testing.T) {
	tests := []struct {
		name    string
		field   BaseField
		wantErr bool
	}{
		{name: "valid", field: base(0.1, 0.1, 0.5, 0.5)},
		{name: "full_page", field: base(0, 0, 1, 1)},
		{name: "page_zero", field: BaseField{Name: "f", Width: 0.1, Height: 0.1}, wantErr: true},
		{name: "negative", field: base(-0.1, 0.1, 0.1, 0.1), wantErr: true},
		{name: "overflow", field: base(0.5, 0.1, 0.6, 0.1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPointsRoundTrip(t *testing.T) {
	sizes := [][2]float64{{612, 792}, {595.28, 841.89}, {1224, 792}}
	in := base(0.123, 0.456, 0.2, 0.033)

	for _, s := range sizes {
		r := in.ToPoints(s[0], s[1])
		var out BaseField
		out.Page, out.Name = in.Page, in.Name
		out.FromPoints(r, s[0], s[1])

		if diff := cmp.Diff(in, out, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("round trip on %vx%v mismatch (-want +got):\n%s", s[0], s[1], diff)
		}
		assert.True(t, AreEqual(in, out, true))
	}
}

func TestFromPoints_ZeroPage(t *testing.T) {
	b := base(0.1, 0.1, 0.1, 0.1)
	b.FromPoints(engine.Rect{Left: 10, Top: 10, Width: 10, Height: 10}, 0, 792)
	assert.Equal(t, 0.1, b.X, "zero sized page must leave geometry untouched")
}

func TestPageSize(t *testing.T) {
	doc := enginetest.NewLoaded([2]float64{612, 792}, [2]float64{842, 595})

	w, h, err := PageSize(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, 842.0, w)
	assert.Equal(t, 595.0, h)

	_, _, err = PageSize(doc, 3)
	require.Error(t, err)
	assert.Equal(t, pdferrors.ErrorTypePrecondition, pdferrors.TypeOf(err))
}
