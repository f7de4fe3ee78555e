package fields

import (
	"fmt"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Source is the part of an engine document needed to read its field layout
type Source interface {
	engine.Loader
	engine.Pages
	engine.FieldTable
}

// Read builds the PDFFields currently stored in a loaded document, with all
// geometry normalized to page fractions
func Read(doc Source) (PDFFields, error) {
	var out PDFFields
	if !doc.IsLoaded() {
		return out, pdferrors.ErrNotLoaded
	}

	for i := 0; i < doc.FieldCount(); i++ {
		kind := doc.FieldKind(i)
		if kind == engine.FieldKindRadio {
			group, err := readRadioGroup(doc, i)
			if err != nil {
				return out, err
			}
			out.RadioGroupFields = append(out.RadioGroupFields, group)
			continue
		}

		base, err := readBase(doc, i)
		if err != nil {
			return out, err
		}

		switch kind {
		case engine.FieldKindText:
			tf := TextField{
				BaseField:     base,
				Value:         doc.FieldValue(i),
				TextFieldType: TextFieldTypeText,
				IsHidden:      doc.FieldHidden(i),
			}
			if doc.FieldMultiline(i) {
				tf.TextFieldType = TextFieldTypeMultiline
			}
			out.TextFields = append(out.TextFields, tf)
		case engine.FieldKindChoice:
			out.ChoiceFields = append(out.ChoiceFields, ChoiceField{
				BaseField:      base,
				Options:        append([]string(nil), doc.FieldOptions(i)...),
				SelectedOption: doc.FieldValue(i),
			})
		case engine.FieldKindCheckBox:
			out.CheckBoxFields = append(out.CheckBoxFields, CheckBoxField{
				BaseField: base,
				IsChecked: doc.FieldChecked(i),
			})
		case engine.FieldKindSignature:
			out.SignatureFields = append(out.SignatureFields, SignatureField{BaseField: base})
		default:
			// Push buttons and unknown widgets are not part of the layout
		}
	}

	return out, nil
}

func readBase(doc Source, index int) (BaseField, error) {
	base := BaseField{
		Page:        doc.FieldPage(index),
		Name:        doc.FieldTitle(index),
		Description: doc.FieldDescription(index),
		Mandatory:   doc.FieldRequired(index),
	}
	w, h, err := PageSize(doc, base.Page)
	if err != nil {
		return base, err
	}
	base.FromPoints(doc.FieldBounds(index), w, h)
	return base, nil
}

func readRadioGroup(doc Source, index int) (RadioGroupField, error) {
	group := RadioGroupField{
		Name:              doc.FieldTitle(index),
		SelectedRadioName: doc.FieldValue(index),
	}
	required := doc.FieldRequired(index)

	for k := 0; k < doc.KidCount(index); k++ {
		kid := doc.Kid(index, k)
		w, h, err := PageSize(doc, kid.Page)
		if err != nil {
			return group, fmt.Errorf("radio group %s: %w", group.Name, err)
		}
		rf := RadioField{
			BaseField: BaseField{
				Page:        kid.Page,
				Name:        kid.Name,
				Description: kid.Description,
				Mandatory:   required,
			},
			Value: kid.Value,
		}
		rf.FromPoints(kid.Bounds, w, h)
		group.RadioFields = append(group.RadioFields, rf)
	}
	return group, nil
}
