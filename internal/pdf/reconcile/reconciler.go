package reconcile

import (
	"fmt"
	"io"
	"log"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/embed"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
	"github.com/a3tai/mcp-pdf-forms/internal/storage"
)

// Document is the engine surface the reconciler mutates
type Document interface {
	engine.Loader
	engine.Pages
	engine.FieldTable
}

// Result counts the engine mutations performed by one Reconcile call
type Result struct {
	Added         int `json:"added"`
	Deleted       int `json:"deleted"`
	Updated       int `json:"updated"`
	ValueUpdated  int `json:"value_updated"`
	RadioCreated  int `json:"radio_created"`
	RadioDeleted  int `json:"radio_deleted"`
	RadioReplaced int `json:"radio_replaced"`
	RadioSelected int `json:"radio_selected"`

	// Document is the saved, embedded document bytes
	Document []byte `json:"-"`
}

// Operations returns the total number of field level mutations
func (r *Result) Operations() int {
	return r.Added + r.Deleted + r.Updated + r.ValueUpdated +
		r.RadioCreated + r.RadioDeleted + r.RadioReplaced + r.RadioSelected
}

// Structural returns the number of adds, deletes, moves and group rebuilds
func (r *Result) Structural() int {
	return r.Added + r.Deleted + r.Updated + r.RadioCreated + r.RadioDeleted + r.RadioReplaced
}

// Reconciler converges the field layout of a loaded document to a submitted
// layout, then embeds the submitted values and persists the result
type Reconciler struct {
	doc      Document
	embedder *embed.Embedder
	store    storage.Store
	key      storage.Key
	password string
	policy   DuplicatePolicy
	logger   *log.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithStore persists the reconciled document under key
func WithStore(store storage.Store, key storage.Key) Option {
	return func(r *Reconciler) {
		r.store = store
		r.key = key
	}
}

// WithPassword sets the password used to reload the document
func WithPassword(password string) Option {
	return func(r *Reconciler) { r.password = password }
}

// WithDuplicatePolicy sets how repeated field names are treated
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(r *Reconciler) { r.policy = policy }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// NewReconciler creates a reconciler for doc. A nil embedder skips value
// embedding.
func NewReconciler(doc Document, embedder *embed.Embedder, opts ...Option) *Reconciler {
	r := &Reconciler{
		doc:      doc,
		embedder: embedder,
		policy:   FirstWins,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies the plan from template to submitted against the loaded
// document. The mutation order is in-place updates, radio group removals,
// deletes, adds, content values and the remaining radio operations, followed
// by save, embed, store and reload.
// Template must describe the document as currently loaded.
func (r *Reconciler) Reconcile(template, submitted fields.PDFFields) (*Result, error) {
	if !r.doc.IsLoaded() {
		return nil, pdferrors.ErrNotLoaded
	}
	if err := validate(&submitted); err != nil {
		return nil, err
	}

	plan, err := BuildPlan(template, submitted, r.policy)
	if err != nil {
		return nil, err
	}
	r.logger.Printf("reconcile: %d updates, %d deletes, %d adds, %d value checks, %d radio ops",
		len(plan.Updates), len(plan.Deletes), len(plan.Adds), len(plan.ValueChecks), len(plan.Radio))

	res := &Result{}
	if err := r.apply(plan, res); err != nil {
		return res, err
	}

	data, err := r.doc.SaveToBytes()
	if err != nil {
		return res, pdferrors.Wrap(pdferrors.ErrorTypePartialOperation, "failed to save reconciled document", err)
	}

	if r.embedder != nil {
		data, err = r.embedder.Embed(submitted.TextFields, submitted.ChoiceFields, data, false)
		if err != nil {
			return res, err
		}
	}

	if r.store != nil {
		if err := r.store.SaveDocument(r.key, data); err != nil {
			return res, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to store reconciled document", err)
		}
	}

	if err := r.doc.LoadFromBytes(data, r.password); err != nil {
		return res, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to reload reconciled document", err)
	}

	res.Document = data
	return res, nil
}

func (r *Reconciler) apply(plan *Plan, res *Result) error {
	for _, pair := range plan.Updates {
		if err := r.updateGeometry(pair.Submitted); err != nil {
			return partial(err, pair.Submitted.FieldName())
		}
		res.Updated++
		// A moved field may also carry new content
		n, err := r.updateValues(pair)
		if err != nil {
			return partial(err, pair.Submitted.FieldName())
		}
		res.ValueUpdated += n
	}

	// A simple field may take over the name of a removed or replaced group
	for _, op := range plan.Radio {
		if op.Kind != RadioDelete && op.Kind != RadioReplace {
			continue
		}
		if err := r.doc.DeleteFields([]string{op.Group.Name}); err != nil {
			return partial(err, op.Group.Name)
		}
		if op.Kind == RadioDelete {
			res.RadioDeleted++
		}
	}

	deletes := plan.DeletesByKind()
	for _, kind := range kindOrder {
		names := deletes[kind]
		if len(names) == 0 {
			continue
		}
		if err := r.doc.DeleteFields(names); err != nil {
			return pdferrors.Wrap(pdferrors.ErrorTypePartialOperation, fmt.Sprintf("failed to delete %s fields", kind), err)
		}
		res.Deleted += len(names)
	}

	adds := plan.AddsByKind()
	for _, kind := range kindOrder {
		list := adds[kind]
		if len(list) == 0 {
			continue
		}
		specs := make([]engine.FieldSpec, 0, len(list))
		for _, f := range list {
			spec, err := r.fieldSpec(f)
			if err != nil {
				return partial(err, f.FieldName())
			}
			specs = append(specs, spec)
		}
		if err := r.doc.AddFields(specs); err != nil {
			return pdferrors.Wrap(pdferrors.ErrorTypePartialOperation, fmt.Sprintf("failed to add %s fields", kind), err)
		}
		res.Added += len(specs)
	}

	for _, pair := range plan.ValueChecks {
		n, err := r.updateValues(pair)
		if err != nil {
			return partial(err, pair.Submitted.FieldName())
		}
		res.ValueUpdated += n
	}

	for _, op := range plan.Radio {
		if err := r.applyRadio(op, res); err != nil {
			return partial(err, op.Group.Name)
		}
	}
	return nil
}

func (r *Reconciler) updateGeometry(f fields.Field) error {
	base, _ := fields.Base(f)
	idx := r.doc.FindField(base.Name)
	if idx < 0 {
		return pdferrors.ErrFieldNotFound.WithField(base.Name)
	}
	w, h, err := fields.PageSize(r.doc, base.Page)
	if err != nil {
		return err
	}
	if err := r.doc.SetFieldBounds(idx, base.Page, base.ToPoints(w, h)); err != nil {
		return err
	}
	if err := r.doc.SetFieldDescription(idx, base.Description); err != nil {
		return err
	}
	return r.doc.SetFieldRequired(idx, base.Mandatory)
}

// updateValues patches content that value embedding does not cover and
// reports 1 if anything was written
func (r *Reconciler) updateValues(pair FieldPair) (int, error) {
	idx := r.doc.FindField(pair.Submitted.FieldName())
	if idx < 0 {
		return 0, pdferrors.ErrFieldNotFound.WithField(pair.Submitted.FieldName())
	}

	switch s := pair.Submitted.(type) {
	case *fields.ChoiceField:
		t := pair.Template.(*fields.ChoiceField)
		remove, add := OptionDiff(t.Options, s.Options)
		for _, o := range remove {
			if err := r.doc.RemoveChoiceOption(idx, o); err != nil {
				return 0, err
			}
		}
		for _, o := range add {
			if err := r.doc.AddChoiceOption(idx, o); err != nil {
				return 0, err
			}
		}
		if len(remove)+len(add) > 0 {
			return 1, nil
		}
	case *fields.CheckBoxField:
		t := pair.Template.(*fields.CheckBoxField)
		if t.IsChecked != s.IsChecked {
			if err := r.doc.SetFieldChecked(idx, s.IsChecked); err != nil {
				return 0, err
			}
			return 1, nil
		}
	case *fields.TextField:
		t := pair.Template.(*fields.TextField)
		want := s.TextFieldType == fields.TextFieldTypeMultiline
		if (t.TextFieldType == fields.TextFieldTypeMultiline) != want {
			if err := r.doc.SetFieldMultiline(idx, want); err != nil {
				return 0, err
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (r *Reconciler) applyRadio(op RadioOp, res *Result) error {
	switch op.Kind {
	case RadioDelete:
		// removed before the simple field changes
	case RadioCreate:
		if err := r.createGroup(op.Group); err != nil {
			return err
		}
		res.RadioCreated++
	case RadioReplace:
		if err := r.createGroup(op.Group); err != nil {
			return err
		}
		res.RadioReplaced++
	case RadioSelect:
		idx := r.doc.FindField(op.Group.Name)
		if idx < 0 {
			return pdferrors.ErrFieldNotFound.WithField(op.Group.Name)
		}
		if err := r.doc.SetFieldValue(idx, op.Group.SelectedRadioName); err != nil {
			return err
		}
		res.RadioSelected++
	default:
		return fmt.Errorf("unknown radio operation %q", op.Kind)
	}
	return nil
}

func (r *Reconciler) createGroup(g fields.RadioGroupField) error {
	spec := engine.FieldSpec{
		Kind:     engine.FieldKindRadio,
		Name:     g.Name,
		Required: g.IsMandatory(),
		Value:    g.SelectedRadioName,
	}
	for i, rf := range g.RadioFields {
		w, h, err := fields.PageSize(r.doc, rf.Page)
		if err != nil {
			return err
		}
		kid := engine.KidSpec{
			Name:        rf.Name,
			Value:       rf.Value,
			Description: rf.Description,
			Page:        rf.Page,
			Bounds:      rf.ToPoints(w, h),
		}
		if i == 0 {
			spec.Page, spec.Bounds = kid.Page, kid.Bounds
		}
		spec.Kids = append(spec.Kids, kid)
	}
	return r.doc.AddFields([]engine.FieldSpec{spec})
}

// fieldSpec converts a simple field to an engine spec in points
func (r *Reconciler) fieldSpec(f fields.Field) (engine.FieldSpec, error) {
	base, ok := fields.Base(f)
	if !ok {
		return engine.FieldSpec{}, fmt.Errorf("field %s has no single geometry", f.FieldName())
	}
	w, h, err := fields.PageSize(r.doc, base.Page)
	if err != nil {
		return engine.FieldSpec{}, err
	}
	spec := engine.FieldSpec{
		Kind:        f.Kind(),
		Name:        base.Name,
		Page:        base.Page,
		Bounds:      base.ToPoints(w, h),
		Required:    base.Mandatory,
		Description: base.Description,
	}
	switch v := f.(type) {
	case *fields.TextField:
		spec.Value = v.Value
		spec.Multiline = v.TextFieldType == fields.TextFieldTypeMultiline
		spec.Hidden = v.IsHidden
	case *fields.ChoiceField:
		spec.Options = append([]string(nil), v.Options...)
		spec.Value = v.SelectedOption
	case *fields.CheckBoxField:
		spec.Checked = v.IsChecked
	}
	return spec, nil
}

// validate rejects submitted geometry before any mutation is issued
func validate(submitted *fields.PDFFields) error {
	for _, f := range submitted.Simple() {
		base, _ := fields.Base(f)
		if err := base.Validate(); err != nil {
			return err
		}
	}
	for _, g := range submitted.RadioGroupFields {
		for _, rf := range g.RadioFields {
			if err := rf.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func partial(err error, name string) error {
	if pdferrors.TypeOf(err) != pdferrors.ErrorTypeUnknown {
		return err
	}
	return pdferrors.Wrap(pdferrors.ErrorTypePartialOperation, "field mutation failed", err).WithField(name)
}
