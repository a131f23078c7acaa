package dsl

import (
	"fmt"

	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/domain"
)

// Builder manages the construction of one form definition.
type Builder struct {
	def      domain.FormDefinition
	sections []*SectionBuilder
	index    map[string]*SectionBuilder
}

// New creates a new form builder.
func New(id string) *Builder {
	return &Builder{
		def:   domain.FormDefinition{ID: id},
		index: make(map[string]*SectionBuilder),
	}
}

// Title sets the form title.
func (b *Builder) Title(title string) *Builder {
	b.def.Title = title
	return b
}

// Description sets the form description.
func (b *Builder) Description(text string) *Builder {
	b.def.Description = text
	return b
}

// Section appends a section to the form.
// If the section already exists, it returns the existing builder.
func (b *Builder) Section(id string) *SectionBuilder {
	if sb, ok := b.index[id]; ok {
		return sb
	}
	sb := &SectionBuilder{section: domain.Section{ID: id, Title: id}}
	b.sections = append(b.sections, sb)
	b.index[id] = sb
	return sb
}

// Build assembles, normalizes and validates the definition.
func (b *Builder) Build() (*domain.FormDefinition, error) {
	def := b.def
	def.Sections = make([]domain.Section, 0, len(b.sections))
	for _, sb := range b.sections {
		def.Sections = append(def.Sections, sb.build())
	}

	norm := domain.Normalize(&def)
	if err := norm.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build form %s: %w", b.def.ID, err)
	}
	return norm, nil
}

// MustBuild is Build for static definitions known to be valid.
func (b *Builder) MustBuild() *domain.FormDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// Store builds the definition into an in-memory definition store.
func (b *Builder) Store() (*memory.Definitions, error) {
	def, err := b.Build()
	if err != nil {
		return nil, err
	}
	return memory.NewDefinitions(def)
}

// SectionBuilder provides a fluent API for configuring a section.
type SectionBuilder struct {
	section domain.Section
	fields  []*FieldBuilder
}

// Title sets the section title.
func (s *SectionBuilder) Title(title string) *SectionBuilder {
	s.section.Title = title
	return s
}

// Description sets the section description.
func (s *SectionBuilder) Description(text string) *SectionBuilder {
	s.section.Description = text
	return s
}

// ShowIf makes the section visible only while the rule holds.
func (s *SectionBuilder) ShowIf(fieldID, condition, value string) *SectionBuilder {
	s.section.Conditional = &domain.VisibilityRule{Enabled: true, FieldID: fieldID, Condition: condition, Value: value}
	return s
}

// SubmitStep makes advancing from the section submit the form.
func (s *SectionBuilder) SubmitStep() *SectionBuilder {
	s.section.Navigation = &domain.Navigation{Type: domain.NavigationSubmit}
	return s
}

// SkipValidation lets the respondent advance without filling required fields.
func (s *SectionBuilder) SkipValidation() *SectionBuilder {
	s.section.SkipValidation = true
	return s
}

// Field appends a field of any type.
func (s *SectionBuilder) Field(id, label string, typ domain.FieldType) *FieldBuilder {
	fb := &FieldBuilder{field: domain.Field{ID: id, Label: label, Type: typ}, section: s}
	s.fields = append(s.fields, fb)
	return fb
}

func (s *SectionBuilder) Text(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldText)
}

func (s *SectionBuilder) Textarea(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldTextarea)
}

func (s *SectionBuilder) Email(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldEmail)
}

func (s *SectionBuilder) Phone(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldPhone)
}

func (s *SectionBuilder) Number(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldNumber)
}

func (s *SectionBuilder) Date(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldDate)
}

func (s *SectionBuilder) File(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldFile)
}

func (s *SectionBuilder) Rating(id, label string) *FieldBuilder {
	return s.Field(id, label, domain.FieldRating)
}

// Label appends a presentational text block.
func (s *SectionBuilder) Label(id, text string) *FieldBuilder {
	return s.Field(id, text, domain.FieldLabel)
}

func (s *SectionBuilder) Select(id, label string, options ...string) *FieldBuilder {
	return s.Field(id, label, domain.FieldSelect).Options(options...)
}

func (s *SectionBuilder) Radio(id, label string, options ...string) *FieldBuilder {
	return s.Field(id, label, domain.FieldRadio).Options(options...)
}

func (s *SectionBuilder) Checkbox(id, label string, options ...string) *FieldBuilder {
	return s.Field(id, label, domain.FieldCheckbox).Options(options...)
}

func (s *SectionBuilder) build() domain.Section {
	out := s.section
	out.Fields = make([]domain.Field, 0, len(s.fields))
	for _, fb := range s.fields {
		out.Fields = append(out.Fields, fb.field)
	}
	return out
}

// FieldBuilder provides a fluent API for configuring a field.
type FieldBuilder struct {
	field   domain.Field
	section *SectionBuilder
}

// Required marks the field as mandatory.
func (f *FieldBuilder) Required() *FieldBuilder {
	f.field.Required = true
	return f
}

// Unique enables the uniqueness check against prior submissions.
func (f *FieldBuilder) Unique() *FieldBuilder {
	f.field.IsUnique = true
	return f
}

// Domain restricts an email field to an organisation domain.
func (f *FieldBuilder) Domain(emailDomain string) *FieldBuilder {
	f.field.EmailDomain = emailDomain
	return f
}

// Pattern sets the phone pattern.
func (f *FieldBuilder) Pattern(phonePattern string) *FieldBuilder {
	f.field.PhonePattern = phonePattern
	return f
}

// Options appends choices. Option ids are derived from the field id.
func (f *FieldBuilder) Options(labels ...string) *FieldBuilder {
	for _, label := range labels {
		f.field.Options = append(f.field.Options, domain.Option{
			ID:    fmt.Sprintf("%s-opt-%d", f.field.ID, len(f.field.Options)+1),
			Label: label,
		})
	}
	return f
}

// ShowIf shows the field only while the sibling field holds value.
func (f *FieldBuilder) ShowIf(fieldID, value string) *FieldBuilder {
	f.field.Conditional = &domain.VisibilityRule{
		Enabled: true, FieldID: fieldID, Condition: domain.ConditionEquals, Value: value,
	}
	return f
}

// Jump sends the respondent to the target sections when value is selected.
func (f *FieldBuilder) Jump(value string, targets ...string) *FieldBuilder {
	if f.field.ConditionalMapping == nil {
		f.field.ConditionalMapping = make(map[string]domain.TargetList)
	}
	f.field.ConditionalMapping[value] = append(f.field.ConditionalMapping[value], targets...)
	return f
}

// SubmitOn ends the form as soon as value is selected.
func (f *FieldBuilder) SubmitOn(value string) *FieldBuilder {
	return f.Jump(value, domain.SubmitTarget)
}

// Section returns the owning section builder to continue chaining.
func (f *FieldBuilder) Section() *SectionBuilder {
	return f.section
}
