package domain

// FieldType enumerates the supported input kinds.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldPhone    FieldType = "phone"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
	FieldRating   FieldType = "rating"

	// Presentational types. They render content but never collect an answer.
	FieldLabel FieldType = "label"
	FieldImage FieldType = "image"
	FieldLink  FieldType = "link"
)

// IsPresentational reports whether the type only displays content.
func (t FieldType) IsPresentational() bool {
	switch t {
	case FieldLabel, FieldImage, FieldLink:
		return true
	}
	return false
}

// IsChoice reports whether the type selects among Options.
func (t FieldType) IsChoice() bool {
	switch t {
	case FieldSelect, FieldRadio, FieldCheckbox:
		return true
	}
	return false
}

// Known reports whether t is one of the supported field types.
func (t FieldType) Known() bool {
	switch t {
	case FieldText, FieldTextarea, FieldEmail, FieldNumber, FieldPhone, FieldDate,
		FieldSelect, FieldRadio, FieldCheckbox, FieldFile, FieldRating,
		FieldLabel, FieldImage, FieldLink:
		return true
	}
	return false
}

// Email domain restrictions.
const (
	EmailDomainAny   = "any"
	EmailDomainHitam = "hitam"
)

// Phone number patterns.
const (
	PhoneAny           = "any"
	PhoneIndia         = "india"
	PhoneInternational = "international"
)

// Rule conditions.
const (
	ConditionEquals    = "equals"
	ConditionNotEquals = "not_equals"
	ConditionContains  = "contains"
)

// Section navigation types.
const (
	NavigationNext   = "next"
	NavigationSubmit = "submit"
)

// SubmitTarget is the TargetList sentinel meaning "end the form now".
const SubmitTarget = "__submit__"

// FormDefinition is the declarative schema of a form.
// Fields is only populated by legacy definitions; see Normalize.
type FormDefinition struct {
	ID          string    `json:"id" yaml:"id" mapstructure:"id"`
	Title       string    `json:"title" yaml:"title" mapstructure:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Sections    []Section `json:"sections,omitempty" yaml:"sections,omitempty" mapstructure:"sections"`
	Fields      []Field   `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`
}

// Section groups fields into one wizard step.
type Section struct {
	ID             string          `json:"id" yaml:"id" mapstructure:"id"`
	Title          string          `json:"title" yaml:"title" mapstructure:"title"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Fields         []Field         `json:"fields" yaml:"fields" mapstructure:"fields"`
	Conditional    *VisibilityRule `json:"conditional,omitempty" yaml:"conditional,omitempty" mapstructure:"conditional"`
	Navigation     *Navigation     `json:"navigation,omitempty" yaml:"navigation,omitempty" mapstructure:"navigation"`
	SkipValidation bool            `json:"skipValidation,omitempty" yaml:"skipValidation,omitempty" mapstructure:"skipValidation"`
}

// Navigation controls what the primary button of a section does.
type Navigation struct {
	Type string `json:"type" yaml:"type" mapstructure:"type"`
}

// IsSubmit reports whether advancing from the section submits the form.
func (s Section) IsSubmit() bool {
	return s.Navigation != nil && s.Navigation.Type == NavigationSubmit
}

// Field is a single question inside a section.
type Field struct {
	ID                 string                `json:"id" yaml:"id" mapstructure:"id"`
	Label              string                `json:"label" yaml:"label" mapstructure:"label"`
	Type               FieldType             `json:"type" yaml:"type" mapstructure:"type"`
	Required           bool                  `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Options            []Option              `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
	Conditional        *VisibilityRule       `json:"conditional,omitempty" yaml:"conditional,omitempty" mapstructure:"conditional"`
	ConditionalMapping map[string]TargetList `json:"conditionalMapping,omitempty" yaml:"conditionalMapping,omitempty" mapstructure:"conditionalMapping"`
	IsUnique           bool                  `json:"isUnique,omitempty" yaml:"isUnique,omitempty" mapstructure:"isUnique"`
	EmailDomain        string                `json:"emailDomain,omitempty" yaml:"emailDomain,omitempty" mapstructure:"emailDomain"`
	PhonePattern       string                `json:"phonePattern,omitempty" yaml:"phonePattern,omitempty" mapstructure:"phonePattern"`
}

// CollectsAnswer reports whether the field stores a value in Answers or UploadedFiles.
func (f Field) CollectsAnswer() bool {
	return !f.Type.IsPresentational()
}

// Option is a selectable choice. The stored answer is the Label, not the ID.
type Option struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id"`
	Label string `json:"label" yaml:"label" mapstructure:"label"`
}

// VisibilityRule shows a section or field only when another field's answer matches.
type VisibilityRule struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	FieldID   string `json:"fieldId" yaml:"fieldId" mapstructure:"fieldId"`
	Condition string `json:"condition" yaml:"condition" mapstructure:"condition"`
	Value     string `json:"value" yaml:"value" mapstructure:"value"`
}

// Active reports whether the rule should be evaluated at all.
func (r *VisibilityRule) Active() bool {
	return r != nil && r.Enabled && r.FieldID != ""
}

// TargetList is the ordered jump table entry of a conditional mapping.
// Entries are section ids or SubmitTarget.
type TargetList []string

// Submits reports whether the list ends the form.
func (t TargetList) Submits() bool {
	for _, target := range t {
		if target == SubmitTarget {
			return true
		}
	}
	return false
}

// Jump returns the first section id of the list, if any.
func (t TargetList) Jump() (string, bool) {
	for _, target := range t {
		if target != "" && target != SubmitTarget {
			return target, true
		}
	}
	return "", false
}

// SectionIndex returns the position of a section id, or -1.
func (d *FormDefinition) SectionIndex(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Section returns the section with the given id.
func (d *FormDefinition) Section(id string) (*Section, bool) {
	if i := d.SectionIndex(id); i >= 0 {
		return &d.Sections[i], true
	}
	return nil, false
}

// Field looks a field up across all sections.
func (d *FormDefinition) Field(id string) (*Field, bool) {
	for si := range d.Sections {
		for fi := range d.Sections[si].Fields {
			if d.Sections[si].Fields[fi].ID == id {
				return &d.Sections[si].Fields[fi], true
			}
		}
	}
	return nil, false
}

// FieldSection returns the index of the section owning a field, or -1.
func (d *FormDefinition) FieldSection(id string) int {
	for si := range d.Sections {
		for _, f := range d.Sections[si].Fields {
			if f.ID == id {
				return si
			}
		}
	}
	return -1
}
