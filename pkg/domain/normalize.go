package domain

import "fmt"

// LegacySectionID is the id given to the synthetic section of a flat definition.
const LegacySectionID = "section-1"

// Normalize returns a deep copy of def in sectioned form.
// A legacy definition (flat Fields, no Sections) becomes a single synthetic section.
// The input is never mutated and Normalize(Normalize(d)) equals Normalize(d).
func Normalize(def *FormDefinition) *FormDefinition {
	if def == nil {
		return nil
	}
	out := def.Clone()
	if len(out.Sections) == 0 && len(out.Fields) > 0 {
		out.Sections = []Section{{
			ID:          LegacySectionID,
			Title:       out.Title,
			Description: out.Description,
			Fields:      out.Fields,
		}}
	}
	out.Fields = nil
	return out
}

// Normalized returns d itself when it is already in sectioned form, and
// Normalize(d) otherwise. Callers must not mutate the result.
func (d *FormDefinition) Normalized() *FormDefinition {
	if d == nil || len(d.Fields) == 0 {
		return d
	}
	return Normalize(d)
}

// Clone returns a deep copy of the definition.
func (d *FormDefinition) Clone() *FormDefinition {
	if d == nil {
		return nil
	}
	out := *d
	out.Fields = cloneFields(d.Fields)
	if d.Sections != nil {
		out.Sections = make([]Section, len(d.Sections))
		for i, s := range d.Sections {
			out.Sections[i] = s.clone()
		}
	}
	return &out
}

func (s Section) clone() Section {
	out := s
	out.Fields = cloneFields(s.Fields)
	if s.Conditional != nil {
		rule := *s.Conditional
		out.Conditional = &rule
	}
	if s.Navigation != nil {
		nav := *s.Navigation
		out.Navigation = &nav
	}
	return out
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		c := f
		if f.Options != nil {
			c.Options = append([]Option(nil), f.Options...)
		}
		if f.Conditional != nil {
			rule := *f.Conditional
			c.Conditional = &rule
		}
		if f.ConditionalMapping != nil {
			c.ConditionalMapping = make(map[string]TargetList, len(f.ConditionalMapping))
			for k, v := range f.ConditionalMapping {
				c.ConditionalMapping[k] = append(TargetList(nil), v...)
			}
		}
		out[i] = c
	}
	return out
}

// Validate checks the structural integrity required to run a definition.
// It expects a normalized definition.
func (d *FormDefinition) Validate() error {
	if d == nil {
		return &DefinitionError{Reason: "definition is nil"}
	}
	if d.ID == "" {
		return &DefinitionError{Reason: "definition has no id"}
	}
	if len(d.Sections) == 0 {
		return &DefinitionError{FormID: d.ID, Reason: "definition has no sections"}
	}

	sections := make(map[string]bool, len(d.Sections))
	fields := make(map[string]bool)
	for _, s := range d.Sections {
		if s.ID == "" {
			return &DefinitionError{FormID: d.ID, Reason: "section without id"}
		}
		if sections[s.ID] {
			return &DefinitionError{FormID: d.ID, Reason: fmt.Sprintf("duplicate section id %q", s.ID)}
		}
		sections[s.ID] = true

		for _, f := range s.Fields {
			if f.ID == "" {
				return &DefinitionError{FormID: d.ID, Reason: fmt.Sprintf("field without id in section %q", s.ID)}
			}
			if fields[f.ID] {
				return &DefinitionError{FormID: d.ID, Reason: fmt.Sprintf("duplicate field id %q", f.ID)}
			}
			fields[f.ID] = true
			if !f.Type.Known() {
				return &DefinitionError{FormID: d.ID, Reason: fmt.Sprintf("field %q has unknown type %q", f.ID, f.Type)}
			}
		}
	}
	return nil
}
