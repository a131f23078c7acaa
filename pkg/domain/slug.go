package domain

import "strings"

// Slug derives the persistence key of a field from its label.
// The label is lowercased, every run of non [a-z0-9] characters becomes "_",
// and leading or trailing underscores are trimmed.
func Slug(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	pending := false
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// StorageKey returns the key under which the field's answer is persisted and
// queried. Labels without any alphanumeric character fall back to the field id.
func (f Field) StorageKey() string {
	if key := Slug(f.Label); key != "" {
		return key
	}
	return Slug(f.ID)
}
