package loam

// FormMetadata is the frontmatter of a form document.
// Sections and fields stay loosely typed here and are decoded with
// mapstructure so YAML, JSON and strict-mode numbers all land the same way.
type FormMetadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description" mapstructure:"description"`
	Sections    []any  `json:"sections" mapstructure:"sections"`
	// Fields holds legacy single-section definitions.
	Fields []any `json:"fields" mapstructure:"fields"`
}
