package domain

import (
	"fmt"
	"strings"
)

// Answers maps field ids to their current values.
// Values are scalars for single-valued types and []string for checkbox fields.
type Answers map[string]any

// UploadedFile describes a file accepted by the upload collaborator.
type UploadedFile struct {
	URL          string `json:"url" mapstructure:"url"`
	OriginalName string `json:"originalName" mapstructure:"originalName"`
	ResourceType string `json:"resourceType" mapstructure:"resourceType"`
	FolderPath   string `json:"folderPath" mapstructure:"folderPath"`
}

// UploadedFiles maps file field ids to the descriptors recorded for them.
type UploadedFiles map[string][]UploadedFile

// FileBlob is a binary payload waiting to be uploaded.
type FileBlob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Clone returns a copy safe for independent mutation.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// Clone returns a copy safe for independent mutation.
func (u UploadedFiles) Clone() UploadedFiles {
	out := make(UploadedFiles, len(u))
	for k, v := range u {
		out[k] = append([]UploadedFile(nil), v...)
	}
	return out
}

// IsEmpty reports whether a value counts as "no answer".
// Blank strings, nil and empty lists are empty; everything else is not.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case []UploadedFile:
		return len(v) == 0
	}
	return false
}

// AsString renders a scalar answer as text. Lists are joined with ", ".
func AsString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		return strings.Join(AsStrings(v), ", ")
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return fmt.Sprint(value)
}

// AsStrings returns the selected values of a multi-valued answer.
// A scalar answer is returned as a single-element list.
func AsStrings(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, AsString(item))
		}
		return out
	}
	if IsEmpty(value) {
		return nil
	}
	return []string{AsString(value)}
}

// ResourceType classifies an upload by content type: "image", "video" or "raw".
func ResourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	}
	return "raw"
}
