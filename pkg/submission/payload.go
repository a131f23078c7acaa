package submission

import (
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/visibility"
)

var paymentMarkers = []string{"payment", "upi"}

// BuildPayload keys every visible answer by the slug of its field label.
// Hidden sections, hidden fields, presentational fields and blank answers are left out.
// Two fields whose labels share a slug collide; the later field wins.
func BuildPayload(def *domain.FormDefinition, answers domain.Answers, files domain.UploadedFiles) map[string]any {
	data := make(map[string]any)
	def = def.Normalized()
	res := visibility.Resolve(def, answers)

	for _, idx := range res.Indexes {
		section := def.Sections[idx]
		for _, field := range visibility.VisibleFields(section, answers) {
			if !field.CollectsAnswer() {
				continue
			}
			key := field.StorageKey()

			if field.Type == domain.FieldFile {
				if uploaded := files[field.ID]; len(uploaded) > 0 {
					data[key] = append([]domain.UploadedFile(nil), uploaded...)
				}
				continue
			}

			value, ok := answers[field.ID]
			if !ok || domain.IsEmpty(value) {
				continue
			}
			if list, ok := value.([]string); ok {
				value = append([]string(nil), list...)
			}
			data[key] = value
		}
	}
	return data
}

// DeriveStatus marks a submission as awaiting payment when any stored key mentions
// a payment or UPI detail.
func DeriveStatus(data map[string]any) domain.SubmissionStatus {
	for key := range data {
		lower := strings.ToLower(key)
		for _, marker := range paymentMarkers {
			if strings.Contains(lower, marker) {
				return domain.StatusPendingPayment
			}
		}
	}
	return domain.StatusConfirmed
}
