package rules

import "github.com/petroflow/billing-control-plane/models"

// BuildContext flattens a document's policy-visible fields and overlays the
// caller-supplied extra context. Caller keys are applied last and may shadow
// document-derived keys.
func BuildContext(doc *models.Document, extra map[string]any) map[string]any {
	context := make(map[string]any)
	if doc != nil {
		for k, v := range doc.Fields() {
			context[k] = v
		}
	}
	for k, v := range extra {
		context[k] = v
	}
	return context
}
