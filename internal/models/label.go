package models

// Label is one of the five canonical ticket categories.
type Label string

const (
	LabelTask           Label = "Task"
	LabelBug            Label = "Bug"
	LabelIncident       Label = "Incident"
	LabelFeatureRequest Label = "Feature Request"
	LabelQuestion       Label = "Question"
)

// CanonicalLabels lists every valid label in canonical order. The order is
// load-bearing: normalization checks labels in this order, so a garbled
// classifier reply that mentions several labels resolves deterministically.
var CanonicalLabels = []Label{
	LabelTask,
	LabelBug,
	LabelIncident,
	LabelFeatureRequest,
	LabelQuestion,
}

// DefaultLabel is used when classification produced nothing usable.
const DefaultLabel = LabelTask

// Valid reports whether l is one of the canonical labels.
func (l Label) Valid() bool {
	for _, c := range CanonicalLabels {
		if l == c {
			return true
		}
	}
	return false
}
