package services

import (
	"fmt"

	"github.com/huangang/ticketflow/backend/internal/models"
)

// IssueTypeMap is the validated mapping from canonical labels to tracker
// issue-type ids. Construction fails when any label is unmapped, so a broken
// table is caught at startup rather than on the first ticket.
type IssueTypeMap struct {
	byLabel map[models.Label]string
}

func NewIssueTypeMap(table map[string]string) (*IssueTypeMap, error) {
	byLabel := make(map[models.Label]string, len(models.CanonicalLabels))
	for _, label := range models.CanonicalLabels {
		id, ok := table[string(label)]
		if !ok || id == "" {
			return nil, fmt.Errorf("issue type mapping is missing label %q", label)
		}
		byLabel[label] = id
	}
	return &IssueTypeMap{byLabel: byLabel}, nil
}

// For returns the tracker issue-type id for a label. Unknown labels fall back
// to the default label's mapping, which always exists after validation.
func (m *IssueTypeMap) For(label models.Label) string {
	if id, ok := m.byLabel[label]; ok {
		return id
	}
	return m.byLabel[models.DefaultLabel]
}
