package builder

// ChangeType enumerates the replayable mutation intents.
type ChangeType string

const (
	ChangeColumnAdd        ChangeType = "annotate-column-add"
	ChangeColumnUpdate     ChangeType = "annotate-column-update"
	ChangeColumnRemove     ChangeType = "annotate-column-remove"
	ChangeSignatureAdd     ChangeType = "annotate-signature-add"
	ChangeSignatureUpdate  ChangeType = "annotate-signature-update"
	ChangeSignatureRemove  ChangeType = "annotate-signature-remove"
	ChangeSignatureInvite  ChangeType = "annotate-signature-invite"
	ChangeSignatureApprove ChangeType = "annotate-signature-approve"
	ChangeSettingsUpdate   ChangeType = "settings-update"
	ChangeTableUpdate      ChangeType = "table-update"
)

// Change carries the minimal payload needed to replay one mutation remotely:
// the full annotation plus page for add/update, the id alone for
// remove/invite/approve, and the full document for settings/table updates.
type Change struct {
	Type      ChangeType `json:"type"`
	ProjectID string     `json:"projectId"`

	Page       int        `json:"page,omitempty"`
	Annotation Annotation `json:"annotation,omitempty"`

	AnnotationID string `json:"annotationId,omitempty"`

	Settings *Settings `json:"settings,omitempty"`
	Table    *Table    `json:"table,omitempty"`
}

// ChangeKey derives the deduplication key: "<type>-<id>" for entity-bound
// changes, the bare type for settings and table changes. Repeated edits to
// one annotation within a debounce window therefore collapse to the latest
// payload, while edits to different annotations stay independent.
func (c Change) ChangeKey() string {
	if id := c.EntityID(); id != "" {
		return string(c.Type) + "-" + id
	}
	return string(c.Type)
}

// EntityID returns the annotation id the change is bound to, empty for
// settings and table changes.
func (c Change) EntityID() string {
	if c.AnnotationID != "" {
		return c.AnnotationID
	}
	if c.Annotation != nil {
		return c.Annotation.AnnotationID()
	}
	return ""
}
