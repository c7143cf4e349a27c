package database

// ProjectRecord is the persisted certificate project row. Settings and table
// payloads are stored as JSON documents.
type ProjectRecord struct {
	ProjectID        string `gorm:"column:project_id;primaryKey;size:190;not null"`
	Name             string `gorm:"column:name;size:320;not null"`
	TemplatePath     string `gorm:"column:template_path;size:512"`
	TemplatePages    int    `gorm:"column:template_pages;not null;default:0"`
	SettingsJSON     string `gorm:"column:settings_json;type:text;not null;default:''"`
	TableJSON        string `gorm:"column:table_json;type:text;not null;default:''"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ProjectRecord) TableName() string {
	return "projects"
}

// AnnotationRecord is one persisted annotation. The full annotation object is
// stored as JSON next to the kind discriminant and page placement.
type AnnotationRecord struct {
	AnnotationID     string `gorm:"column:annotation_id;primaryKey;size:190;not null"`
	ProjectID        string `gorm:"column:project_id;size:190;not null;index:idx_annotations_project_page,priority:1"`
	Page             int    `gorm:"column:page;not null;index:idx_annotations_project_page,priority:2"`
	Kind             string `gorm:"column:kind;size:32;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (AnnotationRecord) TableName() string {
	return "annotations"
}

// ChangeAudit is the append-only trail of applied change events.
type ChangeAudit struct {
	ChangeID         string `gorm:"column:change_id;primaryKey;size:190;not null"`
	ProjectID        string `gorm:"column:project_id;size:190;not null;index:idx_changes_project_time,priority:1"`
	ChangeType       string `gorm:"column:change_type;size:64;not null"`
	AnnotationID     string `gorm:"column:annotation_id;size:190"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null;default:''"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null;index:idx_changes_project_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (ChangeAudit) TableName() string {
	return "annotation_changes"
}
