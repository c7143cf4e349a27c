package database

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opProjectCreate = "database.project_create"
	opProjectGet    = "database.project_get"
	opProjectUpdate = "database.project_update"
)

// ErrProjectNotFound indicates that no project row carries the id.
var ErrProjectNotFound = errors.New("database: project not found")

// Projects provides row-level access to persisted projects.
type Projects struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewProjects returns a project repository over the database handle.
func NewProjects(db *gorm.DB, clock func() time.Time, logger *zap.Logger) (*Projects, error) {
	if db == nil {
		return nil, newWriterError(opProjectCreate, "missing_database", errMissingDatabase)
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = noOpLogger
	}
	return &Projects{db: db, clock: clock, logger: logger}, nil
}

// Create inserts a fresh project row.
func (p *Projects) Create(ctx context.Context, projectID, name string) error {
	record := ProjectRecord{
		ProjectID:        projectID,
		Name:             name,
		UpdatedAtSeconds: p.clock().UTC().Unix(),
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		return newWriterError(opProjectCreate, "insert_failed", err)
	}
	return nil
}

// Get loads one project row.
func (p *Projects) Get(ctx context.Context, projectID string) (ProjectRecord, error) {
	var record ProjectRecord
	err := p.db.WithContext(ctx).Where("project_id = ?", projectID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProjectRecord{}, newWriterError(opProjectGet, "not_found", ErrProjectNotFound)
	}
	if err != nil {
		return ProjectRecord{}, newWriterError(opProjectGet, "query_failed", err)
	}
	return record, nil
}

// SetTemplate records the stored template file and its page count.
func (p *Projects) SetTemplate(ctx context.Context, projectID, path string, pages int) error {
	result := p.db.WithContext(ctx).Model(&ProjectRecord{}).
		Where("project_id = ?", projectID).
		Updates(map[string]any{
			"template_path":  path,
			"template_pages": pages,
			"updated_at_s":   p.clock().UTC().Unix(),
		})
	if result.Error != nil {
		return newWriterError(opProjectUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newWriterError(opProjectUpdate, "not_found", ErrProjectNotFound)
	}
	return nil
}

// ListAnnotations returns the persisted annotations of a project ordered by
// page.
func (p *Projects) ListAnnotations(ctx context.Context, projectID string) ([]AnnotationRecord, error) {
	var records []AnnotationRecord
	if err := p.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("page ASC, annotation_id ASC").
		Find(&records).Error; err != nil {
		return nil, newWriterError(opProjectGet, "query_failed", err)
	}
	return records, nil
}
