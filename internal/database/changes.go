package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
	"github.com/InkLedgerLabs/certmark/backend/internal/changelog"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errUnknownEvent      = errors.New("unknown change event")
	noOpLogger           = zap.NewNop()
)

const (
	opWriterNew    = "database.change_writer.new"
	opSaveChanges  = "database.save_changes"
	fieldProjectID = "project_id"
	fieldChangeKey = "change_key"
)

// WriterError carries a dotted operation/reason code alongside the cause.
type WriterError struct {
	code string
	err  error
}

func (e *WriterError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *WriterError) Unwrap() error {
	return e.err
}

func (e *WriterError) Code() string {
	return e.code
}

func newWriterError(operation, reason string, cause error) error {
	return &WriterError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ChangeWriterConfig wires the persistence collaborator behind the change
// queue.
type ChangeWriterConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider builder.IDProvider
	Logger     *zap.Logger
}

// ChangeWriter applies flushed change batches to the annotation and project
// tables inside one transaction, appending an audit row per event. Any error
// fails the whole batch so the queue retains it for the next flush.
type ChangeWriter struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider builder.IDProvider
	logger     *zap.Logger
}

// NewChangeWriter validates the configuration and returns a writer.
func NewChangeWriter(cfg ChangeWriterConfig) (*ChangeWriter, error) {
	if cfg.Database == nil {
		return nil, newWriterError(opWriterNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newWriterError(opWriterNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &ChangeWriter{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// SaveChanges implements changelog.Saver.
func (w *ChangeWriter) SaveChanges(ctx context.Context, batch []changelog.Event) error {
	if len(batch) == 0 {
		return nil
	}

	appliedAt := w.clock().UTC().Unix()
	txErr := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, event := range batch {
			change, ok := event.(builder.Change)
			if !ok {
				return newWriterError(opSaveChanges, "unknown_event", errUnknownEvent)
			}
			if err := w.applyChange(tx, change, appliedAt); err != nil {
				w.logger.Error("change apply failed",
					zap.String(fieldProjectID, change.ProjectID),
					zap.String(fieldChangeKey, change.ChangeKey()),
					zap.Error(err))
				return err
			}
			if err := w.appendAudit(tx, change, appliedAt); err != nil {
				return newWriterError(opSaveChanges, "audit_insert_failed", err)
			}
		}
		return nil
	})
	return txErr
}

func (w *ChangeWriter) applyChange(tx *gorm.DB, change builder.Change, appliedAt int64) error {
	switch change.Type {
	case builder.ChangeColumnAdd, builder.ChangeColumnUpdate,
		builder.ChangeSignatureAdd, builder.ChangeSignatureUpdate:
		return w.upsertAnnotation(tx, change, appliedAt)

	case builder.ChangeColumnRemove, builder.ChangeSignatureRemove:
		return tx.Where("annotation_id = ? AND project_id = ?", change.AnnotationID, change.ProjectID).
			Delete(&AnnotationRecord{}).Error

	case builder.ChangeSignatureInvite:
		return w.transitionSignature(tx, change, builder.StatusInvited, appliedAt)

	case builder.ChangeSignatureApprove:
		return w.transitionSignature(tx, change, builder.StatusSigned, appliedAt)

	case builder.ChangeSettingsUpdate:
		payload, err := json.Marshal(change.Settings)
		if err != nil {
			return newWriterError(opSaveChanges, "settings_encode_failed", err)
		}
		return tx.Model(&ProjectRecord{}).
			Where("project_id = ?", change.ProjectID).
			Updates(map[string]any{"settings_json": string(payload), "updated_at_s": appliedAt}).Error

	case builder.ChangeTableUpdate:
		payload, err := json.Marshal(change.Table)
		if err != nil {
			return newWriterError(opSaveChanges, "table_encode_failed", err)
		}
		return tx.Model(&ProjectRecord{}).
			Where("project_id = ?", change.ProjectID).
			Updates(map[string]any{"table_json": string(payload), "updated_at_s": appliedAt}).Error

	default:
		return newWriterError(opSaveChanges, "unknown_change_type", errUnknownEvent)
	}
}

func (w *ChangeWriter) upsertAnnotation(tx *gorm.DB, change builder.Change, appliedAt int64) error {
	payload, err := json.Marshal(change.Annotation)
	if err != nil {
		return newWriterError(opSaveChanges, "annotation_encode_failed", err)
	}
	record := AnnotationRecord{
		AnnotationID:     change.Annotation.AnnotationID(),
		ProjectID:        change.ProjectID,
		Page:             change.Page,
		Kind:             string(change.Annotation.Kind()),
		PayloadJSON:      string(payload),
		UpdatedAtSeconds: appliedAt,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "annotation_id"}},
		UpdateAll: true,
	}).Create(&record).Error
}

// transitionSignature rewrites the stored status of a signature annotation.
// A missing row is skipped with a warning instead of failing the batch: a
// remove for the same annotation may already have been applied.
func (w *ChangeWriter) transitionSignature(tx *gorm.DB, change builder.Change, status builder.SignatureStatus, appliedAt int64) error {
	var record AnnotationRecord
	err := tx.Where("annotation_id = ? AND project_id = ?", change.AnnotationID, change.ProjectID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w.logger.Warn("signature transition on missing annotation",
			zap.String(fieldProjectID, change.ProjectID),
			zap.String("annotation_id", change.AnnotationID),
			zap.String("status", string(status)))
		return nil
	}
	if err != nil {
		return err
	}

	var signature builder.SignatureAnnotation
	if err := json.Unmarshal([]byte(record.PayloadJSON), &signature); err != nil {
		return newWriterError(opSaveChanges, "annotation_decode_failed", err)
	}
	signature.Status = status

	payload, err := json.Marshal(&signature)
	if err != nil {
		return newWriterError(opSaveChanges, "annotation_encode_failed", err)
	}
	record.PayloadJSON = string(payload)
	record.UpdatedAtSeconds = appliedAt
	return tx.Save(&record).Error
}

func (w *ChangeWriter) appendAudit(tx *gorm.DB, change builder.Change, appliedAt int64) error {
	changeID, err := w.idProvider.NewID()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return tx.Create(&ChangeAudit{
		ChangeID:         changeID,
		ProjectID:        change.ProjectID,
		ChangeType:       string(change.Type),
		AnnotationID:     change.EntityID(),
		PayloadJSON:      string(payload),
		AppliedAtSeconds: appliedAt,
	}).Error
}
