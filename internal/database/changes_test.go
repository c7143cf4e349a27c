package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
	"github.com/InkLedgerLabs/certmark/backend/internal/changelog"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDs struct {
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("change-%d", p.next), nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:certmark_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&ProjectRecord{}, &AnnotationRecord{}, &ChangeAudit{}, &migrationRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestWriter(t *testing.T, db *gorm.DB) *ChangeWriter {
	t.Helper()
	writer, err := NewChangeWriter(ChangeWriterConfig{
		Database:   db,
		Clock:      fixedClock(time.Unix(1780000000, 0)),
		IDProvider: &sequentialIDs{},
	})
	if err != nil {
		t.Fatalf("new change writer: %v", err)
	}
	return writer
}

func seedProject(t *testing.T, db *gorm.DB, projectID string) {
	t.Helper()
	record := ProjectRecord{ProjectID: projectID, Name: "Test", UpdatedAtSeconds: 1}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
}

func columnChange(changeType builder.ChangeType, projectID, id string, page int, value string) builder.Change {
	return builder.Change{
		Type:      changeType,
		ProjectID: projectID,
		Page:      page,
		Annotation: &builder.ColumnAnnotation{
			Base:  builder.Base{ID: id, X: 10, Y: 20, Width: 160, Height: 40, Color: "#2F80ED"},
			Type:  builder.KindColumn,
			Value: value,
		},
	}
}

func signatureChange(changeType builder.ChangeType, projectID, id string, page int, status builder.SignatureStatus) builder.Change {
	return builder.Change{
		Type:      changeType,
		ProjectID: projectID,
		Page:      page,
		Annotation: &builder.SignatureAnnotation{
			Base:   builder.Base{ID: id, Width: 180, Height: 80},
			Type:   builder.KindSignature,
			Email:  "signer@example.com",
			Status: status,
		},
	}
}

func TestSaveChangesUpsertsAnnotations(t *testing.T) {
	db := openTestDatabase(t)
	seedProject(t, db, "project-1")
	writer := newTestWriter(t, db)

	batch := []changelog.Event{
		columnChange(builder.ChangeColumnAdd, "project-1", "col-1", 1, "Name"),
	}
	if err := writer.SaveChanges(context.Background(), batch); err != nil {
		t.Fatalf("save add: %v", err)
	}

	// The update rewrites the same row.
	batch = []changelog.Event{
		columnChange(builder.ChangeColumnUpdate, "project-1", "col-1", 1, "Full Name"),
	}
	if err := writer.SaveChanges(context.Background(), batch); err != nil {
		t.Fatalf("save update: %v", err)
	}

	var records []AnnotationRecord
	if err := db.Find(&records).Error; err != nil {
		t.Fatalf("list annotations: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(records))
	}
	annotation, err := DecodeAnnotation(records[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if annotation.(*builder.ColumnAnnotation).Value != "Full Name" {
		t.Fatalf("update did not rewrite the payload: %+v", annotation)
	}

	var audits []ChangeAudit
	if err := db.Order("change_id ASC").Find(&audits).Error; err != nil {
		t.Fatalf("list audits: %v", err)
	}
	if len(audits) != 2 {
		t.Fatalf("expected one audit row per event, got %d", len(audits))
	}
	if audits[0].ChangeType != string(builder.ChangeColumnAdd) || audits[0].AnnotationID != "col-1" {
		t.Fatalf("unexpected audit row: %+v", audits[0])
	}
}

func TestSaveChangesRemovesAnnotation(t *testing.T) {
	db := openTestDatabase(t)
	seedProject(t, db, "project-1")
	writer := newTestWriter(t, db)

	add := []changelog.Event{columnChange(builder.ChangeColumnAdd, "project-1", "col-1", 1, "Name")}
	if err := writer.SaveChanges(context.Background(), add); err != nil {
		t.Fatalf("save add: %v", err)
	}

	remove := []changelog.Event{builder.Change{
		Type:         builder.ChangeColumnRemove,
		ProjectID:    "project-1",
		AnnotationID: "col-1",
	}}
	if err := writer.SaveChanges(context.Background(), remove); err != nil {
		t.Fatalf("save remove: %v", err)
	}

	var count int64
	if err := db.Model(&AnnotationRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected annotation to be deleted, %d rows remain", count)
	}
}

func TestSaveChangesInviteTransitionsStatus(t *testing.T) {
	db := openTestDatabase(t)
	seedProject(t, db, "project-1")
	writer := newTestWriter(t, db)

	add := []changelog.Event{signatureChange(builder.ChangeSignatureAdd, "project-1", "sig-1", 1, builder.StatusNotInvited)}
	if err := writer.SaveChanges(context.Background(), add); err != nil {
		t.Fatalf("save add: %v", err)
	}

	invite := []changelog.Event{builder.Change{
		Type:         builder.ChangeSignatureInvite,
		ProjectID:    "project-1",
		AnnotationID: "sig-1",
	}}
	if err := writer.SaveChanges(context.Background(), invite); err != nil {
		t.Fatalf("save invite: %v", err)
	}

	var record AnnotationRecord
	if err := db.Where("annotation_id = ?", "sig-1").Take(&record).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	var signature builder.SignatureAnnotation
	if err := json.Unmarshal([]byte(record.PayloadJSON), &signature); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if signature.Status != builder.StatusInvited {
		t.Fatalf("status = %q, want invited", signature.Status)
	}
}

func TestSaveChangesInviteOnMissingRowIsSkipped(t *testing.T) {
	db := openTestDatabase(t)
	seedProject(t, db, "project-1")
	writer := newTestWriter(t, db)

	invite := []changelog.Event{builder.Change{
		Type:         builder.ChangeSignatureInvite,
		ProjectID:    "project-1",
		AnnotationID: "ghost",
	}}
	if err := writer.SaveChanges(context.Background(), invite); err != nil {
		t.Fatalf("invite on missing row should not fail the batch: %v", err)
	}
}

func TestSaveChangesSettingsAndTable(t *testing.T) {
	db := openTestDatabase(t)
	seedProject(t, db, "project-1")
	writer := newTestWriter(t, db)

	settings := builder.Settings{Name: "Diplomas", FileNameColumn: "Name"}
	table := builder.Table{Columns: []builder.Column{{Title: "Name"}}, Rows: [][]string{{"Ada"}}}
	batch := []changelog.Event{
		builder.Change{Type: builder.ChangeSettingsUpdate, ProjectID: "project-1", Settings: &settings},
		builder.Change{Type: builder.ChangeTableUpdate, ProjectID: "project-1", Table: &table},
	}
	if err := writer.SaveChanges(context.Background(), batch); err != nil {
		t.Fatalf("save: %v", err)
	}

	var record ProjectRecord
	if err := db.Where("project_id = ?", "project-1").Take(&record).Error; err != nil {
		t.Fatalf("load project: %v", err)
	}

	var storedSettings builder.Settings
	if err := json.Unmarshal([]byte(record.SettingsJSON), &storedSettings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if storedSettings.Name != "Diplomas" {
		t.Fatalf("settings not persisted: %+v", storedSettings)
	}

	var storedTable builder.Table
	if err := json.Unmarshal([]byte(record.TableJSON), &storedTable); err != nil {
		t.Fatalf("decode table: %v", err)
	}
	if len(storedTable.Columns) != 1 || storedTable.Columns[0].Title != "Name" {
		t.Fatalf("table not persisted: %+v", storedTable)
	}
}

func TestSaveChangesRejectsUnknownEvent(t *testing.T) {
	db := openTestDatabase(t)
	writer := newTestWriter(t, db)

	type foreignEvent struct{ changelog.Event }
	err := writer.SaveChanges(context.Background(), []changelog.Event{foreignEvent{}})
	var writerErr *WriterError
	if !errors.As(err, &writerErr) {
		t.Fatalf("expected WriterError, got %v", err)
	}
}

func TestSaveChangesEmptyBatchIsNoOp(t *testing.T) {
	db := openTestDatabase(t)
	writer := newTestWriter(t, db)
	if err := writer.SaveChanges(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
