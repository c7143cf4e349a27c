package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
	"github.com/InkLedgerLabs/certmark/backend/internal/changelog"
)

func newTestProjects(t *testing.T) (*Projects, *ChangeWriter) {
	t.Helper()
	db := openTestDatabase(t)
	projects, err := NewProjects(db, fixedClock(time.Unix(1780000000, 0)), nil)
	if err != nil {
		t.Fatalf("new projects: %v", err)
	}
	return projects, newTestWriter(t, db)
}

func TestProjectCreateAndGet(t *testing.T) {
	projects, _ := newTestProjects(t)
	ctx := context.Background()

	if err := projects.Create(ctx, "project-1", "Spring Diplomas"); err != nil {
		t.Fatalf("create: %v", err)
	}

	record, err := projects.Get(ctx, "project-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Name != "Spring Diplomas" {
		t.Fatalf("name = %q", record.Name)
	}
	if record.UpdatedAtSeconds != 1780000000 {
		t.Fatalf("updated at = %d", record.UpdatedAtSeconds)
	}

	_, err = projects.Get(ctx, "missing")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestProjectSetTemplate(t *testing.T) {
	projects, _ := newTestProjects(t)
	ctx := context.Background()

	if err := projects.Create(ctx, "project-1", "Diplomas"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := projects.SetTemplate(ctx, "project-1", "templates/project-1.pdf", 3); err != nil {
		t.Fatalf("set template: %v", err)
	}

	record, err := projects.Get(ctx, "project-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.TemplatePath != "templates/project-1.pdf" || record.TemplatePages != 3 {
		t.Fatalf("template not recorded: %+v", record)
	}

	err = projects.SetTemplate(ctx, "missing", "x.pdf", 1)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestListAnnotationsOrderedByPage(t *testing.T) {
	projects, writer := newTestProjects(t)
	ctx := context.Background()

	if err := projects.Create(ctx, "project-1", "Diplomas"); err != nil {
		t.Fatalf("create: %v", err)
	}
	batch := []changelog.Event{
		columnChange(builder.ChangeColumnAdd, "project-1", "col-p3", 3, "Name"),
		columnChange(builder.ChangeColumnAdd, "project-1", "col-p1", 1, "Email"),
		signatureChange(builder.ChangeSignatureAdd, "project-1", "sig-p2", 2, builder.StatusNotInvited),
	}
	if err := writer.SaveChanges(ctx, batch); err != nil {
		t.Fatalf("seed annotations: %v", err)
	}

	records, err := projects.ListAnnotations(ctx, "project-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(records))
	}
	if records[0].Page != 1 || records[1].Page != 2 || records[2].Page != 3 {
		t.Fatalf("rows not ordered by page: %+v", records)
	}

	byPage, err := DecodeAnnotationsByPage(records)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(byPage[1]) != 1 || len(byPage[2]) != 1 || len(byPage[3]) != 1 {
		t.Fatalf("unexpected grouping: %v", byPage)
	}
	if byPage[2][0].Kind() != builder.KindSignature {
		t.Fatalf("page 2 should hold the signature")
	}
}

func TestDecodeAnnotationRejectsUnknownKind(t *testing.T) {
	_, err := DecodeAnnotation(AnnotationRecord{AnnotationID: "x", Kind: "banner", PayloadJSON: "{}"})
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
