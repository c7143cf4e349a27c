package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/InkLedgerLabs/certmark/backend/internal/geometry"
	"github.com/InkLedgerLabs/certmark/backend/internal/rbac"
	"go.uber.org/zap"
)

var (
	errMissingProjectID  = errors.New("project identifier is required")
	errMissingGate       = errors.New("permission gate is required")
	errMissingChangeSink = errors.New("change sink is required")
	errMissingIDProvider = errors.New("id provider is required")

	// ErrAnnotationNotFound indicates that no annotation carries the id.
	ErrAnnotationNotFound = errors.New("builder: annotation not found")
	// ErrWrongKind indicates an id that resolves to the other annotation kind.
	ErrWrongKind = errors.New("builder: annotation has the wrong kind")
	// ErrNotInvited indicates a signing attempt on a placeholder that was
	// never invited (or was already signed).
	ErrNotInvited = errors.New("builder: signature is not in invited status")
	// ErrMissingApprover indicates that no approval collaborator is wired.
	ErrMissingApprover = errors.New("builder: signature approver is required")

	noOpLogger = zap.NewNop()
)

const (
	opStoreNew          = "builder.store.new"
	opAddColumn         = "builder.annotate_column_add"
	opAddSignature      = "builder.annotate_signature_add"
	opUpdateColumn      = "builder.annotate_column_update"
	opUpdateSignature   = "builder.annotate_signature_update"
	opRemoveColumn      = "builder.annotate_column_remove"
	opRemoveSignature   = "builder.annotate_signature_remove"
	opInviteSignature   = "builder.annotate_signature_invite"
	opSignSignature     = "builder.annotate_signature_sign"
	opApplyDragStop     = "builder.annotate_drag_stop"
	opApplyResizeStop   = "builder.annotate_resize_stop"
	opReplaceColumnName = "builder.annotate_replace_column_value"
	opRemoveOrphans     = "builder.annotate_remove_orphans"
	opUpdateSettings    = "builder.settings_update"
	opUpdateTable       = "builder.table_update"
)

// StoreError carries a dotted operation/reason code alongside the cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// PermissionGate is the pure capability check consulted before any mutation.
type PermissionGate interface {
	HasPermission(roles []rbac.Role, required []rbac.Permission) bool
}

// ChangeSink receives one change event per applied mutation.
type ChangeSink interface {
	Enqueue(change Change)
}

// Notifier surfaces a transient, user-visible notice. Denied or failed
// mutations notify instead of returning errors so the caller never sees a
// ghost edit.
type Notifier interface {
	Notify(message string)
}

// ApprovalRequest identifies the signature placeholder being countersigned.
type ApprovalRequest struct {
	ProjectID             string
	SignatureAnnotationID string
}

// SignatureApprover is the remote collaborator that durably records a
// signature approval. The approval call is itself the persistence step, so
// the signing path bypasses the change queue.
type SignatureApprover interface {
	ApproveSignature(ctx context.Context, request ApprovalRequest) error
}

// IDProvider issues unique annotation identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig wires a store instance with its collaborators. Stores are
// constructed explicitly per builder session; there is no process-wide
// singleton. Roles are not part of the configuration: sessions outlive any
// single caller, so every gated operation takes the current caller's roles.
type StoreConfig struct {
	ProjectID  string
	Gate       PermissionGate
	Changes    ChangeSink
	Approver   SignatureApprover
	Notifier   Notifier
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store owns the canonical annotation collection of one project. The map from
// page number to annotation list is the single source of truth; the per-kind
// partitions are rebuilt wholesale after every mutation and never lag behind.
type Store struct {
	mu sync.Mutex

	projectID string

	gate       PermissionGate
	changes    ChangeSink
	approver   SignatureApprover
	notifier   Notifier
	idProvider IDProvider
	logger     *zap.Logger

	byPage          map[int][]Annotation
	columnByPage    map[int][]*ColumnAnnotation
	signatureByPage map[int][]*SignatureAnnotation

	selectedID string
	revision   uint64

	settings Settings
	table    Table
}

// NewStore validates the configuration and returns an empty store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, newStoreError(opStoreNew, "missing_project_id", errMissingProjectID)
	}
	if cfg.Gate == nil {
		return nil, newStoreError(opStoreNew, "missing_gate", errMissingGate)
	}
	if cfg.Changes == nil {
		return nil, newStoreError(opStoreNew, "missing_change_sink", errMissingChangeSink)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		projectID:       cfg.ProjectID,
		gate:            cfg.Gate,
		changes:         cfg.Changes,
		approver:        cfg.Approver,
		notifier:        cfg.Notifier,
		idProvider:      cfg.IDProvider,
		logger:          logger,
		byPage:          make(map[int][]Annotation),
		columnByPage:    make(map[int][]*ColumnAnnotation),
		signatureByPage: make(map[int][]*SignatureAnnotation),
	}, nil
}

// AddColumnAnnotation creates a column annotation on the page, selects it and
// enqueues an add event. Returns nil when the add permission is denied.
func (s *Store) AddColumnAnnotation(roles []rbac.Role, page int, draft ColumnDraft) *ColumnAnnotation {
	if !s.allowed(roles, opAddColumn, rbac.PermissionAnnotateAdd) {
		return nil
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddColumn, "id_generation_failed", err)
		s.notify("adding the field failed")
		return nil
	}

	annotation := newColumnAnnotation(id, draft)

	s.mu.Lock()
	s.byPage[page] = append(s.byPage[page], annotation)
	s.selectedID = id
	s.commitLocked()
	// Clone while still holding the lock: concurrent writers mutate the
	// stored annotation in place.
	event := Change{
		Type:       ChangeColumnAdd,
		ProjectID:  s.projectID,
		Page:       page,
		Annotation: annotation.clone(),
	}
	result := annotation.clone().(*ColumnAnnotation)
	s.mu.Unlock()

	s.changes.Enqueue(event)
	return result
}

// AddSignatureAnnotation creates a signature placeholder on the page, selects
// it and enqueues an add event. Returns nil when the add permission is denied.
func (s *Store) AddSignatureAnnotation(roles []rbac.Role, page int, draft SignatureDraft) *SignatureAnnotation {
	if !s.allowed(roles, opAddSignature, rbac.PermissionAnnotateAdd) {
		return nil
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddSignature, "id_generation_failed", err)
		s.notify("adding the signature failed")
		return nil
	}

	annotation := newSignatureAnnotation(id, draft)

	s.mu.Lock()
	s.byPage[page] = append(s.byPage[page], annotation)
	s.selectedID = id
	s.commitLocked()
	event := Change{
		Type:       ChangeSignatureAdd,
		ProjectID:  s.projectID,
		Page:       page,
		Annotation: annotation.clone(),
	}
	result := annotation.clone().(*SignatureAnnotation)
	s.mu.Unlock()

	s.changes.Enqueue(event)
	return result
}

// UpdateColumnAnnotation replaces the column annotation's fields in place,
// keeping its id and page. A missing id or a signature id is a logged no-op.
func (s *Store) UpdateColumnAnnotation(roles []rbac.Role, id string, draft ColumnDraft) {
	if !s.allowed(roles, opUpdateColumn, rbac.PermissionAnnotateUpdate) {
		return
	}

	s.mu.Lock()
	found, page := s.findLocked(id)
	column, ok := found.(*ColumnAnnotation)
	if !ok {
		s.mu.Unlock()
		s.warnLookupMiss(opUpdateColumn, id, found)
		return
	}

	column.X = draft.X
	column.Y = draft.Y
	column.Width = draft.Width
	column.Height = draft.Height
	column.Color = draft.Color
	column.Value = draft.Value
	column.FontName = draft.FontName
	column.FontSize = draft.FontSize
	column.FontWeight = draft.FontWeight
	column.FontColor = draft.FontColor
	column.TextFitRectBox = draft.TextFitRectBox
	s.selectedID = id
	s.commitLocked()
	event := Change{
		Type:       ChangeColumnUpdate,
		ProjectID:  s.projectID,
		Page:       page,
		Annotation: column.clone(),
	}
	s.mu.Unlock()

	s.changes.Enqueue(event)
}

// UpdateSignatureAnnotation replaces the signature annotation's editable
// fields in place. Status and signature data are owned by the invite/sign
// flows and are never touched here.
func (s *Store) UpdateSignatureAnnotation(roles []rbac.Role, id string, draft SignatureDraft) {
	if !s.allowed(roles, opUpdateSignature, rbac.PermissionAnnotateUpdate) {
		return
	}

	s.mu.Lock()
	found, page := s.findLocked(id)
	signature, ok := found.(*SignatureAnnotation)
	if !ok {
		s.mu.Unlock()
		s.warnLookupMiss(opUpdateSignature, id, found)
		return
	}

	signature.X = draft.X
	signature.Y = draft.Y
	signature.Width = draft.Width
	signature.Height = draft.Height
	signature.Color = draft.Color
	signature.Email = draft.Email
	s.selectedID = id
	s.commitLocked()
	event := Change{
		Type:       ChangeSignatureUpdate,
		ProjectID:  s.projectID,
		Page:       page,
		Annotation: signature.clone(),
	}
	s.mu.Unlock()

	s.changes.Enqueue(event)
}

// RemoveColumnAnnotation deletes the column annotation, clears the selection
// and enqueues a remove event carrying the id only.
func (s *Store) RemoveColumnAnnotation(roles []rbac.Role, id string) {
	if !s.allowed(roles, opRemoveColumn, rbac.PermissionAnnotateRemove) {
		return
	}
	s.removeByID(opRemoveColumn, id, KindColumn, ChangeColumnRemove)
}

// RemoveSignatureAnnotation deletes the signature annotation, clears the
// selection and enqueues a remove event carrying the id only.
func (s *Store) RemoveSignatureAnnotation(roles []rbac.Role, id string) {
	if !s.allowed(roles, opRemoveSignature, rbac.PermissionAnnotateRemove) {
		return
	}
	s.removeByID(opRemoveSignature, id, KindSignature, ChangeSignatureRemove)
}

// InviteSignatureAnnotation marks the placeholder as invited and enqueues an
// invite event. The current status is deliberately not checked first: the
// observed product behavior allows re-invites, including of already-signed
// placeholders.
func (s *Store) InviteSignatureAnnotation(roles []rbac.Role, id string) {
	if !s.allowed(roles, opInviteSignature, rbac.PermissionAnnotateInvite) {
		return
	}

	s.mu.Lock()
	found, _ := s.findLocked(id)
	signature, ok := found.(*SignatureAnnotation)
	if !ok {
		s.mu.Unlock()
		s.warnLookupMiss(opInviteSignature, id, found)
		return
	}

	signature.Status = StatusInvited
	s.commitLocked()
	s.mu.Unlock()

	s.changes.Enqueue(Change{
		Type:         ChangeSignatureInvite,
		ProjectID:    s.projectID,
		AnnotationID: id,
	})
}

// SignSignatureAnnotation records the signer's approval. Permission checking
// is deferred to the approval collaborator; locally the target must exist, be
// a signature and be in invited status, otherwise a typed error is returned
// before any remote call. Only a successful remote response transitions the
// status to signed. The change queue is bypassed: the approval call is the
// persistence step.
func (s *Store) SignSignatureAnnotation(ctx context.Context, id string) error {
	s.mu.Lock()
	found, _ := s.findLocked(id)
	if found == nil {
		s.mu.Unlock()
		return newStoreError(opSignSignature, "not_found", ErrAnnotationNotFound)
	}
	signature, ok := found.(*SignatureAnnotation)
	if !ok {
		s.mu.Unlock()
		return newStoreError(opSignSignature, "wrong_kind", ErrWrongKind)
	}
	if signature.Status != StatusInvited {
		s.mu.Unlock()
		return newStoreError(opSignSignature, "not_invited", ErrNotInvited)
	}
	s.mu.Unlock()

	if s.approver == nil {
		return newStoreError(opSignSignature, "missing_approver", ErrMissingApprover)
	}

	request := ApprovalRequest{ProjectID: s.projectID, SignatureAnnotationID: id}
	if err := s.approver.ApproveSignature(ctx, request); err != nil {
		s.logError(opSignSignature, "approval_failed", err, zap.String("annotation_id", id))
		return newStoreError(opSignSignature, "approval_failed", err)
	}

	s.mu.Lock()
	// The annotation may have been removed while the approval was in flight.
	found, _ = s.findLocked(id)
	if signature, ok := found.(*SignatureAnnotation); ok {
		signature.Status = StatusSigned
		s.selectedID = id
		s.commitLocked()
	}
	s.mu.Unlock()
	return nil
}

// ApplyDragStop applies the final pixel position of a completed drag gesture
// and enqueues an update event matching the annotation's kind.
func (s *Store) ApplyDragStop(roles []rbac.Role, id string, rect geometry.Rect) {
	if !s.allowed(roles, opApplyDragStop, rbac.PermissionAnnotateUpdate) {
		return
	}
	s.applyGesture(opApplyDragStop, id, rect, false)
}

// ApplyResizeStop applies the final pixel rectangle of a completed resize
// gesture and enqueues an update event matching the annotation's kind.
func (s *Store) ApplyResizeStop(roles []rbac.Role, id string, rect geometry.Rect) {
	if !s.allowed(roles, opApplyResizeStop, rbac.PermissionAnnotateUpdate) {
		return
	}
	s.applyGesture(opApplyResizeStop, id, rect, true)
}

// ReplaceAnnotationsColumnValue rewrites every column annotation bound to the
// old title so it follows an external column rename, enqueuing one update
// event per rewritten annotation.
func (s *Store) ReplaceAnnotationsColumnValue(roles []rbac.Role, oldTitle, newTitle string) {
	if !s.allowed(roles, opReplaceColumnName, rbac.PermissionAnnotateUpdate) {
		return
	}

	s.mu.Lock()
	events := make([]Change, 0)
	for page, columns := range s.columnByPage {
		for _, column := range columns {
			if column.Value != oldTitle {
				continue
			}
			column.Value = newTitle
			events = append(events, Change{
				Type:       ChangeColumnUpdate,
				ProjectID:  s.projectID,
				Page:       page,
				Annotation: column.clone(),
			})
		}
	}
	if len(events) > 0 {
		s.commitLocked()
	}
	s.mu.Unlock()

	for _, event := range events {
		s.changes.Enqueue(event)
	}
}

// RemoveUnnecessaryAnnotations deletes every column annotation whose bound
// title is no longer present in the supplied list, enqueuing one remove event
// per deletion. Signature annotations are never affected.
func (s *Store) RemoveUnnecessaryAnnotations(roles []rbac.Role, columnTitles []string) {
	if !s.allowed(roles, opRemoveOrphans, rbac.PermissionAnnotateRemove) {
		return
	}

	keep := make(map[string]struct{}, len(columnTitles))
	for _, title := range columnTitles {
		keep[title] = struct{}{}
	}

	s.mu.Lock()
	events := make([]Change, 0)
	for page, annotations := range s.byPage {
		kept := annotations[:0]
		for _, annotation := range annotations {
			column, isColumn := annotation.(*ColumnAnnotation)
			if !isColumn {
				kept = append(kept, annotation)
				continue
			}
			if _, ok := keep[column.Value]; ok {
				kept = append(kept, annotation)
				continue
			}
			if s.selectedID == column.ID {
				s.selectedID = ""
			}
			events = append(events, Change{
				Type:         ChangeColumnRemove,
				ProjectID:    s.projectID,
				AnnotationID: column.ID,
			})
		}
		s.byPage[page] = kept
	}
	if len(events) > 0 {
		s.commitLocked()
	}
	s.mu.Unlock()

	for _, event := range events {
		s.changes.Enqueue(event)
	}
}

// UpdateSettings replaces the project settings and enqueues a settings event.
func (s *Store) UpdateSettings(roles []rbac.Role, settings Settings) {
	if !s.allowed(roles, opUpdateSettings, rbac.PermissionSettingsUpdate) {
		return
	}

	s.mu.Lock()
	s.settings = settings
	s.commitLocked()
	s.mu.Unlock()

	s.changes.Enqueue(Change{
		Type:      ChangeSettingsUpdate,
		ProjectID: s.projectID,
		Settings:  &settings,
	})
}

// UpdateTable replaces the imported table and enqueues a table event. Rename
// propagation and orphan cleanup are separate passes driven by the caller,
// which knows how the old and new column sets relate.
func (s *Store) UpdateTable(roles []rbac.Role, table Table) {
	if !s.allowed(roles, opUpdateTable, rbac.PermissionTableUpdate) {
		return
	}

	s.mu.Lock()
	s.table = table
	s.commitLocked()
	s.mu.Unlock()

	s.changes.Enqueue(Change{
		Type:      ChangeTableUpdate,
		ProjectID: s.projectID,
		Table:     &table,
	})
}

// SeedAnnotations replaces the canonical state without permission checks and
// without producing change events. Used once when a builder session is
// rebuilt from persisted rows.
func (s *Store) SeedAnnotations(byPage map[int][]Annotation) {
	s.mu.Lock()
	s.byPage = make(map[int][]Annotation, len(byPage))
	for page, annotations := range byPage {
		list := make([]Annotation, 0, len(annotations))
		for _, annotation := range annotations {
			list = append(list, annotation.clone())
		}
		s.byPage[page] = list
	}
	s.selectedID = ""
	s.commitLocked()
	s.mu.Unlock()
}

// Select marks the annotation as selected. Re-selecting the current id is a
// no-op so readers see no redundant revision bump.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if s.selectedID != id {
		s.selectedID = id
		s.revision++
	}
	s.mu.Unlock()
}

// SelectedAnnotationID returns the currently selected annotation id, empty
// when nothing is selected.
func (s *Store) SelectedAnnotationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Revision increments on every observable state change.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Settings returns the current project settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Table returns the current imported table.
func (s *Store) Table() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// AnnotationsByPage returns a cloned snapshot of the source map.
func (s *Store) AnnotationsByPage() map[int][]Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[int][]Annotation, len(s.byPage))
	for page, annotations := range s.byPage {
		list := make([]Annotation, 0, len(annotations))
		for _, annotation := range annotations {
			list = append(list, annotation.clone())
		}
		snapshot[page] = list
	}
	return snapshot
}

// ColumnAnnotationsByPage returns a cloned snapshot of the derived column
// partition.
func (s *Store) ColumnAnnotationsByPage() map[int][]*ColumnAnnotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[int][]*ColumnAnnotation, len(s.columnByPage))
	for page, columns := range s.columnByPage {
		list := make([]*ColumnAnnotation, 0, len(columns))
		for _, column := range columns {
			list = append(list, column.clone().(*ColumnAnnotation))
		}
		snapshot[page] = list
	}
	return snapshot
}

// SignatureAnnotationsByPage returns a cloned snapshot of the derived
// signature partition.
func (s *Store) SignatureAnnotationsByPage() map[int][]*SignatureAnnotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[int][]*SignatureAnnotation, len(s.signatureByPage))
	for page, signatures := range s.signatureByPage {
		list := make([]*SignatureAnnotation, 0, len(signatures))
		for _, signature := range signatures {
			list = append(list, signature.clone().(*SignatureAnnotation))
		}
		snapshot[page] = list
	}
	return snapshot
}

// FindAnnotation returns a clone of the annotation and its page.
func (s *Store) FindAnnotation(id string) (Annotation, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found, page := s.findLocked(id)
	if found == nil {
		return nil, 0, false
	}
	return found.clone(), page, true
}

func (s *Store) applyGesture(operation, id string, rect geometry.Rect, resize bool) {
	s.mu.Lock()
	found, page := s.findLocked(id)
	if found == nil {
		s.mu.Unlock()
		s.warnLookupMiss(operation, id, nil)
		return
	}

	switch annotation := found.(type) {
	case *ColumnAnnotation:
		if resize {
			annotation.setBounds(rect)
		} else {
			annotation.setPosition(rect)
		}
		s.selectedID = id
		s.commitLocked()
		event := Change{
			Type:       ChangeColumnUpdate,
			ProjectID:  s.projectID,
			Page:       page,
			Annotation: annotation.clone(),
		}
		s.mu.Unlock()
		s.changes.Enqueue(event)
	case *SignatureAnnotation:
		if resize {
			annotation.setBounds(rect)
		} else {
			annotation.setPosition(rect)
		}
		s.selectedID = id
		s.commitLocked()
		event := Change{
			Type:       ChangeSignatureUpdate,
			ProjectID:  s.projectID,
			Page:       page,
			Annotation: annotation.clone(),
		}
		s.mu.Unlock()
		s.changes.Enqueue(event)
	default:
		s.mu.Unlock()
	}
}

func (s *Store) removeByID(operation, id string, kind Kind, changeType ChangeType) {
	s.mu.Lock()
	found, page := s.findLocked(id)
	if found == nil || found.Kind() != kind {
		s.mu.Unlock()
		s.warnLookupMiss(operation, id, found)
		return
	}

	annotations := s.byPage[page]
	kept := make([]Annotation, 0, len(annotations)-1)
	for _, annotation := range annotations {
		if annotation.AnnotationID() != id {
			kept = append(kept, annotation)
		}
	}
	s.byPage[page] = kept
	s.selectedID = ""
	s.commitLocked()
	s.mu.Unlock()

	s.changes.Enqueue(Change{
		Type:         changeType,
		ProjectID:    s.projectID,
		AnnotationID: id,
	})
}

// findLocked scans every page for the id. Per-project annotation counts are
// small, so the linear scan stays well below anything worth indexing.
func (s *Store) findLocked(id string) (Annotation, int) {
	for page, annotations := range s.byPage {
		for _, annotation := range annotations {
			if annotation.AnnotationID() == id {
				return annotation, page
			}
		}
	}
	return nil, 0
}

// commitLocked rebuilds the derived per-kind partitions from the source map
// and bumps the revision. Rebuilding wholesale keeps the partitions provably
// consistent with the source before any reader can observe the mutation.
func (s *Store) commitLocked() {
	columnByPage := make(map[int][]*ColumnAnnotation, len(s.byPage))
	signatureByPage := make(map[int][]*SignatureAnnotation, len(s.byPage))
	for page, annotations := range s.byPage {
		for _, annotation := range annotations {
			switch typed := annotation.(type) {
			case *ColumnAnnotation:
				columnByPage[page] = append(columnByPage[page], typed)
			case *SignatureAnnotation:
				signatureByPage[page] = append(signatureByPage[page], typed)
			}
		}
	}
	s.columnByPage = columnByPage
	s.signatureByPage = signatureByPage
	s.revision++
}

// allowed checks the caller's roles for every mutation. Roles travel with the
// request rather than the session, so two callers sharing a builder session
// each act under their own token.
func (s *Store) allowed(roles []rbac.Role, operation string, required ...rbac.Permission) bool {
	if s.gate.HasPermission(roles, required) {
		return true
	}
	s.logger.Warn("permission denied",
		zap.String("operation", operation),
		zap.String("project_id", s.projectID))
	s.notify("you do not have permission for this action")
	return false
}

func (s *Store) warnLookupMiss(operation, id string, found Annotation) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("annotation_id", id),
	}
	if found != nil {
		fields = append(fields, zap.String("actual_kind", string(found.Kind())))
	}
	s.logger.Warn("annotation lookup miss", fields...)
}

func (s *Store) notify(message string) {
	if s.notifier != nil {
		s.notifier.Notify(message)
	}
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("project_id", s.projectID),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("builder store error", attrs...)
}
