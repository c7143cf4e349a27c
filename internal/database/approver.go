package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const opApprove = "database.approve_signature"

var (
	// ErrApprovalNotFound indicates that the signature row does not exist.
	ErrApprovalNotFound = errors.New("database: signature annotation not found")
	// ErrApprovalWrongKind indicates the id resolves to a column annotation.
	ErrApprovalWrongKind = errors.New("database: annotation is not a signature")
	// ErrApprovalNotInvited indicates the stored status does not allow signing.
	ErrApprovalNotInvited = errors.New("database: signature is not in invited status")
)

// ApproverConfig wires the signature approval collaborator.
type ApproverConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider builder.IDProvider
	Logger     *zap.Logger
}

// Approver records signature approvals directly against storage. It is the
// remote persistence step of the signing flow, so it revalidates the stored
// status rather than trusting the caller.
type Approver struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider builder.IDProvider
	logger     *zap.Logger
}

// NewApprover validates the configuration and returns an approver.
func NewApprover(cfg ApproverConfig) (*Approver, error) {
	if cfg.Database == nil {
		return nil, newWriterError(opApprove, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newWriterError(opApprove, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Approver{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// ApproveSignature implements builder.SignatureApprover.
func (a *Approver) ApproveSignature(ctx context.Context, request builder.ApprovalRequest) error {
	appliedAt := a.clock().UTC().Unix()

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record AnnotationRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("annotation_id = ? AND project_id = ?", request.SignatureAnnotationID, request.ProjectID).
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newWriterError(opApprove, "not_found", ErrApprovalNotFound)
		}
		if err != nil {
			return newWriterError(opApprove, "query_failed", err)
		}
		if record.Kind != string(builder.KindSignature) {
			return newWriterError(opApprove, "wrong_kind", ErrApprovalWrongKind)
		}

		var signature builder.SignatureAnnotation
		if err := json.Unmarshal([]byte(record.PayloadJSON), &signature); err != nil {
			return newWriterError(opApprove, "annotation_decode_failed", err)
		}
		if signature.Status != builder.StatusInvited {
			return newWriterError(opApprove, "not_invited", ErrApprovalNotInvited)
		}

		signature.Status = builder.StatusSigned
		payload, err := json.Marshal(&signature)
		if err != nil {
			return newWriterError(opApprove, "annotation_encode_failed", err)
		}
		record.PayloadJSON = string(payload)
		record.UpdatedAtSeconds = appliedAt
		if err := tx.Save(&record).Error; err != nil {
			return newWriterError(opApprove, "save_failed", err)
		}

		changeID, err := a.idProvider.NewID()
		if err != nil {
			return newWriterError(opApprove, "id_generation_failed", err)
		}
		return tx.Create(&ChangeAudit{
			ChangeID:         changeID,
			ProjectID:        request.ProjectID,
			ChangeType:       string(builder.ChangeSignatureApprove),
			AnnotationID:     request.SignatureAnnotationID,
			PayloadJSON:      record.PayloadJSON,
			AppliedAtSeconds: appliedAt,
		}).Error
	})
}
