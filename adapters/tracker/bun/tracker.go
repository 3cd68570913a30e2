package trackerbun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tracker stores certificate export records in a Bun-backed database.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

var _ certificate.Tracker = (*Tracker)(nil)

// NewTracker creates a Bun-backed tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: uuid.NewString}
}

// CreateSchema creates the export records table when missing.
func (t *Tracker) CreateSchema(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return certificate.NewError(certificate.KindNotImpl, "tracker database not configured", nil)
	}
	_, err := t.DB.NewCreateTable().Model((*recordModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Start inserts a running export record.
func (t *Tracker) Start(ctx context.Context, record certificate.ExportRecord) (string, error) {
	if t == nil || t.DB == nil {
		return "", certificate.NewError(certificate.KindNotImpl, "tracker database not configured", nil)
	}
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = certificate.StateRunning
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}

	model, err := modelFromRecord(record)
	if err != nil {
		return "", err
	}
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Complete marks the export as completed with its outcome.
func (t *Tracker) Complete(ctx context.Context, id string, outcome certificate.ExportOutcome) error {
	if err := t.guard(id); err != nil {
		return err
	}
	meta, err := json.Marshal(outcome.Artifact.Meta)
	if err != nil {
		return err
	}

	query := t.DB.NewUpdate().Model((*recordModel)(nil)).
		Set("state = ?", certificate.StateCompleted).
		Set("bytes = ?", outcome.Bytes).
		Set("qr_replaced = ?", outcome.QRReplaced).
		Set("qr_failed = ?", outcome.QRFailed).
		Set("artifact_key = ?", outcome.Artifact.Key).
		Set("artifact_meta = ?", meta).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id)
	return t.exec(ctx, query, id)
}

// Fail marks the export as failed and keeps the error message.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	if err := t.guard(id); err != nil {
		return err
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	query := t.DB.NewUpdate().Model((*recordModel)(nil)).
		Set("state = ?", certificate.StateFailed).
		Set("error = ?", message).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id)
	return t.exec(ctx, query, id)
}

// Status returns a record by ID.
func (t *Tracker) Status(ctx context.Context, id string) (certificate.ExportRecord, error) {
	if err := t.guard(id); err != nil {
		return certificate.ExportRecord{}, err
	}

	model := new(recordModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certificate.ExportRecord{}, notFound(id)
		}
		return certificate.ExportRecord{}, err
	}
	return model.toRecord()
}

// List returns records matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter certificate.RecordFilter) ([]certificate.ExportRecord, error) {
	if t == nil || t.DB == nil {
		return nil, certificate.NewError(certificate.KindNotImpl, "tracker database not configured", nil)
	}

	models := make([]recordModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.DocumentID != "" {
		query = query.Where("document_id = ?", filter.DocumentID)
	}
	if filter.CertificateID != "" {
		query = query.Where("certificate_id = ?", filter.CertificateID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC")

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]certificate.ExportRecord, 0, len(models))
	for _, model := range models {
		record, err := model.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (t *Tracker) guard(id string) error {
	if t == nil || t.DB == nil {
		return certificate.NewError(certificate.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return certificate.NewError(certificate.KindValidation, "export ID is required", nil)
	}
	return nil
}

func (t *Tracker) exec(ctx context.Context, query *bun.UpdateQuery, id string) error {
	res, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

func notFound(id string) error {
	return certificate.NewError(certificate.KindNotFound, fmt.Sprintf("export %q not found", id), nil)
}

type recordModel struct {
	bun.BaseModel `bun:"table:certificate_exports,alias:ce"`

	ID            string    `bun:",pk"`
	DocumentID    string    `bun:"document_id,notnull"`
	CertificateID string    `bun:"certificate_id"`
	FileType      string    `bun:"file_type,notnull"`
	Filename      string    `bun:"filename"`
	State         string    `bun:"state,notnull"`
	ActorID       string    `bun:"actor_id"`
	ActorTenantID string    `bun:"actor_tenant_id"`
	ActorOrgID    string    `bun:"actor_org_id"`
	Bytes         int64     `bun:"bytes"`
	QRReplaced    int       `bun:"qr_replaced"`
	QRFailed      int       `bun:"qr_failed"`
	Error         string    `bun:"error"`
	ArtifactKey   string    `bun:"artifact_key"`
	ArtifactMeta  []byte    `bun:"artifact_meta"`
	CreatedAt     time.Time `bun:"created_at"`
	CompletedAt   time.Time `bun:"completed_at,nullzero"`
}

func modelFromRecord(record certificate.ExportRecord) (recordModel, error) {
	meta, err := json.Marshal(record.Artifact.Meta)
	if err != nil {
		return recordModel{}, err
	}

	return recordModel{
		ID:            record.ID,
		DocumentID:    record.DocumentID,
		CertificateID: record.CertificateID,
		FileType:      string(record.FileType),
		Filename:      record.Filename,
		State:         string(record.State),
		ActorID:       record.RequestedBy.ID,
		ActorTenantID: record.RequestedBy.TenantID,
		ActorOrgID:    record.RequestedBy.OrgID,
		Bytes:         record.Bytes,
		QRReplaced:    record.QRReplaced,
		QRFailed:      record.QRFailed,
		Error:         record.Error,
		ArtifactKey:   record.Artifact.Key,
		ArtifactMeta:  meta,
		CreatedAt:     record.CreatedAt,
		CompletedAt:   record.CompletedAt,
	}, nil
}

func (m recordModel) toRecord() (certificate.ExportRecord, error) {
	record := certificate.ExportRecord{
		ID:            m.ID,
		DocumentID:    m.DocumentID,
		CertificateID: m.CertificateID,
		FileType:      certificate.FileType(m.FileType),
		Filename:      m.Filename,
		State:         certificate.ExportState(m.State),
		RequestedBy: certificate.Actor{
			ID:       m.ActorID,
			TenantID: m.ActorTenantID,
			OrgID:    m.ActorOrgID,
		},
		Bytes:       m.Bytes,
		QRReplaced:  m.QRReplaced,
		QRFailed:    m.QRFailed,
		Error:       m.Error,
		Artifact:    certificate.ArtifactRef{Key: m.ArtifactKey},
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
	if len(m.ArtifactMeta) > 0 {
		if err := json.Unmarshal(m.ArtifactMeta, &record.Artifact.Meta); err != nil {
			return certificate.ExportRecord{}, err
		}
	}
	return record, nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return uuid.NewString()
}
