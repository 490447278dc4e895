package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carelink/agency/internal/platform/db"
)

// -- Document Repository --

type documentRepoPG struct {
	db *db.UserDB
}

func NewRepoPG(userDB *db.UserDB) Repository {
	return &documentRepoPG{db: userDB}
}

const documentColumns = `id, tenant_id, chart_id, file_name, mime_type, size_bytes, storage_path, url,
	ocr_status, uploaded_by, created_at`

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO documents (
			id, tenant_id, chart_id, file_name, mime_type, size_bytes, storage_path, url, ocr_status, uploaded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		d.ID, d.TenantID, d.ChartID, d.FileName, d.MimeType, d.SizeBytes, d.StoragePath, d.URL,
		ocrParam(d.OCRStatus), d.UploadedBy,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func ocrParam(s *OCRStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func (r *documentRepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	return scanDocument(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *documentRepoPG) List(ctx context.Context, tenantID uuid.UUID, f ListFilter, limit, offset int) ([]*Document, int, error) {
	q := db.NewQuery("documents", documentColumns, "tenant_id", tenantID)
	switch {
	case f.ChartID != nil:
		q.Add("chart_id = $?", *f.ChartID)
	case f.Unassigned:
		q.AddRaw("chart_id IS NULL")
	}
	q.OrderBy("created_at DESC, id")

	var total int
	if err := r.db.Conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	rows, err := r.db.Conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

func (r *documentRepoPG) SetChart(ctx context.Context, tenantID, id uuid.UUID, chartID *uuid.UUID) (*Document, error) {
	return scanDocument(r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE documents SET chart_id = $3
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+documentColumns, tenantID, id, chartID))
}

func (r *documentRepoPG) SetOCRStatus(ctx context.Context, tenantID, id uuid.UUID, status OCRStatus) (*Document, error) {
	return scanDocument(r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE documents SET ocr_status = $3
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+documentColumns, tenantID, id, string(status)))
}

func (r *documentRepoPG) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM documents WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var ocr *string
	err := row.Scan(&d.ID, &d.TenantID, &d.ChartID, &d.FileName, &d.MimeType, &d.SizeBytes,
		&d.StoragePath, &d.URL, &ocr, &d.UploadedBy, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if ocr != nil {
		s := OCRStatus(*ocr)
		d.OCRStatus = &s
	}
	return &d, nil
}

// -- Orphan Repository --

type orphanRepoPG struct {
	db *db.UserDB
}

func NewOrphanRepoPG(userDB *db.UserDB) OrphanRepository {
	return &orphanRepoPG{db: userDB}
}

func (r *orphanRepoPG) Record(ctx context.Context, o *Orphan) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO storage_orphans (id, tenant_id, document_id, storage_path, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		o.ID, o.TenantID, o.DocumentID, o.StoragePath, o.Error,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("record storage orphan: %w", err)
	}
	return nil
}

func (r *orphanRepoPG) List(ctx context.Context, limit int) ([]*Orphan, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT id, tenant_id, document_id, storage_path, error, created_at
		FROM storage_orphans ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list storage orphans: %w", err)
	}
	defer rows.Close()

	var out []*Orphan
	for rows.Next() {
		var o Orphan
		if err := rows.Scan(&o.ID, &o.TenantID, &o.DocumentID, &o.StoragePath, &o.Error, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan storage orphan: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (r *orphanRepoPG) Resolve(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM storage_orphans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resolve storage orphan %s: %w", id, err)
	}
	return nil
}
