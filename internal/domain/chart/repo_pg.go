package chart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carelink/agency/internal/platform/db"
)

type chartRepoPG struct {
	db *db.UserDB
}

func NewRepoPG(userDB *db.UserDB) Repository {
	return &chartRepoPG{db: userDB}
}

const chartColumns = `id, tenant_id, patient_id, status, source, awaiting_clinician_review,
	created_by, created_at, updated_at`

func (r *chartRepoPG) Create(ctx context.Context, c *Chart) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO charts (id, tenant_id, patient_id, status, source, awaiting_clinician_review, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		c.ID, c.TenantID, c.PatientID, string(c.Status), string(c.Source), c.AwaitingClinicianReview, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert chart: %w", err)
	}
	return nil
}

func (r *chartRepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Chart, error) {
	var c Chart
	var status, source string
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+chartColumns+` FROM charts WHERE tenant_id = $1 AND id = $2`, tenantID, id,
	).Scan(&c.ID, &c.TenantID, &c.PatientID, &status, &source, &c.AwaitingClinicianReview,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chart %s: %w", id, err)
	}
	c.Status = Status(status)
	c.Source = Source(source)
	return &c, nil
}

// List aggregates medication and document counts per chart in the same
// statement through lateral subqueries.
func (r *chartRepoPG) List(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*Summary, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT c.id, c.tenant_id, c.patient_id, c.status, c.source, c.awaiting_clinician_review,
			c.created_by, c.created_at, c.updated_at,
			p.first_name || ' ' || p.last_name,
			p.assigned_clinician_id, u.full_name,
			m.n, d.n
		FROM charts c
		JOIN patients p ON p.id = c.patient_id AND p.tenant_id = c.tenant_id
		LEFT JOIN users u ON u.id = p.assigned_clinician_id AND u.tenant_id = c.tenant_id
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS n FROM medications WHERE chart_id = c.id
		) m ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS n FROM documents WHERE chart_id = c.id AND tenant_id = c.tenant_id
		) d ON TRUE
		WHERE c.tenant_id = $1 AND ($2 OR c.status <> 'archived')
		ORDER BY c.created_at, c.id`, tenantID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		var s Summary
		var status, source string
		if err := rows.Scan(&s.ID, &s.TenantID, &s.PatientID, &status, &source, &s.AwaitingClinicianReview,
			&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
			&s.PatientName, &s.ClinicianID, &s.ClinicianName,
			&s.MedicationCount, &s.DocumentCount); err != nil {
			return nil, fmt.Errorf("scan chart summary: %w", err)
		}
		s.Status = Status(status)
		s.Source = Source(source)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *chartRepoPG) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status, awaiting *bool) (bool, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE charts SET
			status = $4,
			awaiting_clinician_review = COALESCE($5, awaiting_clinician_review),
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`,
		tenantID, id, string(from), string(to), awaiting)
	if err != nil {
		return false, fmt.Errorf("update chart status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *chartRepoPG) InsertTransition(ctx context.Context, t *Transition) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO chart_transitions (id, tenant_id, chart_id, action, from_status, to_status, reason, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		t.ID, t.TenantID, t.ChartID, string(t.Action), string(t.From), string(t.To), t.Reason, t.ActorID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chart transition: %w", err)
	}
	return nil
}

func (r *chartRepoPG) ListTransitions(ctx context.Context, tenantID, chartID uuid.UUID) ([]*Transition, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT id, tenant_id, chart_id, action, from_status, to_status, reason, actor_id, created_at
		FROM chart_transitions
		WHERE tenant_id = $1 AND chart_id = $2
		ORDER BY created_at DESC, id`, tenantID, chartID)
	if err != nil {
		return nil, fmt.Errorf("list chart transitions: %w", err)
	}
	defer rows.Close()

	var out []*Transition
	for rows.Next() {
		var t Transition
		var action, from, to string
		if err := rows.Scan(&t.ID, &t.TenantID, &t.ChartID, &action, &from, &to,
			&t.Reason, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chart transition: %w", err)
		}
		t.Action = Action(action)
		t.From = Status(from)
		t.To = Status(to)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *chartRepoPG) Reassign(ctx context.Context, tenantID, chartID, clinicianID uuid.UUID) (uuid.UUID, error) {
	var patientID uuid.UUID
	err := r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE charts SET awaiting_clinician_review = TRUE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status NOT IN ('delivered_locked', 'archived')
		RETURNING patient_id`, tenantID, chartID,
	).Scan(&patientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrConflict
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("flag chart for review: %w", err)
	}

	_, err = r.db.Conn(ctx).Exec(ctx, `
		UPDATE patients SET assigned_clinician_id = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`, tenantID, patientID, clinicianID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("assign clinician: %w", err)
	}
	return patientID, nil
}

// AddMedication inserts only while the chart is unlocked; a locked or
// missing chart yields ErrChartLocked.
func (r *chartRepoPG) AddMedication(ctx context.Context, m *Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, tenant_id, chart_id, name, dosage, confidence)
		SELECT $1, c.tenant_id, c.id, $4, $5, $6
		FROM charts c
		WHERE c.tenant_id = $2 AND c.id = $3 AND c.status NOT IN ('delivered_locked', 'archived')
		RETURNING created_at`,
		m.ID, m.TenantID, m.ChartID, m.Name, m.Dosage, m.Confidence,
	).Scan(&m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrChartLocked
	}
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

func (r *chartRepoPG) ListMedications(ctx context.Context, tenantID, chartID uuid.UUID) ([]*Medication, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT id, tenant_id, chart_id, name, dosage, confidence::float8, created_at
		FROM medications
		WHERE tenant_id = $1 AND chart_id = $2
		ORDER BY created_at, id`, tenantID, chartID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	var out []*Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ChartID, &m.Name, &m.Dosage, &m.Confidence, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
