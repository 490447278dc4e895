package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carelink/agency/internal/platform/db"
)

type patientRepoPG struct {
	db *db.UserDB
}

func NewRepoPG(userDB *db.UserDB) Repository {
	return &patientRepoPG{db: userDB}
}

const patientColumns = `id, tenant_id, first_name, last_name, date_of_birth, address, phone, email,
	assigned_clinician_id, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, tenant_id, first_name, last_name, date_of_birth, address, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.FirstName, p.LastName, p.DateOfBirth, p.Address, p.Phone, p.Email,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// Update writes demographics only. Concurrent updates are last-write-wins.
func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			first_name = $3, last_name = $4, date_of_birth = $5,
			address = $6, phone = $7, email = $8, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING assigned_clinician_id, created_at, updated_at`,
		p.TenantID, p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Address, p.Phone, p.Email,
	).Scan(&p.AssignedClinicianID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient %s: %w", p.ID, err)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, tenantID uuid.UUID, name string, limit, offset int) ([]*Patient, int, error) {
	q := db.NewQuery("patients", patientColumns, "tenant_id", tenantID)
	if name = strings.TrimSpace(name); name != "" {
		pattern := "%" + escapeLike(name) + "%"
		q.Add("(first_name ILIKE $? OR last_name ILIKE $?)", pattern, pattern)
	}
	q.OrderBy("last_name, first_name, id")

	var total int
	if err := r.db.Conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.db.Conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.TenantID, &p.FirstName, &p.LastName, &p.DateOfBirth,
		&p.Address, &p.Phone, &p.Email, &p.AssignedClinicianID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
