package chart

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Chart) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Chart, error)
	// List returns summaries without DaysOld; the service fills it from its clock.
	List(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*Summary, error)
	// UpdateStatus moves a chart from one status to another and reports
	// whether the row was still in from. awaiting, when non-nil, is written
	// to awaiting_clinician_review in the same statement.
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status, awaiting *bool) (bool, error)
	InsertTransition(ctx context.Context, t *Transition) error
	ListTransitions(ctx context.Context, tenantID, chartID uuid.UUID) ([]*Transition, error)
	// Reassign flags the chart for clinician review and assigns the clinician
	// to the chart's patient. It returns the patient id.
	Reassign(ctx context.Context, tenantID, chartID, clinicianID uuid.UUID) (uuid.UUID, error)

	AddMedication(ctx context.Context, m *Medication) error
	ListMedications(ctx context.Context, tenantID, chartID uuid.UUID) ([]*Medication, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PatientDirectory answers whether a patient exists in the request's tenant.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ClinicianDirectory answers whether a user can take chart assignments.
type ClinicianDirectory interface {
	IsActiveClinician(ctx context.Context, id uuid.UUID) (bool, error)
}

// TransitionRecorder counts committed transitions.
type TransitionRecorder interface {
	ChartTransition(action, to string)
}
