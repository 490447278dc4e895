package chart

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive              Status = "active"
	StatusVerifiedReady       Status = "verified_ready"
	StatusNeedsReverification Status = "needs_reverification"
	StatusDeliveredLocked     Status = "delivered_locked"
	StatusArchived            Status = "archived"
)

// Locked reports whether the chart's content and assignment are frozen.
func (s Status) Locked() bool {
	return s == StatusDeliveredLocked || s == StatusArchived
}

type Source string

const (
	SourceBottleScan  Source = "bottle_scan"
	SourcePDFImport   Source = "pdf_import"
	SourceImageUpload Source = "image_upload"
	SourceEmptyChart  Source = "empty_chart"
)

func (s Source) Valid() bool {
	switch s {
	case SourceBottleScan, SourcePDFImport, SourceImageUpload, SourceEmptyChart:
		return true
	}
	return false
}

type Chart struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	TenantID                uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	PatientID               uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status                  Status     `db:"status" json:"status"`
	Source                  Source     `db:"source" json:"source"`
	AwaitingClinicianReview bool       `db:"awaiting_clinician_review" json:"awaiting_clinician_review"`
	CreatedBy               *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// Summary is a row of the chart review list.
type Summary struct {
	Chart
	PatientName     string     `json:"patient_name"`
	ClinicianID     *uuid.UUID `json:"assigned_clinician_id,omitempty"`
	ClinicianName   *string    `json:"assigned_clinician_name,omitempty"`
	DaysOld         int        `json:"days_old"`
	MedicationCount int        `json:"medication_count"`
	DocumentCount   int        `json:"document_count"`
}

type Medication struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TenantID   uuid.UUID `db:"tenant_id" json:"tenant_id"`
	ChartID    uuid.UUID `db:"chart_id" json:"chart_id"`
	Name       string    `db:"name" json:"name"`
	Dosage     *string   `db:"dosage" json:"dosage,omitempty"`
	Confidence *float64  `db:"confidence" json:"confidence,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type MedicationInput struct {
	Name       string   `json:"name"`
	Dosage     string   `json:"dosage"`
	Confidence *float64 `json:"confidence"`
}

// Transition is one persisted status change of a chart.
type Transition struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TenantID  uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	ChartID   uuid.UUID  `db:"chart_id" json:"chart_id"`
	Action    Action     `db:"action" json:"action"`
	From      Status     `db:"from_status" json:"from_status"`
	To        Status     `db:"to_status" json:"to_status"`
	Reason    *string    `db:"reason" json:"reason,omitempty"`
	ActorID   *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// BatchResult reports the outcome of one chart in a bulk operation.
type BatchResult struct {
	ChartID uuid.UUID `json:"chart_id"`
	Result  string    `json:"result"`
	Status  Status    `json:"status,omitempty"`
	Error   string    `json:"error,omitempty"`
}
