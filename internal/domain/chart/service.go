package chart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/agency/internal/domain/patient"
	"github.com/carelink/agency/internal/platform/auth"
	"github.com/carelink/agency/internal/platform/cache"
	"github.com/carelink/agency/internal/platform/db"
	"github.com/carelink/agency/internal/platform/events"
)

// MaxBatch bounds the number of charts in one bulk approve request.
const MaxBatch = 100

var errNoTenant = errors.New("request has no tenant")

type Deps struct {
	Repo       Repository
	Tx         Transactor
	Patients   PatientDirectory
	Clinicians ClinicianDirectory
	Cache      cache.Cache
	CacheTTL   time.Duration
	Events     events.Publisher
	Metrics    TransitionRecorder
	Logger     zerolog.Logger
}

type Service struct {
	repo       Repository
	tx         Transactor
	patients   PatientDirectory
	clinicians ClinicianDirectory
	cache      cache.Cache
	ttl        time.Duration
	events     events.Publisher
	metrics    TransitionRecorder
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	return &Service{
		repo:       d.Repo,
		tx:         d.Tx,
		patients:   d.Patients,
		clinicians: d.Clinicians,
		cache:      d.Cache,
		ttl:        d.CacheTTL,
		events:     d.Events,
		metrics:    d.Metrics,
		logger:     d.Logger.With().Str("component", "chart").Logger(),
		now:        time.Now,
	}
}

func tenantOf(ctx context.Context) (uuid.UUID, error) {
	id := db.TenantFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, errNoTenant
	}
	return id, nil
}

func cacheKey(tenantID, id uuid.UUID) string {
	return cache.Key(tenantID, "chart", id)
}

// DaysOld is the number of whole days between createdAt and now.
func DaysOld(createdAt, now time.Time) int {
	d := now.Sub(createdAt)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Hours() / 24))
}

// ListCharts returns the tenant's charts, oldest first. Archived charts are
// left out unless includeArchived is set.
func (s *Service) ListCharts(ctx context.Context, includeArchived bool) ([]*Summary, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx, tenantID, includeArchived)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, c := range list {
		c.DaysOld = DaysOld(c.CreatedAt, now)
	}
	return list, nil
}

func (s *Service) GetChart(ctx context.Context, id uuid.UUID) (*Chart, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return cache.GetOrLoad(ctx, s.cache, cacheKey(tenantID, id), s.ttl,
		func(ctx context.Context) (*Chart, error) { return s.repo.GetByID(ctx, tenantID, id) })
}

func (s *Service) CreateChart(ctx context.Context, patientID uuid.UUID, source Source) (*Chart, error) {
	if source == "" {
		source = SourceEmptyChart
	}
	if !source.Valid() {
		return nil, &ValidationError{Field: "source", Message: fmt.Sprintf("unknown source %q", source)}
	}
	if patientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id", Message: "is required"}
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	c := &Chart{
		TenantID:  tenantID,
		PatientID: patientID,
		Status:    StatusActive,
		Source:    source,
	}
	if actor := auth.UserIDFromContext(ctx); actor != uuid.Nil {
		c.CreatedBy = &actor
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// transition applies action to one chart in its own transaction: the status
// change is compare-and-set on the status read, and the audit row is written
// alongside it. Cache invalidation, metrics and the event follow the commit.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action Action, reason string) (*Chart, error) {
	reason = strings.TrimSpace(reason)
	if RequiresReason(action) && reason == "" {
		return nil, &ValidationError{Field: "reason", Message: fmt.Sprintf("is required to %s a chart", action)}
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}

	var chart *Chart
	var from Status
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		to, err := Next(action, c.Status)
		if err != nil {
			return err
		}
		awaiting := transitions[action].awaitingReview
		ok, err := s.repo.UpdateStatus(ctx, tenantID, id, c.Status, to, awaiting)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		t := &Transition{
			TenantID: tenantID,
			ChartID:  id,
			Action:   action,
			From:     c.Status,
			To:       to,
		}
		if reason != "" {
			t.Reason = &reason
		}
		if actor := auth.UserIDFromContext(ctx); actor != uuid.Nil {
			t.ActorID = &actor
		}
		if err := s.repo.InsertTransition(ctx, t); err != nil {
			return err
		}

		from = c.Status
		c.Status = to
		if awaiting != nil {
			c.AwaitingClinicianReview = *awaiting
		}
		chart = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, chart, action, from, reason)
	return chart, nil
}

func (s *Service) committed(ctx context.Context, c *Chart, action Action, from Status, reason string) {
	if err := cache.Invalidate(ctx, s.cache, cacheKey(c.TenantID, c.ID)); err != nil {
		s.logger.Warn().Err(err).Str("chart_id", c.ID.String()).Msg("chart cache invalidation failed")
	}
	if s.metrics != nil {
		s.metrics.ChartTransition(string(action), string(c.Status))
	}

	evt := events.ChartEvent{
		TenantID:   c.TenantID,
		ChartID:    c.ID,
		Action:     string(action),
		From:       string(from),
		To:         string(c.Status),
		Reason:     reason,
		ActorID:    auth.UserIDFromContext(ctx),
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishChartEvent(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("chart_id", c.ID.String()).
			Str("action", string(action)).
			Msg("chart event publish failed")
	}
}

// ApproveCharts approves each chart independently. A failure on one chart
// does not roll back the others; every outcome is reported in input order.
func (s *Service) ApproveCharts(ctx context.Context, ids []uuid.UUID) ([]BatchResult, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "chart_ids", Message: "at least one chart is required"}
	}
	if len(ids) > MaxBatch {
		return nil, &ValidationError{Field: "chart_ids", Message: fmt.Sprintf("at most %d charts per request", MaxBatch)}
	}
	if _, err := tenantOf(ctx); err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		c, err := s.transition(ctx, id, ActionApprove, "")
		if err != nil {
			results = append(results, BatchResult{ChartID: id, Result: ResultFailed, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{ChartID: id, Result: ResultSucceeded, Status: c.Status})
	}
	return results, nil
}

func (s *Service) ReturnToClinician(ctx context.Context, id uuid.UUID, note string) (*Chart, error) {
	return s.transition(ctx, id, ActionReturn, note)
}

func (s *Service) ReopenChart(ctx context.Context, id uuid.UUID, reason string) (*Chart, error) {
	return s.transition(ctx, id, ActionReopen, reason)
}

func (s *Service) DeliverChart(ctx context.Context, id uuid.UUID) (*Chart, error) {
	return s.transition(ctx, id, ActionDeliver, "")
}

func (s *Service) ArchiveChart(ctx context.Context, id uuid.UUID, reason string) (*Chart, error) {
	return s.transition(ctx, id, ActionArchive, reason)
}

// ReassignClinician assigns clinicianID to the chart's patient and flags the
// chart for clinician review. Repeating the call is harmless.
func (s *Service) ReassignClinician(ctx context.Context, chartID, clinicianID uuid.UUID) (*Chart, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.clinicians.IsActiveClinician(ctx, clinicianID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ValidationError{Field: "clinician_id", Message: "must be an active clinician of this agency"}
	}

	var chart *Chart
	var patientID uuid.UUID
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, tenantID, chartID)
		if err != nil {
			return err
		}
		if c.Status.Locked() {
			return ErrChartLocked
		}
		patientID, err = s.repo.Reassign(ctx, tenantID, chartID, clinicianID)
		if err != nil {
			return err
		}
		c.AwaitingClinicianReview = true
		chart = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := cache.Invalidate(ctx, s.cache, cacheKey(tenantID, chartID), patient.CacheKey(tenantID, patientID)); err != nil {
		s.logger.Warn().Err(err).Str("chart_id", chartID.String()).Msg("cache invalidation failed after reassignment")
	}
	evt := events.ChartEvent{
		Type:       "chart.reassigned",
		TenantID:   tenantID,
		ChartID:    chartID,
		Action:     "reassign",
		From:       string(chart.Status),
		To:         string(chart.Status),
		ActorID:    auth.UserIDFromContext(ctx),
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishChartEvent(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("chart_id", chartID.String()).Msg("chart event publish failed")
	}
	return chart, nil
}

// History returns the chart's transitions, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*Transition, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.repo.ListTransitions(ctx, tenantID, id)
}

func (s *Service) AddMedication(ctx context.Context, chartID uuid.UUID, in MedicationInput) (*Medication, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 1) {
		return nil, &ValidationError{Field: "confidence", Message: "must be between 0 and 1"}
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, tenantID, chartID)
	if err != nil {
		return nil, err
	}
	if c.Status.Locked() {
		return nil, ErrChartLocked
	}

	m := &Medication{
		TenantID:   tenantID,
		ChartID:    chartID,
		Name:       name,
		Confidence: in.Confidence,
	}
	if dosage := strings.TrimSpace(in.Dosage); dosage != "" {
		m.Dosage = &dosage
	}
	if err := s.repo.AddMedication(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMedications(ctx context.Context, chartID uuid.UUID) ([]*Medication, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, tenantID, chartID); err != nil {
		return nil, err
	}
	return s.repo.ListMedications(ctx, tenantID, chartID)
}

// Exists reports whether id is a chart of the request's tenant.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.GetChart(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Locked reports whether id is a delivered or archived chart. A missing chart
// is not locked.
func (s *Service) Locked(ctx context.Context, id uuid.UUID) (bool, error) {
	c, err := s.GetChart(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.Status.Locked(), nil
}
