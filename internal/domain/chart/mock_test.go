package chart

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/events"
)

type mockRepo struct {
	charts      map[uuid.UUID]*Chart
	patients    map[uuid.UUID]*uuid.UUID // patient -> assigned clinician
	transitions []*Transition
	meds        []*Medication
	gets        int

	// beforeUpdate runs inside UpdateStatus before the compare, to simulate
	// a concurrent writer.
	beforeUpdate func(id uuid.UUID)
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		charts:   make(map[uuid.UUID]*Chart),
		patients: make(map[uuid.UUID]*uuid.UUID),
	}
}

func (m *mockRepo) Create(_ context.Context, c *Chart) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.charts[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*Chart, error) {
	m.gets++
	c, ok := m.charts[id]
	if !ok || c.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, tenantID uuid.UUID, includeArchived bool) ([]*Summary, error) {
	var out []*Summary
	for _, c := range m.charts {
		if c.TenantID != tenantID || (!includeArchived && c.Status == StatusArchived) {
			continue
		}
		s := &Summary{Chart: *c, PatientName: "Test Patient", ClinicianID: m.patients[c.PatientID]}
		for _, med := range m.meds {
			if med.ChartID == c.ID {
				s.MedicationCount++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, from, to Status, awaiting *bool) (bool, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(id)
	}
	c, ok := m.charts[id]
	if !ok || c.TenantID != tenantID || c.Status != from {
		return false, nil
	}
	c.Status = to
	if awaiting != nil {
		c.AwaitingClinicianReview = *awaiting
	}
	return true, nil
}

func (m *mockRepo) InsertTransition(_ context.Context, t *Transition) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	cp := *t
	m.transitions = append(m.transitions, &cp)
	return nil
}

func (m *mockRepo) ListTransitions(_ context.Context, tenantID, chartID uuid.UUID) ([]*Transition, error) {
	var out []*Transition
	for i := len(m.transitions) - 1; i >= 0; i-- {
		t := m.transitions[i]
		if t.TenantID == tenantID && t.ChartID == chartID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockRepo) Reassign(_ context.Context, tenantID, chartID, clinicianID uuid.UUID) (uuid.UUID, error) {
	c, ok := m.charts[chartID]
	if !ok || c.TenantID != tenantID || c.Status.Locked() {
		return uuid.Nil, ErrConflict
	}
	c.AwaitingClinicianReview = true
	id := clinicianID
	m.patients[c.PatientID] = &id
	return c.PatientID, nil
}

func (m *mockRepo) AddMedication(_ context.Context, med *Medication) error {
	c, ok := m.charts[med.ChartID]
	if !ok || c.TenantID != med.TenantID || c.Status.Locked() {
		return ErrChartLocked
	}
	med.ID = uuid.New()
	med.CreatedAt = time.Now()
	cp := *med
	m.meds = append(m.meds, &cp)
	return nil
}

func (m *mockRepo) ListMedications(_ context.Context, tenantID, chartID uuid.UUID) ([]*Medication, error) {
	var out []*Medication
	for _, med := range m.meds {
		if med.TenantID == tenantID && med.ChartID == chartID {
			out = append(out, med)
		}
	}
	return out, nil
}

// snapshotTx restores the charts and transitions on error, standing in for
// a database rollback.
type snapshotTx struct{ repo *mockRepo }

func (s snapshotTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	charts := make(map[uuid.UUID]Chart, len(s.repo.charts))
	for id, c := range s.repo.charts {
		charts[id] = *c
	}
	n := len(s.repo.transitions)
	if err := fn(ctx); err != nil {
		for id, c := range charts {
			cp := c
			s.repo.charts[id] = &cp
		}
		s.repo.transitions = s.repo.transitions[:n]
		return err
	}
	return nil
}

type stubPatients struct{ ids map[uuid.UUID]bool }

func (s stubPatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return s.ids[id], nil
}

type stubClinicians struct{ ids map[uuid.UUID]bool }

func (s stubClinicians) IsActiveClinician(_ context.Context, id uuid.UUID) (bool, error) {
	return s.ids[id], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ChartEvent
	err    error
}

func (p *recordingPublisher) PublishChartEvent(_ context.Context, evt events.ChartEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type countingRecorder struct{ counts map[string]int }

func (r *countingRecorder) ChartTransition(action, to string) {
	r.counts[action+"->"+to]++
}
