package document

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/blobstore"
	"github.com/carelink/agency/internal/platform/ocr"
)

type mockRepo struct {
	docs      map[uuid.UUID]*Document
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{docs: make(map[uuid.UUID]*Document)}
}

func (m *mockRepo) Create(_ context.Context, d *Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*Document, error) {
	d, ok := m.docs[id]
	if !ok || d.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, tenantID uuid.UUID, f ListFilter, limit, offset int) ([]*Document, int, error) {
	var all []*Document
	for _, d := range m.docs {
		if d.TenantID != tenantID {
			continue
		}
		if f.ChartID != nil && (d.ChartID == nil || *d.ChartID != *f.ChartID) {
			continue
		}
		if f.Unassigned && d.ChartID != nil {
			continue
		}
		cp := *d
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) SetChart(_ context.Context, tenantID, id uuid.UUID, chartID *uuid.UUID) (*Document, error) {
	d, ok := m.docs[id]
	if !ok || d.TenantID != tenantID {
		return nil, ErrNotFound
	}
	d.ChartID = chartID
	cp := *d
	return &cp, nil
}

func (m *mockRepo) SetOCRStatus(_ context.Context, tenantID, id uuid.UUID, status OCRStatus) (*Document, error) {
	d, ok := m.docs[id]
	if !ok || d.TenantID != tenantID {
		return nil, ErrNotFound
	}
	d.OCRStatus = &status
	cp := *d
	return &cp, nil
}

func (m *mockRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	d, ok := m.docs[id]
	if !ok || d.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

type mockOrphans struct {
	list []*Orphan
}

func (m *mockOrphans) Record(_ context.Context, o *Orphan) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now()
	m.list = append(m.list, o)
	return nil
}

func (m *mockOrphans) List(_ context.Context, limit int) ([]*Orphan, error) {
	if limit < len(m.list) {
		return append([]*Orphan(nil), m.list[:limit]...), nil
	}
	return append([]*Orphan(nil), m.list...), nil
}

func (m *mockOrphans) Resolve(_ context.Context, id uuid.UUID) error {
	for i, o := range m.list {
		if o.ID == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return nil
		}
	}
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubCharts struct {
	ids    map[uuid.UUID]bool
	locked map[uuid.UUID]bool
}

func (s stubCharts) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return s.ids[id], nil
}

func (s stubCharts) Locked(_ context.Context, id uuid.UUID) (bool, error) {
	return s.locked[id], nil
}

var errStoreDown = errors.New("object store unavailable")

// flakyStore wraps the in-memory store and fails selected operations.
type flakyStore struct {
	*blobstore.MemoryStore
	putErr    error
	removeErr error
	signErr   error
}

func (s *flakyStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, objectPath, data, contentType)
}

func (s *flakyStore) Remove(ctx context.Context, objectPath string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.MemoryStore.Remove(ctx, objectPath)
}

func (s *flakyStore) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return s.MemoryStore.SignedURL(ctx, objectPath, ttl)
}

type recordingDispatcher struct {
	jobs []ocr.Job
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job ocr.Job) error {
	d.jobs = append(d.jobs, job)
	return d.err
}

type countingRecorder struct {
	uploaded, uploadFailed int
	orphaned               int
	dispatched, dispFailed int
}

func (r *countingRecorder) DocumentUploaded(ok bool) {
	if ok {
		r.uploaded++
	} else {
		r.uploadFailed++
	}
}

func (r *countingRecorder) StorageOrphaned() { r.orphaned++ }

func (r *countingRecorder) OCRDispatched(ok bool) {
	if ok {
		r.dispatched++
	} else {
		r.dispFailed++
	}
}
