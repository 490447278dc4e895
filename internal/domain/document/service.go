package document

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/agency/internal/platform/auth"
	"github.com/carelink/agency/internal/platform/blobstore"
	"github.com/carelink/agency/internal/platform/db"
	"github.com/carelink/agency/internal/platform/ocr"
)

const defaultSignedURLTTL = time.Hour

var errNoTenant = errors.New("request has no tenant")

type Deps struct {
	Repo    Repository
	Orphans OrphanRepository
	Tx      Transactor
	Store   blobstore.Store
	Charts  ChartDirectory
	OCR     ocr.Dispatcher
	Metrics Recorder
	Logger  zerolog.Logger

	PublicURLPrefix       string
	SignedURLTTL          time.Duration
	AllowUnsignedFallback bool
}

type Service struct {
	repo      Repository
	orphans   OrphanRepository
	tx        Transactor
	store     blobstore.Store
	charts    ChartDirectory
	ocr       ocr.Dispatcher
	metrics   Recorder
	logger    zerolog.Logger
	prefix    string
	signedTTL time.Duration
	fallback  bool
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.OCR == nil {
		d.OCR = ocr.Noop{}
	}
	if d.SignedURLTTL <= 0 {
		d.SignedURLTTL = defaultSignedURLTTL
	}
	return &Service{
		repo:      d.Repo,
		orphans:   d.Orphans,
		tx:        d.Tx,
		store:     d.Store,
		charts:    d.Charts,
		ocr:       d.OCR,
		metrics:   d.Metrics,
		logger:    d.Logger.With().Str("component", "document").Logger(),
		prefix:    d.PublicURLPrefix,
		signedTTL: d.SignedURLTTL,
		fallback:  d.AllowUnsignedFallback,
		now:       time.Now,
	}
}

func tenantOf(ctx context.Context) (uuid.UUID, error) {
	id := db.TenantFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, errNoTenant
	}
	return id, nil
}

// requireChart checks that chartID names an unlocked chart of the tenant.
func (s *Service) requireChart(ctx context.Context, chartID uuid.UUID) error {
	ok, err := s.charts.Exists(ctx, chartID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChartNotFound
	}
	return s.requireUnlocked(ctx, &chartID)
}

func (s *Service) requireUnlocked(ctx context.Context, chartID *uuid.UUID) error {
	if chartID == nil {
		return nil
	}
	locked, err := s.charts.Locked(ctx, *chartID)
	if err != nil {
		return err
	}
	if locked {
		return ErrChartLocked
	}
	return nil
}

// cleanFileName keeps the base name only and rejects names that are empty
// after trimming.
func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", &ValidationError{Field: "file_name", Message: "is required"}
	}
	if len(name) > 255 {
		return "", &ValidationError{Field: "file_name", Message: "must be at most 255 characters"}
	}
	return name, nil
}

// detectMimeType prefers the declared type and sniffs the content when the
// client sent nothing useful.
func detectMimeType(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

// Upload stores the bytes, then records the metadata row. A failed insert
// removes the stored object again.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Document, error) {
	name, err := cleanFileName(in.FileName)
	if err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, &ValidationError{Field: "file", Message: "is empty"}
	}
	if len(in.Data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	if in.ChartID != nil {
		if err := s.requireChart(ctx, *in.ChartID); err != nil {
			return nil, err
		}
	}

	mimeType := detectMimeType(in.MimeType, in.Data)
	objectPath := blobstore.ObjectPath(tenantID, in.ChartID, name)
	if err := s.store.Put(ctx, objectPath, in.Data, mimeType); err != nil {
		s.recordUpload(false)
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := &Document{
		TenantID:    tenantID,
		ChartID:     in.ChartID,
		FileName:    name,
		MimeType:    mimeType,
		SizeBytes:   int64(len(in.Data)),
		StoragePath: objectPath,
		URL:         s.store.PublicURL(objectPath),
	}
	if ocr.Eligible(mimeType) {
		st := OCRPending
		doc.OCRStatus = &st
	}
	if uid := auth.UserIDFromContext(ctx); uid != uuid.Nil {
		doc.UploadedBy = &uid
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if rmErr := s.store.Remove(ctx, objectPath); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("path", objectPath).Msg("failed to remove object after insert error")
		}
		s.recordUpload(false)
		return nil, err
	}
	s.recordUpload(true)

	if doc.OCRStatus != nil {
		s.dispatchOCR(ctx, doc)
	}
	return doc, nil
}

func (s *Service) dispatchOCR(ctx context.Context, doc *Document) {
	err := s.ocr.Dispatch(ctx, ocr.Job{
		DocumentID:  doc.ID,
		TenantID:    doc.TenantID,
		StoragePath: doc.StoragePath,
		MimeType:    doc.MimeType,
		RequestedAt: s.now().UTC(),
	})
	if s.metrics != nil {
		s.metrics.OCRDispatched(err == nil)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("ocr dispatch failed")
	}
}

func (s *Service) recordUpload(ok bool) {
	if s.metrics != nil {
		s.metrics.DocumentUploaded(ok)
	}
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Document, int, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, tenantID, f, limit, offset)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

// Attach points the document at a chart of the same tenant. Nothing but
// chart_id changes. Neither the target nor the chart the document currently
// belongs to may be locked.
func (s *Service) Attach(ctx context.Context, id, chartID uuid.UUID) (*Document, error) {
	if chartID == uuid.Nil {
		return nil, &ValidationError{Field: "chart_id", Message: "is required"}
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireChart(ctx, chartID); err != nil {
		return nil, err
	}
	doc, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if doc.ChartID != nil && *doc.ChartID != chartID {
		if err := s.requireUnlocked(ctx, doc.ChartID); err != nil {
			return nil, err
		}
	}
	return s.repo.SetChart(ctx, tenantID, id, &chartID)
}

func (s *Service) Detach(ctx context.Context, id uuid.UUID) (*Document, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnlocked(ctx, doc.ChartID); err != nil {
		return nil, err
	}
	return s.repo.SetChart(ctx, tenantID, id, nil)
}

// Delete removes the stored object, then the metadata row. The row goes even
// when the object could not be removed; that object is recorded as an orphan
// for the sweep to retry. Documents of a locked chart are kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnlocked(ctx, doc.ChartID); err != nil {
		return nil, err
	}

	res := &DeleteResult{DocumentID: doc.ID, StorageRemoved: true}
	if rmErr := s.store.Remove(ctx, doc.StoragePath); rmErr != nil && !errors.Is(rmErr, blobstore.ErrObjectNotFound) {
		res.StorageRemoved = false
		res.StorageError = rmErr.Error()
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, tenantID, doc.ID); err != nil {
			return err
		}
		if res.StorageRemoved {
			return nil
		}
		return s.orphans.Record(ctx, &Orphan{
			TenantID:    tenantID,
			DocumentID:  doc.ID,
			StoragePath: doc.StoragePath,
			Error:       res.StorageError,
		})
	})
	if err != nil {
		return nil, err
	}

	if !res.StorageRemoved {
		s.logger.Warn().
			Str("document_id", doc.ID.String()).
			Str("path", doc.StoragePath).
			Str("error", res.StorageError).
			Msg("document deleted but stored object was not removed")
		if s.metrics != nil {
			s.metrics.StorageOrphaned()
		}
	}
	return res, nil
}

// SignedURL returns a time-limited read URL for the document. Without the
// unsigned fallback any failure is an error.
func (s *Service) SignedURL(ctx context.Context, id uuid.UUID) (*SignedURL, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	signed, err := s.sign(ctx, doc.URL)
	if err == nil {
		exp := s.now().Add(s.signedTTL).UTC()
		return &SignedURL{URL: signed, Signed: true, ExpiresAt: &exp}, nil
	}
	if s.fallback {
		s.logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("serving unsigned document url")
		return &SignedURL{URL: doc.URL}, nil
	}
	s.logger.Error().Err(err).Str("document_id", doc.ID.String()).Msg("signed url failed")
	return nil, fmt.Errorf("%w: %v", ErrSignedURLDisabled, err)
}

func (s *Service) sign(ctx context.Context, publicURL string) (string, error) {
	objectPath, err := blobstore.PathFromPublicURL(s.prefix, publicURL)
	if err != nil {
		return "", err
	}
	return s.store.SignedURL(ctx, objectPath, s.signedTTL)
}

// UpdateOCRStatus records progress reported by the OCR worker. Documents that
// were never queued for OCR cannot be moved.
func (s *Service) UpdateOCRStatus(ctx context.Context, id uuid.UUID, status OCRStatus) (*Document, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "ocr_status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OCRStatus == nil {
		return nil, ErrOCRNotTracked
	}
	return s.repo.SetOCRStatus(ctx, doc.TenantID, doc.ID, status)
}

type SweepResult struct {
	Attempted int `json:"attempted"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// SweepOrphans retries removal of recorded orphans, oldest first. An object
// that is already gone counts as removed.
func (s *Service) SweepOrphans(ctx context.Context, limit int) (SweepResult, error) {
	var res SweepResult
	list, err := s.orphans.List(ctx, limit)
	if err != nil {
		return res, err
	}
	for _, o := range list {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++
		rmErr := s.store.Remove(ctx, o.StoragePath)
		if rmErr != nil && !errors.Is(rmErr, blobstore.ErrObjectNotFound) {
			res.Failed++
			s.logger.Warn().Err(rmErr).Str("path", o.StoragePath).Msg("orphan removal failed")
			continue
		}
		if err := s.orphans.Resolve(ctx, o.ID); err != nil {
			return res, err
		}
		res.Removed++
	}
	s.logger.Info().Int("attempted", res.Attempted).Int("removed", res.Removed).Int("failed", res.Failed).Msg("orphan sweep finished")
	return res, nil
}
