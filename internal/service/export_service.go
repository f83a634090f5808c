package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omed-project/omed-api/internal/models"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/export"
	"github.com/omed-project/omed-api/pkg/jobs"
	"github.com/omed-project/omed-api/pkg/storage"
)

type exportDatasetSource interface {
	ListApprovedForExport(ctx context.Context) ([]models.Dataset, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Table, title string) ([]byte, error)
}

// ExportServiceConfig tunes the asynchronous export pipeline.
type ExportServiceConfig struct {
	APIPrefix  string
	ResultTTL  time.Duration
	Workers    int
	MaxRetries int
}

// ExportService generates downloadable snapshots of the approved catalog.
// Generation runs on a background worker pool; job state is tracked in memory
// and download links are HMAC-signed with an expiry.
type ExportService struct {
	datasets exportDatasetSource
	storage  exportFileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	queue    *jobs.Queue
	logger   *zap.Logger
	cfg      ExportServiceConfig

	mu      sync.RWMutex
	tracked map[string]*models.ExportJob
}

// NewExportService constructs an ExportService with its own worker queue.
func NewExportService(datasets exportDatasetSource, store exportFileStorage, signer *storage.SignedURLSigner, cfg ExportServiceConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}

	s := &ExportService{
		datasets: datasets,
		storage:  store,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		tracked:  map[string]*models.ExportJob{},
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request queues a new catalog export for the caller.
func (s *ExportService) Request(ctx context.Context, userID string, format models.ExportFormat) (*models.ExportJob, error) {
	switch format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		Format:      format,
		Status:      models.ExportStatusQueued,
		RequestedBy: userID,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "catalog_export", Payload: job.ID}); err != nil {
		s.mu.Lock()
		delete(s.tracked, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	return s.snapshot(job.ID), nil
}

// Job returns the state of an export job. Only the requester and admins may
// poll it.
func (s *ExportService) Job(userID string, role models.Role, jobID string) (*models.ExportJob, error) {
	job := s.snapshot(jobID)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.RequestedBy != userID && !role.AtLeast(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// OpenByToken validates a signed download token and opens the stored file.
func (s *ExportService) OpenByToken(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes export files older than the result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	jobID, _ := job.Payload.(string)
	if jobID == "" {
		jobID = job.ID
	}
	s.setStatus(jobID, models.ExportStatusRunning, "")

	tracked := s.snapshot(jobID)
	if tracked == nil {
		return fmt.Errorf("export job %s not tracked", jobID)
	}

	datasets, err := s.datasets.ListApprovedForExport(ctx)
	if err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to load catalog")
		return fmt.Errorf("load catalog for export: %w", err)
	}

	table := buildCatalogTable(datasets)

	var payload []byte
	switch tracked.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(table)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(table, "Approved Dataset Catalog")
	}
	if err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to render export")
		return fmt.Errorf("render export: %w", err)
	}

	filename := fmt.Sprintf("catalog_%s.%s", time.Now().UTC().Format("20060102_150405"), tracked.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to store export")
		return fmt.Errorf("store export: %w", err)
	}

	token, _, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to sign download link")
		return fmt.Errorf("sign export url: %w", err)
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if tracked, ok := s.tracked[jobID]; ok {
		tracked.Status = models.ExportStatusCompleted
		tracked.FileName = filename
		tracked.DownloadURL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
		tracked.Error = ""
		tracked.CompletedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info("catalog export completed",
		zap.String("job_id", jobID),
		zap.String("format", string(tracked.Format)),
		zap.Int("rows", len(datasets)))
	return nil
}

func (s *ExportService) setStatus(jobID string, status models.ExportStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.tracked[jobID]; ok {
		job.Status = status
		job.Error = errMsg
		if status == models.ExportStatusFailed {
			now := time.Now().UTC()
			job.CompletedAt = &now
		}
	}
}

func (s *ExportService) snapshot(jobID string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.tracked[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func buildCatalogTable(datasets []models.Dataset) export.Table {
	headers := []string{"ID", "Title", "Specialty", "Upvotes", "Monthly Downloads", "Submitted", "Link"}
	rows := make([]map[string]string, 0, len(datasets))
	for _, d := range datasets {
		rows = append(rows, map[string]string{
			"ID":                d.ID,
			"Title":             d.Title,
			"Specialty":         d.Specialty,
			"Upvotes":           strconv.Itoa(d.UpvotesCount),
			"Monthly Downloads": strconv.Itoa(d.MonthlyDownloads),
			"Submitted":         d.CreatedAt.Format("2006-01-02"),
			"Link":              d.DatasetLink,
		})
	}
	return export.Table{Headers: headers, Rows: rows}
}
