package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ledger-api/internal/models"
	"github.com/noah-isme/tutor-ledger-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AuditService records ledger audit logs off the request path. Logs are handed to
// a job queue; when the queue is missing or refuses the job the log is written
// synchronously instead.
type AuditService struct {
	store  auditStore
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewAuditService constructs an AuditService. queue may be nil.
func NewAuditService(store auditStore, queue jobEnqueuer, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, queue: queue, logger: logger}
}

// SetQueue attaches the queue once it has been built around Handle.
func (s *AuditService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// CreateAuditLog schedules the log for persistence.
func (s *AuditService) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return nil
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{Type: auditJobType, Payload: log})
		if err == nil {
			return nil
		}
		s.logger.Warn("audit enqueue failed, writing inline", zap.String("action", log.Action), zap.Error(err))
	}
	return s.store.CreateAuditLog(context.WithoutCancel(ctx), log)
}

// Handle is the queue handler persisting one audit job.
func (s *AuditService) Handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("dropping malformed audit job", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := s.store.CreateAuditLog(ctx, log); err != nil {
		return fmt.Errorf("persist audit log %s: %w", log.Action, err)
	}
	return nil
}
