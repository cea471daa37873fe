package service

import (
	"context"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/repository"

	"github.com/jonboulle/clockwork"
)

// AuditService records admin and auth actions. Writes are best effort and
// never fail the action being audited.
type AuditService struct {
	repo  repository.AuditLogger
	clock clockwork.Clock
}

func NewAuditService(repo repository.AuditLogger, clock clockwork.Clock) *AuditService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuditService{repo: repo, clock: clock}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]any) {
	s.LogWithRequest(ctx, userID, action, category, "", "", details)
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *AuditService) LogWithRequest(ctx context.Context, userID int64, action, category, ip, userAgent string, details map[string]any) {
	if s == nil || s.repo == nil {
		return
	}
	log := &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.CreateAudit(ctx, log); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogAdminAction logs an admin action against a user or catalog entity.
func (s *AuditService) LogAdminAction(ctx context.Context, adminID int64, action, category string, targetUserID int64, details map[string]any) {
	if details == nil {
		details = make(map[string]any)
	}
	details["admin_id"] = adminID
	if targetUserID != 0 {
		details["target_user_id"] = targetUserID
	}

	s.Log(ctx, targetUserID, action, category, details)
}

// LogLogin logs a user login
func (s *AuditService) LogLogin(ctx context.Context, userID int64, ip, userAgent string) {
	s.LogWithRequest(ctx, userID, domain.AuditActionLogin, domain.AuditCategoryAuth, ip, userAgent, nil)
}

// Recent returns the newest audit entries, optionally for one category.
func (s *AuditService) Recent(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.RecentAudit(ctx, category, limit)
}
