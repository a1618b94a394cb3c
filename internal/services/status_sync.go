package services

import (
	"context"
	"fmt"
	"time"

	"github.com/huangang/ticketflow/backend/internal/models"
	"github.com/huangang/ticketflow/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	statusSyncBatchSize = 20
	statusSyncWindow    = 7 * 24 * time.Hour
)

// StatusSyncService periodically refreshes the tracker status of recent
// tickets so the admin API reflects what happened in Jira after creation.
type StatusSyncService struct {
	db   *gorm.DB
	jira *JiraService
}

func NewStatusSyncService(db *gorm.DB, jira *JiraService) *StatusSyncService {
	return &StatusSyncService{db: db, jira: jira}
}

// StartStatusSyncScheduler runs SyncRecent every intervalMin minutes.
func StartStatusSyncScheduler(db *gorm.DB, jira *JiraService, intervalMin int) *cron.Cron {
	if intervalMin <= 0 {
		intervalMin = 10
	}

	service := NewStatusSyncService(db, jira)
	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %dm", intervalMin), service.SyncRecent)
	c.Start()

	logger.Infof("[StatusSync] Scheduler started, interval: %dm", intervalMin)
	return c
}

// SyncRecent updates the tracker status for tickets created within the sync
// window. Only the tracker status column is touched; lifecycle status is
// owned by the decision flow.
func (s *StatusSyncService) SyncRecent() {
	var tickets []models.TicketLog

	since := time.Now().Add(-statusSyncWindow)
	err := s.db.Where("created_at > ?", since).
		Order("created_at DESC").
		Limit(statusSyncBatchSize).
		Find(&tickets).Error
	if err != nil {
		logger.Warnf("[StatusSync] Failed to fetch tickets: %v", err)
		return
	}

	if len(tickets) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, ticket := range tickets {
		status, err := s.jira.GetIssueStatus(ctx, ticket.JiraIssueKey)
		if err != nil {
			logger.Warnf("[StatusSync] Status lookup failed for %s: %v", ticket.JiraIssueKey, err)
			continue
		}
		if status == ticket.TrackerStatus {
			continue
		}
		if err := s.db.Model(&models.TicketLog{}).
			Where("id = ?", ticket.ID).
			Update("tracker_status", status).Error; err != nil {
			logger.Warnf("[StatusSync] Failed to store status for %s: %v", ticket.JiraIssueKey, err)
		}
	}
}
