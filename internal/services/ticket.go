package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangang/ticketflow/backend/internal/models"
	"github.com/huangang/ticketflow/backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrEmptyText        = errors.New("ticket text is empty")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrDecisionConflict = errors.New("ticket already has a different terminal status")
	ErrInvalidDecision  = errors.New("invalid decision")
)

// TicketService owns the intake sequence and the ticket lifecycle.
type TicketService struct {
	db         *gorm.DB
	classifier *ClassifierService
	jira       *JiraService
	slack      *SlackService
	issueTypes *IssueTypeMap
}

func NewTicketService(db *gorm.DB, classifier *ClassifierService, jira *JiraService, slack *SlackService, issueTypes *IssueTypeMap) *TicketService {
	return &TicketService{
		db:         db,
		classifier: classifier,
		jira:       jira,
		slack:      slack,
		issueTypes: issueTypes,
	}
}

type CreateTicketRequest struct {
	Text      string
	UserID    string
	ChannelID string
}

// CreateTicket runs the intake sequence: classify, map the label to an issue
// type, create the tracker issue, then persist the record exactly once. A
// tracker failure leaves no partial record behind.
func (s *TicketService) CreateTicket(ctx context.Context, req *CreateTicketRequest) (*models.TicketLog, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	cls := s.classifier.Classify(ctx, text)
	issueTypeID := s.issueTypes.For(cls.Label)

	logger.Infof("[Ticket] Classified as %s (tier: %s), issue type %s", cls.Label, cls.Tier, issueTypeID)

	issueKey, err := s.jira.CreateIssue(ctx, text, text, issueTypeID)
	if err != nil {
		LogError("ticket", "create_issue", "tracker issue creation failed", map[string]interface{}{
			"user":    req.UserID,
			"channel": req.ChannelID,
		})
		return nil, fmt.Errorf("create tracker issue: %w", err)
	}

	ticket := &models.TicketLog{
		SlackUser:      req.UserID,
		SlackChannel:   req.ChannelID,
		JiraIssueKey:   issueKey,
		Summary:        text,
		Label:          cls.Label,
		ClassifierTier: cls.Tier,
		RawLLMOutput:   cls.RawOutput,
		Status:         models.StatusCreated,
	}
	if err := s.db.Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("persist ticket record: %w", err)
	}

	return ticket, nil
}

// ApplyDecision moves a ticket into a terminal status. Re-applying the same
// terminal status is an idempotent no-op; applying a different terminal
// status than the one recorded fails with ErrDecisionConflict and leaves the
// record untouched. The transition itself is a guarded update keyed on the
// previously read status, so concurrent clicks serialize on the store.
func (s *TicketService) ApplyDecision(ticketID uint, decision models.TicketStatus) (*models.TicketLog, error) {
	if !decision.Terminal() {
		return nil, ErrInvalidDecision
	}

	var ticket models.TicketLog
	if err := s.db.First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("load ticket %d: %w", ticketID, err)
	}

	if ticket.Status == decision {
		return &ticket, nil
	}
	if ticket.Status.Terminal() {
		LogWarning("ticket", "decision_conflict", "conflicting decision for terminal ticket", map[string]interface{}{
			"ticket_id": ticketID,
			"stored":    ticket.Status,
			"requested": decision,
		})
		return nil, ErrDecisionConflict
	}

	res := s.db.Model(&models.TicketLog{}).
		Where("id = ? AND status = ?", ticketID, models.StatusCreated).
		Update("status", decision)
	if res.Error != nil {
		return nil, fmt.Errorf("update ticket %d status: %w", ticketID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost a race with a concurrent decision; re-read and re-judge.
		if err := s.db.First(&ticket, ticketID).Error; err != nil {
			return nil, fmt.Errorf("reload ticket %d: %w", ticketID, err)
		}
		if ticket.Status == decision {
			return &ticket, nil
		}
		return nil, ErrDecisionConflict
	}

	ticket.Status = decision
	logger.Infof("[Ticket] Ticket %d (%s) moved to %s", ticket.ID, ticket.JiraIssueKey, decision)
	return &ticket, nil
}

// GetByID returns one ticket record.
func (s *TicketService) GetByID(id uint) (*models.TicketLog, error) {
	var ticket models.TicketLog
	if err := s.db.First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

type TicketListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status"`
	Label    string `form:"label"`
	User     string `form:"user"`
}

type TicketListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.TicketLog `json:"items"`
}

// List returns paginated ticket records.
func (s *TicketService) List(req *TicketListRequest) (*TicketListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var tickets []models.TicketLog
	var total int64

	query := s.db.Model(&models.TicketLog{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Label != "" {
		query = query.Where("label = ?", req.Label)
	}
	if req.User != "" {
		query = query.Where("slack_user = ?", req.User)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&tickets).Error; err != nil {
		return nil, err
	}

	return &TicketListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    tickets,
	}, nil
}

// ProcessIntake is the queue processor: it creates the ticket and reports the
// outcome back to the originating channel with the approval prompt.
func (s *TicketService) ProcessIntake(ctx context.Context, task *IntakeTask) error {
	ticket, err := s.CreateTicket(ctx, &CreateTicketRequest{
		Text:      task.Text,
		UserID:    task.UserID,
		ChannelID: task.ChannelID,
	})
	if err != nil {
		logger.Errorf("[Ticket] Intake %s failed: %v", task.TaskID, err)
		if postErr := s.slack.PostMessage(ctx, task.ChannelID, "Failed to create Jira ticket. Please check server logs.", nil, task.UserID); postErr != nil {
			logger.Errorf("[Ticket] Failed to report intake failure to channel: %v", postErr)
		}
		return err
	}

	msg := fmt.Sprintf("Ticket has been created: %s", ticket.JiraIssueKey)
	if err := s.slack.PostMessage(ctx, task.ChannelID, msg, ApprovalBlocks(ticket.ID, ticket.JiraIssueKey), task.UserID); err != nil {
		// The record exists; retrying the task would create a duplicate issue.
		logger.Errorf("[Ticket] Failed to post approval prompt for ticket %d: %v", ticket.ID, err)
	}
	return nil
}
