package models

import "time"

// TicketStatus is the lifecycle status of a ticket record.
type TicketStatus string

const (
	StatusCreated  TicketStatus = "created"
	StatusApproved TicketStatus = "approved"
	StatusRejected TicketStatus = "rejected"
)

// Terminal reports whether no further transition is permitted from s.
func (s TicketStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// TicketLog is the durable record of one intake ticket. It is created exactly
// once, after the tracker issue exists, and afterwards only its status and
// tracker status fields are mutated.
type TicketLog struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	SlackUser     string       `gorm:"size:50;index" json:"slack_user"`
	SlackChannel  string       `gorm:"size:50" json:"slack_channel"`
	JiraIssueKey  string       `gorm:"size:50;uniqueIndex" json:"jira_issue_key"`
	Summary       string       `gorm:"type:text" json:"summary"`
	Label         Label        `gorm:"size:50" json:"label"`
	ClassifierTier string      `gorm:"size:50" json:"classifier_tier"` // local, remote, none
	RawLLMOutput  string       `gorm:"type:text" json:"raw_llm_output"`
	Status        TicketStatus `gorm:"size:20;default:created;index" json:"status"`
	TrackerStatus string       `gorm:"size:100" json:"tracker_status"`
	CreatedAt     time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (TicketLog) TableName() string { return "ticket_logs" }
