package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/ticketflow/backend/internal/models"
	"github.com/huangang/ticketflow/backend/internal/services"
	"github.com/huangang/ticketflow/backend/pkg/logger"
)

// SlackHandler serves the slash command, interactive action, and event
// endpoints the chat surface calls into.
type SlackHandler struct {
	queue   services.TaskQueue
	tickets *services.TicketService
	jira    *services.JiraService
	slack   *services.SlackService
}

func NewSlackHandler(queue services.TaskQueue, tickets *services.TicketService, jira *services.JiraService, slack *services.SlackService) *SlackHandler {
	return &SlackHandler{
		queue:   queue,
		tickets: tickets,
		jira:    jira,
		slack:   slack,
	}
}

// HandleCommand processes /ticket and /ticket_status slash commands. Slack
// expects a response within its short deadline, so ticket intake is enqueued
// and the outcome is posted back to the channel by the worker.
func (h *SlackHandler) HandleCommand(c *gin.Context) {
	command := c.PostForm("command")
	text := c.PostForm("text")
	userID := c.PostForm("user_id")
	channelID := c.PostForm("channel_id")

	switch command {
	case "/ticket":
		if strings.TrimSpace(text) == "" {
			c.JSON(http.StatusOK, gin.H{
				"response_type": "ephemeral",
				"text":          "Please describe the ticket, e.g. /ticket my app crashes on startup",
			})
			return
		}

		task := &services.IntakeTask{
			TaskID:    uuid.NewString(),
			Text:      text,
			UserID:    userID,
			ChannelID: channelID,
		}
		if err := h.queue.Enqueue(task); err != nil {
			logger.Errorf("[Slack] Failed to enqueue intake task: %v", err)
			c.JSON(http.StatusOK, gin.H{
				"response_type": "ephemeral",
				"text":          "Failed to accept the ticket request. Please try again.",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"response_type": "ephemeral",
			"text":          "Got it, creating your ticket...",
		})

	case "/ticket_status":
		issueKey := strings.TrimSpace(text)
		if issueKey == "" {
			c.JSON(http.StatusOK, gin.H{
				"response_type": "ephemeral",
				"text":          "Please provide a ticket key, e.g. /ticket_status KAN-1",
			})
			return
		}

		status, err := h.jira.GetIssueStatus(c.Request.Context(), issueKey)
		if err != nil {
			logger.Warnf("[Slack] Status lookup for %s failed: %v", issueKey, err)
			status = "Unknown"
		}

		reply := fmt.Sprintf("Ticket %s Status: %s", issueKey, status)
		if err := h.slack.PostMessage(c.Request.Context(), channelID, reply, nil, userID); err != nil {
			logger.Warnf("[Slack] Failed to post status message: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"text": reply})

	default:
		c.JSON(http.StatusOK, gin.H{"text": "unknown command"})
	}
}

// HandleActions processes approve/reject button clicks. Slack delivers these
// either as a JSON body or form-encoded with the JSON under `payload`; both
// encodings are accepted for the same logical event.
func (h *SlackHandler) HandleActions(c *gin.Context) {
	data, ok := h.interactionBody(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"text": "invalid payload"})
		return
	}

	interaction, err := services.ParseInteraction(data)
	if err != nil {
		logger.Warnf("[Slack] Bad interaction payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"text": "invalid payload"})
		return
	}

	var decision models.TicketStatus
	switch interaction.ActionID {
	case services.ActionApproveTicket:
		decision = models.StatusApproved
	case services.ActionRejectTicket:
		decision = models.StatusRejected
	default:
		c.JSON(http.StatusOK, gin.H{"text": "ignored"})
		return
	}

	ticket, err := h.tickets.ApplyDecision(interaction.TicketID, decision)
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, services.ErrTicketNotFound):
		msg := fmt.Sprintf("Ticket %d not found in the database.", interaction.TicketID)
		h.postToChannel(c, interaction.ChannelID, msg, interaction.UserID)
		c.JSON(http.StatusOK, gin.H{"text": "ticket not found"})
		return
	case errors.Is(err, services.ErrDecisionConflict):
		stored, loadErr := h.tickets.GetByID(interaction.TicketID)
		msg := fmt.Sprintf("Ticket %d already has a decision.", interaction.TicketID)
		if loadErr == nil {
			msg = fmt.Sprintf("Ticket %s has already been %s.", stored.JiraIssueKey, stored.Status)
		}
		h.postToChannel(c, interaction.ChannelID, msg, interaction.UserID)
		c.JSON(http.StatusOK, gin.H{"text": "conflicting decision"})
		return
	case err != nil:
		logger.Errorf("[Slack] Failed to apply decision: %v", err)
		c.JSON(http.StatusOK, gin.H{"text": "failed to apply decision"})
		return
	}

	verb := "approved"
	if decision == models.StatusRejected {
		verb = "rejected"
	}
	msg := fmt.Sprintf("Ticket %s has been %s", ticket.JiraIssueKey, verb)
	if postErr := h.slack.PostMessage(ctx, interaction.ChannelID, msg, nil, interaction.UserID); postErr != nil {
		logger.Warnf("[Slack] Failed to post decision message: %v", postErr)
	}
	c.JSON(http.StatusOK, gin.H{"text": "completed"})
}

// interactionBody extracts the raw JSON payload from either encoding.
func (h *SlackHandler) interactionBody(c *gin.Context) ([]byte, bool) {
	contentType := c.GetHeader("Content-Type")
	if strings.Contains(contentType, "application/json") {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil || len(data) == 0 {
			return nil, false
		}
		return data, true
	}

	if payload := c.PostForm("payload"); payload != "" {
		return []byte(payload), true
	}

	// Fallback: some clients omit the content type on JSON bodies.
	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (h *SlackHandler) postToChannel(c *gin.Context, channel, msg, fallbackUser string) {
	if channel == "" {
		return
	}
	if err := h.slack.PostMessage(c.Request.Context(), channel, msg, nil, fallbackUser); err != nil {
		logger.Warnf("[Slack] Failed to post message to %s: %v", channel, err)
	}
}

// HandleEvents answers the Slack Events API. Only url_verification is
// handled; other event types are acknowledged and dropped.
func (h *SlackHandler) HandleEvents(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	var event struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	if event.Type == "url_verification" {
		c.JSON(http.StatusOK, gin.H{"challenge": event.Challenge})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
