package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/huangang/ticketflow/backend/internal/config"
	"github.com/huangang/ticketflow/backend/pkg/logger"
)

const (
	ActionApproveTicket = "approve_ticket"
	ActionRejectTicket  = "reject_ticket"
)

// SlackService posts messages and interactive prompts via the Slack Web API.
type SlackService struct {
	cfg    *config.SlackConfig
	client *http.Client
}

func NewSlackService(cfg *config.SlackConfig) *SlackService {
	return &SlackService{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SlackService) apiURL(method string) string {
	base := s.cfg.BaseURL
	if base == "" {
		base = "https://slack.com/api"
	}
	return strings.TrimSuffix(base, "/") + "/" + method
}

type slackAPIResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

func (s *SlackService) callAPI(ctx context.Context, method string, payload interface{}) (*slackAPIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack %s request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var apiResp slackAPIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse slack %s response: %w", method, err)
	}
	return &apiResp, nil
}

// PostMessage sends a message (with optional blocks) to a channel. When the
// channel is a DM id or the bot is not in the channel, it falls back to
// opening a conversation with fallbackUser and posting there.
func (s *SlackService) PostMessage(ctx context.Context, channel, text string, blocks []map[string]interface{}, fallbackUser string) error {
	if strings.HasPrefix(channel, "D") && fallbackUser != "" {
		if dm, err := s.openConversation(ctx, fallbackUser); err == nil {
			channel = dm
		}
	}

	payload := map[string]interface{}{
		"channel": channel,
		"text":    text,
	}
	if len(blocks) > 0 {
		payload["blocks"] = blocks
	}

	resp, err := s.callAPI(ctx, "chat.postMessage", payload)
	if err != nil {
		return err
	}
	if resp.OK {
		return nil
	}

	if (resp.Error == "channel_not_found" || resp.Error == "not_in_channel") && fallbackUser != "" {
		logger.Warnf("[Slack] post to %s failed (%s), falling back to DM with %s", channel, resp.Error, fallbackUser)
		dm, dmErr := s.openConversation(ctx, fallbackUser)
		if dmErr != nil {
			return fmt.Errorf("slack post failed (%s) and DM fallback failed: %w", resp.Error, dmErr)
		}
		payload["channel"] = dm
		retry, retryErr := s.callAPI(ctx, "chat.postMessage", payload)
		if retryErr != nil {
			return retryErr
		}
		if !retry.OK {
			return fmt.Errorf("slack post failed: %s", retry.Error)
		}
		return nil
	}

	return fmt.Errorf("slack post failed: %s", resp.Error)
}

// openConversation opens (or resumes) a DM with the given user and returns
// its channel id.
func (s *SlackService) openConversation(ctx context.Context, userID string) (string, error) {
	resp, err := s.callAPI(ctx, "conversations.open", map[string]interface{}{"users": userID})
	if err != nil {
		return "", err
	}
	if !resp.OK || resp.Channel.ID == "" {
		return "", fmt.Errorf("conversations.open failed: %s", resp.Error)
	}
	return resp.Channel.ID, nil
}

// ApprovalBlocks builds the interactive approve/reject prompt. The button
// values carry the persisted record id so the actions handler can look the
// ticket up by primary key.
func ApprovalBlocks(ticketID uint, issueKey string) []map[string]interface{} {
	value := strconv.FormatUint(uint64(ticketID), 10)
	return []map[string]interface{}{
		{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("Jira ticket *%s* has been created. Do you want to approve or reject it?", issueKey),
			},
		},
		{
			"type":     "actions",
			"block_id": "actions_" + value,
			"elements": []map[string]interface{}{
				{
					"type":      "button",
					"text":      map[string]interface{}{"type": "plain_text", "text": "Approve"},
					"style":     "primary",
					"value":     value,
					"action_id": ActionApproveTicket,
				},
				{
					"type":      "button",
					"text":      map[string]interface{}{"type": "plain_text", "text": "Reject"},
					"style":     "danger",
					"value":     value,
					"action_id": ActionRejectTicket,
				},
			},
		},
	}
}

// Interaction is one decoded block-action event.
type Interaction struct {
	ActionID  string
	TicketID  uint
	ChannelID string
	UserID    string
}

// ParseInteraction decodes a Slack interactive payload. Slack sends these
// either as a JSON body or as a form-encoded request with the JSON under the
// `payload` field; both encodings describe the same logical event.
func ParseInteraction(data []byte) (*Interaction, error) {
	var payload struct {
		Actions []struct {
			ActionID string `json:"action_id"`
			Value    string `json:"value"`
		} `json:"actions"`
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
		Container struct {
			ChannelID string `json:"channel_id"`
		} `json:"container"`
		ChannelID string `json:"channel_id"`
		User      struct {
			ID string `json:"id"`
		} `json:"user"`
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse interaction payload: %w", err)
	}
	if len(payload.Actions) == 0 {
		return nil, fmt.Errorf("interaction payload has no actions")
	}

	action := payload.Actions[0]
	id, err := strconv.ParseUint(action.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ticket id in action value %q", action.Value)
	}

	channel := payload.Channel.ID
	if channel == "" {
		channel = payload.Container.ChannelID
	}
	if channel == "" {
		channel = payload.ChannelID
	}

	return &Interaction{
		ActionID:  action.ActionID,
		TicketID:  uint(id),
		ChannelID: channel,
		UserID:    payload.User.ID,
	}, nil
}
