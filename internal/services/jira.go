package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/huangang/ticketflow/backend/internal/config"
	"github.com/huangang/ticketflow/backend/pkg/logger"
)

// TrackerError carries the tracker's HTTP status and raw response body so the
// caller can surface it for diagnostics.
type TrackerError struct {
	Status int
	Body   string
}

func (e *TrackerError) Error() string {
	return fmt.Sprintf("tracker request failed: status=%d body=%s", e.Status, e.Body)
}

// JiraService talks to the Jira REST v3 API.
type JiraService struct {
	cfg    *config.JiraConfig
	client *http.Client
}

func NewJiraService(cfg *config.JiraConfig) *JiraService {
	return &JiraService{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *JiraService) authHeader() string {
	auth := s.cfg.Email + ":" + s.cfg.APIToken
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
}

// buildIssuePayload builds the create-issue request body. The description is
// an Atlassian Document Format document, not plain text.
func buildIssuePayload(summary, description, projectID, issueTypeID string) map[string]interface{} {
	text := strings.TrimSpace(description)
	if text == "" {
		text = "No description"
	}

	adfDescription := map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []map[string]interface{}{
			{
				"type": "paragraph",
				"content": []map[string]interface{}{
					{"type": "text", "text": text},
				},
			},
		},
	}

	return map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"id": projectID},
			"issuetype":   map[string]string{"id": issueTypeID},
			"summary":     summary,
			"description": adfDescription,
			"labels":      []string{},
		},
	}
}

// CreateIssue creates a tracker issue and returns its key. A non-201 reply is
// returned as a *TrackerError with the raw body preserved.
func (s *JiraService) CreateIssue(ctx context.Context, summary, description, issueTypeID string) (string, error) {
	payload := buildIssuePayload(summary, description, s.cfg.ProjectID, issueTypeID)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal issue payload: %w", err)
	}

	url := strings.TrimSuffix(s.cfg.BaseURL, "/") + "/rest/api/3/issue"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("jira create issue request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		logger.Warnf("[Jira] Issue creation failed: status=%d body=%s", resp.StatusCode, string(respBody))
		return "", &TrackerError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil || created.Key == "" {
		return "", &TrackerError{Status: resp.StatusCode, Body: string(respBody)}
	}

	logger.Infof("[Jira] Issue created: %s", created.Key)
	return created.Key, nil
}

// GetIssueStatus returns the tracker status name for an issue key.
func (s *JiraService) GetIssueStatus(ctx context.Context, issueKey string) (string, error) {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return "", fmt.Errorf("issue key is empty")
	}

	url := strings.TrimSuffix(s.cfg.BaseURL, "/") + "/rest/api/3/issue/" + issueKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.authHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("jira get issue request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &TrackerError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var issue struct {
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return "", fmt.Errorf("parse jira issue response: %w", err)
	}
	if issue.Fields.Status.Name == "" {
		return "Unknown", nil
	}

	return issue.Fields.Status.Name, nil
}
