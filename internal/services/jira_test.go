package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/huangang/ticketflow/backend/internal/config"
)

func newTestJira(baseURL string) *JiraService {
	return NewJiraService(&config.JiraConfig{
		BaseURL:   baseURL,
		Email:     "bot@example.com",
		APIToken:  "token",
		ProjectID: "10000",
	})
}

func TestBuildIssuePayload(t *testing.T) {
	payload := buildIssuePayload("my summary", "my description", "10000", "10001")

	fields, ok := payload["fields"].(map[string]interface{})
	if !ok {
		t.Fatal("payload has no fields object")
	}
	if fields["summary"] != "my summary" {
		t.Errorf("summary = %v", fields["summary"])
	}

	desc, ok := fields["description"].(map[string]interface{})
	if !ok {
		t.Fatal("description is not an ADF document")
	}
	if desc["type"] != "doc" || desc["version"] != 1 {
		t.Errorf("description is not a v1 doc: type=%v version=%v", desc["type"], desc["version"])
	}

	content := desc["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "paragraph" {
		t.Fatalf("expected one paragraph, got %v", content)
	}
	inner := content[0]["content"].([]map[string]interface{})
	if inner[0]["text"] != "my description" {
		t.Errorf("description text = %v", inner[0]["text"])
	}
}

func TestBuildIssuePayload_EmptyDescription(t *testing.T) {
	payload := buildIssuePayload("summary", "   ", "10000", "10001")

	fields := payload["fields"].(map[string]interface{})
	desc := fields["description"].(map[string]interface{})
	content := desc["content"].([]map[string]interface{})
	inner := content[0]["content"].([]map[string]interface{})
	if inner[0]["text"] != "No description" {
		t.Errorf("empty description should become %q, got %v", "No description", inner[0]["text"])
	}
}

func TestCreateIssue_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "10101", "key": "KAN-7"})
	}))
	defer server.Close()

	svc := newTestJira(server.URL)
	key, err := svc.CreateIssue(context.Background(), "crash on save", "crash on save", "10001")
	if err != nil {
		t.Fatalf("CreateIssue returned error: %v", err)
	}
	if key != "KAN-7" {
		t.Errorf("key = %q, want KAN-7", key)
	}
	if gotPath != "/rest/api/3/issue" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "Basic ") {
		t.Errorf("expected basic auth header, got %q", gotAuth)
	}

	fields := gotBody["fields"].(map[string]interface{})
	project := fields["project"].(map[string]interface{})
	if project["id"] != "10000" {
		t.Errorf("project id = %v", project["id"])
	}
	issuetype := fields["issuetype"].(map[string]interface{})
	if issuetype["id"] != "10001" {
		t.Errorf("issuetype id = %v", issuetype["id"])
	}
}

func TestCreateIssue_FailureReturnsTrackerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages":["issuetype is required"]}`))
	}))
	defer server.Close()

	svc := newTestJira(server.URL)
	_, err := svc.CreateIssue(context.Background(), "summary", "description", "10001")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var trackerErr *TrackerError
	if !errors.As(err, &trackerErr) {
		t.Fatalf("expected *TrackerError, got %T: %v", err, err)
	}
	if trackerErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", trackerErr.Status)
	}
	if !strings.Contains(trackerErr.Body, "issuetype is required") {
		t.Errorf("body should preserve the tracker response, got %q", trackerErr.Body)
	}
}

func TestGetIssueStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/KAN-7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"fields": map[string]interface{}{
				"status": map[string]string{"name": "In Progress"},
			},
		})
	}))
	defer server.Close()

	svc := newTestJira(server.URL)
	status, err := svc.GetIssueStatus(context.Background(), "KAN-7")
	if err != nil {
		t.Fatalf("GetIssueStatus returned error: %v", err)
	}
	if status != "In Progress" {
		t.Errorf("status = %q", status)
	}
}

func TestGetIssueStatus_MissingStatusName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"fields": map[string]interface{}{}})
	}))
	defer server.Close()

	svc := newTestJira(server.URL)
	status, err := svc.GetIssueStatus(context.Background(), "KAN-8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "Unknown" {
		t.Errorf("status = %q, want Unknown", status)
	}
}

func TestGetIssueStatus_EmptyKey(t *testing.T) {
	svc := newTestJira("http://example.invalid")
	if _, err := svc.GetIssueStatus(context.Background(), "  "); err == nil {
		t.Error("expected error for empty issue key")
	}
}
