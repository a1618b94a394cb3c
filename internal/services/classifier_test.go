package services

import (
	"context"
	"errors"
	"testing"

	"github.com/huangang/ticketflow/backend/internal/config"
	"github.com/huangang/ticketflow/backend/internal/models"
)

type stubTier struct {
	name   string
	result tierResult
	calls  int
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Classify(ctx context.Context, text string) tierResult {
	s.calls++
	return s.result
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.Label
		matched bool
	}{
		{"exact match", "Bug", models.LabelBug, true},
		{"exact lowercase", "bug", models.LabelBug, true},
		{"exact uppercase", "INCIDENT", models.LabelIncident, true},
		{"surrounding whitespace", "  Feature Request  ", models.LabelFeatureRequest, true},
		{"prefix match", "bug: crashes on save", models.LabelBug, true},
		{"prefix with punctuation", "Task - update the docs", models.LabelTask, true},
		{"substring match", "this is clearly a question", models.LabelQuestion, true},
		{"first line only", "Bug\nsome explanation why", models.LabelBug, true},
		{"first line only crlf", "Incident\r\ndetails", models.LabelIncident, true},
		{"label only on second line", "I think:\nBug", models.DefaultLabel, false},
		{"empty", "", models.DefaultLabel, false},
		{"whitespace only", "   \n", models.DefaultLabel, false},
		{"no match", "banana", models.DefaultLabel, false},
		{"two labels substring uses canonical order", "maybe a bug, maybe a task", models.LabelTask, true},
		{"multi word label", "feature request for dark mode", models.LabelFeatureRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := NormalizeLabel(tt.raw)
			if got != tt.want {
				t.Errorf("NormalizeLabel(%q) label = %q, want %q", tt.raw, got, tt.want)
			}
			if matched != tt.matched {
				t.Errorf("NormalizeLabel(%q) matched = %v, want %v", tt.raw, matched, tt.matched)
			}
		})
	}
}

func TestClassify_FirstTierSuccess(t *testing.T) {
	local := &stubTier{name: "local", result: tierResult{Status: tierSuccess, Text: "Bug"}}
	remote := &stubTier{name: "remote", result: tierResult{Status: tierSuccess, Text: "Task"}}
	svc := &ClassifierService{tiers: []classifierTier{local, remote}}

	cls := svc.Classify(context.Background(), "the app crashes")

	if cls.Label != models.LabelBug {
		t.Errorf("expected Bug, got %s", cls.Label)
	}
	if cls.Tier != "local" {
		t.Errorf("expected tier local, got %s", cls.Tier)
	}
	if !cls.Matched {
		t.Error("expected matched = true")
	}
	if remote.calls != 0 {
		t.Errorf("remote tier should not be called, got %d calls", remote.calls)
	}
}

func TestClassify_FallsBackOnUnavailable(t *testing.T) {
	local := &stubTier{name: "local", result: tierResult{Status: tierUnavailable}}
	remote := &stubTier{name: "remote", result: tierResult{Status: tierSuccess, Text: "Incident"}}
	svc := &ClassifierService{tiers: []classifierTier{local, remote}}

	cls := svc.Classify(context.Background(), "prod is down")

	if cls.Label != models.LabelIncident {
		t.Errorf("expected Incident, got %s", cls.Label)
	}
	if cls.Tier != "remote" {
		t.Errorf("expected tier remote, got %s", cls.Tier)
	}
}

func TestClassify_FallsBackOnFailure(t *testing.T) {
	local := &stubTier{name: "local", result: tierResult{Status: tierFailed, Reason: errors.New("connection refused")}}
	remote := &stubTier{name: "remote", result: tierResult{Status: tierSuccess, Text: "Question"}}
	svc := &ClassifierService{tiers: []classifierTier{local, remote}}

	cls := svc.Classify(context.Background(), "how do I reset my password")

	if cls.Label != models.LabelQuestion {
		t.Errorf("expected Question, got %s", cls.Label)
	}
	if cls.Tier != "remote" {
		t.Errorf("expected tier remote, got %s", cls.Tier)
	}
}

func TestClassify_AllTiersUnusable(t *testing.T) {
	local := &stubTier{name: "local", result: tierResult{Status: tierUnavailable}}
	remote := &stubTier{name: "remote", result: tierResult{Status: tierFailed, Reason: errors.New("401")}}
	svc := &ClassifierService{tiers: []classifierTier{local, remote}}

	cls := svc.Classify(context.Background(), "anything")

	if cls.Label != models.DefaultLabel {
		t.Errorf("expected default label %s, got %s", models.DefaultLabel, cls.Label)
	}
	if cls.Tier != "none" {
		t.Errorf("expected tier none, got %s", cls.Tier)
	}
	if cls.Matched {
		t.Error("expected matched = false")
	}
}

func TestClassify_GarbledReplyUsesDefault(t *testing.T) {
	local := &stubTier{name: "local", result: tierResult{Status: tierSuccess, Text: "I cannot classify this"}}
	svc := &ClassifierService{tiers: []classifierTier{local}}

	cls := svc.Classify(context.Background(), "something odd")

	if cls.Label != models.DefaultLabel {
		t.Errorf("expected default label, got %s", cls.Label)
	}
	if cls.Matched {
		t.Error("expected matched = false for garbled reply")
	}
	if cls.RawOutput != "I cannot classify this" {
		t.Errorf("raw output should be preserved, got %q", cls.RawOutput)
	}
}

func TestLocalTier_UnavailableWithoutModel(t *testing.T) {
	tier := &localTier{cfg: &config.LocalTierConfig{}}
	res := tier.Classify(context.Background(), "prompt")
	if res.Status != tierUnavailable {
		t.Errorf("expected unavailable without a model, got %v", res.Status)
	}
}

func TestRemoteTier_UnavailableWithoutAPIKey(t *testing.T) {
	tier := &remoteTier{cfg: &config.RemoteTierConfig{Provider: "openai"}}
	res := tier.Classify(context.Background(), "prompt")
	if res.Status != tierUnavailable {
		t.Errorf("expected unavailable without an API key, got %v", res.Status)
	}
}
