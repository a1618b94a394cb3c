package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/huangang/ticketflow/backend/internal/config"
	"github.com/huangang/ticketflow/backend/internal/models"
	"github.com/huangang/ticketflow/backend/pkg/logger"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const classifyPrompt = `You are a ticket triage assistant. Classify the following ticket into exactly one of these categories: Task, Bug, Incident, Feature Request, Question.
Reply with only the category name and nothing else.

Ticket:
%s`

type tierStatus int

const (
	tierSuccess tierStatus = iota
	tierUnavailable
	tierFailed
)

// tierResult is the tagged outcome of one classification tier. Unavailable
// means the tier is not configured or not reachable; it is an expected
// fallback signal, not an error.
type tierResult struct {
	Text   string
	Status tierStatus
	Reason error
}

type classifierTier interface {
	Name() string
	Classify(ctx context.Context, text string) tierResult
}

// Classification is the result of running the full tier chain.
type Classification struct {
	Label     models.Label
	RawOutput string // raw model reply, empty when no tier produced text
	Tier      string // name of the tier that produced the reply, "none" otherwise
	Matched   bool   // false when the default label was chosen without a rule match
}

// ClassifierService walks an ordered list of inference tiers and normalizes
// the first raw reply into a canonical label. Local runs before remote to
// keep cost and latency down when a local model is present; the order is a
// policy decision and must be preserved.
type ClassifierService struct {
	tiers []classifierTier
}

func NewClassifierService(cfg *config.ClassifierConfig) *ClassifierService {
	return &ClassifierService{
		tiers: []classifierTier{
			&localTier{cfg: &cfg.Local},
			&remoteTier{cfg: &cfg.Remote},
		},
	}
}

// Classify never fails: it always yields a valid label. When every tier is
// unavailable or fails, the default label is returned and the outcome is
// recorded for diagnostics.
func (s *ClassifierService) Classify(ctx context.Context, text string) Classification {
	prompt := fmt.Sprintf(classifyPrompt, text)

	for _, tier := range s.tiers {
		res := tier.Classify(ctx, prompt)
		switch res.Status {
		case tierSuccess:
			label, matched := NormalizeLabel(res.Text)
			if !matched {
				logger.Warnf("[Classifier] %s reply did not match any label, defaulting to %s: %q", tier.Name(), label, res.Text)
				LogWarning("classifier", "normalize_miss", "classifier reply matched no label", map[string]interface{}{
					"tier": tier.Name(),
					"raw":  res.Text,
				})
			}
			return Classification{Label: label, RawOutput: res.Text, Tier: tier.Name(), Matched: matched}
		case tierUnavailable:
			logger.Debug().Str("tier", tier.Name()).Msg("classifier tier unavailable, trying next")
		case tierFailed:
			logger.Warnf("[Classifier] %s tier failed: %v, trying next", tier.Name(), res.Reason)
		}
	}

	logger.Infof("[Classifier] no tier usable, using default label %s", models.DefaultLabel)
	LogInfo("classifier", "no_inference", "no classification tier was usable", nil)
	return Classification{Label: models.DefaultLabel, Tier: "none", Matched: false}
}

// NormalizeLabel maps arbitrary model text to a canonical label. It takes the
// first line of the reply, trims it, and compares case-insensitively against
// the canonical labels: exact match first, then prefix, then substring, each
// rule scanning labels in canonical order. Returns the default label and
// false when nothing matches.
func NormalizeLabel(raw string) (models.Label, bool) {
	line := raw
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return models.DefaultLabel, false
	}

	for _, label := range models.CanonicalLabels {
		if line == strings.ToLower(string(label)) {
			return label, true
		}
	}
	for _, label := range models.CanonicalLabels {
		if strings.HasPrefix(line, strings.ToLower(string(label))) {
			return label, true
		}
	}
	for _, label := range models.CanonicalLabels {
		if strings.Contains(line, strings.ToLower(string(label))) {
			return label, true
		}
	}

	return models.DefaultLabel, false
}

// localTier runs inference against a local Ollama server.
type localTier struct {
	cfg *config.LocalTierConfig
}

func (t *localTier) Name() string { return "local" }

func (t *localTier) Classify(ctx context.Context, prompt string) tierResult {
	if t.cfg.Model == "" {
		return tierResult{Status: tierUnavailable}
	}

	baseURL := t.cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return tierResult{Status: tierFailed, Reason: fmt.Errorf("invalid ollama base URL: %w", err)}
	}

	timeout := t.cfg.TimeoutSec
	if timeout <= 0 {
		timeout = 20
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	client := api.NewClient(u, http.DefaultClient)

	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model: t.cfg.Model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Options: map[string]interface{}{
			"temperature": 0.0,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return tierResult{Status: tierFailed, Reason: fmt.Errorf("ollama chat: %w", err)}
	}

	return tierResult{Status: tierSuccess, Text: content.String()}
}

// remoteTier issues one chat-completion request against a hosted provider.
// The provider switch mirrors the label-only instruction across SDKs.
type remoteTier struct {
	cfg *config.RemoteTierConfig
}

func (t *remoteTier) Name() string { return "remote" }

func (t *remoteTier) Classify(ctx context.Context, prompt string) tierResult {
	if t.cfg.APIKey == "" {
		return tierResult{Status: tierUnavailable}
	}

	timeout := t.cfg.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var (
		text string
		err  error
	)
	switch t.cfg.Provider {
	case "anthropic":
		text, err = t.callAnthropic(ctx, prompt)
	case "gemini":
		text, err = t.callGemini(ctx, prompt)
	default:
		// openai and OpenAI-compatible services
		text, err = t.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return tierResult{Status: tierFailed, Reason: err}
	}

	return tierResult{Status: tierSuccess, Text: text}
}

func (t *remoteTier) callOpenAI(ctx context.Context, prompt string) (string, error) {
	clientConfig := openai.DefaultConfig(t.cfg.APIKey)
	if t.cfg.BaseURL != "" {
		clientConfig.BaseURL = t.cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	model := t.cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}

func (t *remoteTier) callAnthropic(ctx context.Context, prompt string) (string, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(t.cfg.APIKey),
	)

	model := t.cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 32,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

func (t *remoteTier) callGemini(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: t.cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini client error: %w", err)
	}

	model := t.cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	return resp.Text(), nil
}
