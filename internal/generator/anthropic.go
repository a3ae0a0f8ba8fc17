package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicClient is the default RuleGenerator adapter, grounded on the
// request/response shape of the teacher's OpenAI client but targeting the
// Anthropic Messages API. Temperature is pinned to 0 per spec §4.4's
// reproducibility requirement.
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicClient constructs a client using ANTHROPIC_API_KEY-style
// credentials and a pinned model identifier.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) ([]rules.DraftRule, error) {
	body := anthropicRequest{
		Model:       c.model,
		MaxTokens:   4096,
		Temperature: 0,
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: buildUserPrompt(req)}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("generator: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("generator: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generator: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("generator: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("generator: api error: %s", decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator: unexpected status %d", resp.StatusCode)
	}
	if len(decoded.Content) == 0 {
		return nil, fmt.Errorf("generator: empty response content")
	}

	return parseDraftRules(decoded.Content[0].Text)
}

// parseDraftRules decodes and schema-validates the generator's structured
// JSON array output.
func parseDraftRules(text string) ([]rules.DraftRule, error) {
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("generator: response is not valid JSON: %w", err)
	}
	if err := validateDraftPayload(raw); err != nil {
		return nil, fmt.Errorf("generator: response failed structured schema: %w", err)
	}

	var drafts []rules.DraftRule
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return nil, fmt.Errorf("generator: failed to decode drafts: %w", err)
	}
	for i := range drafts {
		if drafts[i].AppliesToRoles == nil {
			drafts[i].AppliesToRoles = []string{}
		}
	}
	return drafts, nil
}
