// Package llm talks to OpenAI-compatible, Anthropic, and Google
// Gemini chat endpoints to enrich a deterministically parsed code
// snippet with a human-readable title, description, and lexical
// metadata.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeindex/internal/config"
)

// Provider identifies which chat API a Client speaks.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// EnrichRequest carries everything a provider needs to describe one
// code snippet in its surrounding document.
type EnrichRequest struct {
	Language      string
	Code          string
	SectionTitle  string
	ContextBefore string
	DocumentURL   string
	Timeout       time.Duration
}

// EnrichResult is the structured output of a successful enrichment.
type EnrichResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	SnippetType string   `json:"snippet_type"`
	Functions   []string `json:"functions"`
	Imports     []string `json:"imports"`
	Keywords    []string `json:"keywords"`
}

// Client is the abstraction the enrichment pool depends on.
type Client interface {
	Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error)
}

const systemPrompt = "You are a JSON-only code documentation assistant. " +
	"Given a code snippet and its surrounding context, respond with a single JSON " +
	"object with keys: title (short, <= 8 words), description (one or two sentences), " +
	"snippet_type (one of function, class, example, config, code), functions (array of " +
	"function/method names defined or called), imports (array of imported modules/packages), " +
	"keywords (array of notable identifiers or concepts). Respond with no extra text."

func userPrompt(req EnrichRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document: %s\n", req.DocumentURL)
	if req.SectionTitle != "" {
		fmt.Fprintf(&sb, "Section: %s\n", req.SectionTitle)
	}
	if req.ContextBefore != "" {
		fmt.Fprintf(&sb, "Preceding text:\n%s\n", req.ContextBefore)
	}
	fmt.Fprintf(&sb, "Language: %s\nCode:\n%s\n", req.Language, req.Code)
	return sb.String()
}

// marshalWithExtra JSON-encodes body, then overlays extra's keys on
// top of the result so provider-specific request flags can reach the
// wire without a dedicated struct field for each one.
func marshalWithExtra(body any, extra map[string]any) ([]byte, error) {
	base, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// parseJSONResult tries the whole string first, then falls back to
// the first {...} block, since chat models occasionally wrap JSON in
// prose despite instructions not to.
func parseJSONResult(content string) (EnrichResult, error) {
	var res EnrichResult
	if err := json.Unmarshal([]byte(content), &res); err == nil {
		return res, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return EnrichResult{}, errors.New("no JSON object found in content")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &res); err != nil {
		return EnrichResult{}, err
	}
	return res, nil
}

// NewClientFromConfig constructs a Client for the configured default
// provider. An empty provider or missing credentials is reported as
// an error; callers treat that as "enrichment disabled" rather than a
// fatal condition.
func NewClientFromConfig(cfg *config.LLMConfig) (Client, error) {
	prov := Provider(strings.ToLower(strings.TrimSpace(cfg.DefaultProvider)))

	switch prov {
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" || cfg.OpenAI.Model == "" {
			return nil, errors.New("openai llm provider is not fully configured")
		}
		return &openAIClient{
			apiKey:      cfg.OpenAI.APIKey,
			baseURL:     cfg.OpenAI.BaseURL,
			model:       cfg.OpenAI.Model,
			http:        &http.Client{Timeout: 30 * time.Second},
			extraParams: cfg.ExtraParams,
		}, nil
	case ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" || cfg.Anthropic.Model == "" {
			return nil, errors.New("anthropic llm provider is not fully configured")
		}
		return &anthropicClient{
			apiKey:      cfg.Anthropic.APIKey,
			model:       cfg.Anthropic.Model,
			http:        &http.Client{Timeout: 30 * time.Second},
			extraParams: cfg.ExtraParams,
		}, nil
	case ProviderGoogle:
		if cfg.Google.APIKey == "" || cfg.Google.Model == "" {
			return nil, errors.New("google llm provider is not fully configured")
		}
		return &googleClient{
			apiKey:      cfg.Google.APIKey,
			model:       cfg.Google.Model,
			http:        &http.Client{Timeout: 30 * time.Second},
			extraParams: cfg.ExtraParams,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported or unset llm provider: %q", cfg.DefaultProvider)
	}
}

type openAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	http        *http.Client
	extraParams map[string]any
}

type anthropicClient struct {
	apiKey      string
	model       string
	http        *http.Client
	extraParams map[string]any
}

type googleClient struct {
	apiKey      string
	model       string
	http        *http.Client
	extraParams map[string]any
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicTextContent `json:"content"`
}

type anthropicTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagesResponse struct {
	Content []anthropicTextContent `json:"content"`
}

type googleGenerateContentRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleGenerateContentResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (c *openAIClient) Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error) {
	body := openAIChatRequest{
		Model: c.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature:    0.0,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}

	payload, err := marshalWithExtra(body, c.extraParams)
	if err != nil {
		return EnrichResult{}, err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint += "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return EnrichResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return EnrichResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return EnrichResult{}, fmt.Errorf("openai chat completion failed with status %d", resp.StatusCode)
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return EnrichResult{}, err
	}
	if len(parsed.Choices) == 0 {
		return EnrichResult{}, errors.New("openai chat completion returned no choices")
	}

	return parseJSONResult(parsed.Choices[0].Message.Content)
}

func (c *anthropicClient) Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error) {
	body := anthropicMessagesRequest{
		Model:     c.model,
		MaxTokens: 512,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicTextContent{{Type: "text", Text: userPrompt(req)}}},
		},
	}

	payload, err := marshalWithExtra(body, c.extraParams)
	if err != nil {
		return EnrichResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return EnrichResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return EnrichResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return EnrichResult{}, fmt.Errorf("anthropic messages request failed with status %d", resp.StatusCode)
	}

	var parsed anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return EnrichResult{}, err
	}
	if len(parsed.Content) == 0 {
		return EnrichResult{}, errors.New("anthropic messages returned no content")
	}

	return parseJSONResult(parsed.Content[0].Text)
}

func (c *googleClient) Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error) {
	body := googleGenerateContentRequest{
		Contents: []googleContent{{Parts: []googlePart{{Text: systemPrompt + "\n\n" + userPrompt(req)}}}},
	}

	payload, err := marshalWithExtra(body, c.extraParams)
	if err != nil {
		return EnrichResult{}, err
	}

	endpoint := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		c.model, url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return EnrichResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return EnrichResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return EnrichResult{}, fmt.Errorf("google generateContent failed with status %d", resp.StatusCode)
	}

	var parsed googleGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return EnrichResult{}, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return EnrichResult{}, errors.New("google generateContent returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return parseJSONResult(sb.String())
}
