package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultTimeout  = 30 * time.Second
)

// Config holds connection settings for an OpenAI-compatible chat endpoint.
// Referer and Title are sent as attribution headers when set, which
// OpenRouter uses for app rankings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client makes single-shot chat completion calls. It never retries; the
// enrichment stages classify failures themselves.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	headers  http.Header
	http     *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client from cfg. An empty BaseURL targets OpenAI.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		endpoint: strings.TrimSpace(cfg.BaseURL),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    strings.TrimSpace(cfg.Model),
		headers:  http.Header{},
		http:     &http.Client{Timeout: timeout},
	}
	if c.endpoint == "" {
		c.endpoint = defaultEndpoint
	}
	if referer := strings.TrimSpace(cfg.Referer); referer != "" {
		c.headers.Set("HTTP-Referer", referer)
	}
	if title := strings.TrimSpace(cfg.Title); title != "" {
		c.headers.Set("X-Title", title)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// HTTPStatusError reports a non-2xx response from the API.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, e.Body)
}

// CompleteJSON asks for a JSON object reply to the given prompts and returns
// the raw reply text.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "llm complete"
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", errors.New(op + ": system prompt required")
	case userPrompt == "":
		return "", errors.New(op + ": user prompt required")
	}
	req := c.newRequest(textMessage("system", systemPrompt), textMessage("user", userPrompt))
	req.ResponseFormat = &responseFormat{Type: "json_object"}
	return c.complete(ctx, op, req)
}

// DescribeImage sends one image URL with an instruction and returns the
// model's text reply.
func (c *Client) DescribeImage(ctx context.Context, instruction, imageURL string) (string, error) {
	const op = "llm describe"
	instruction = strings.TrimSpace(instruction)
	imageURL = strings.TrimSpace(imageURL)
	switch {
	case instruction == "":
		return "", errors.New(op + ": instruction required")
	case imageURL == "":
		return "", errors.New(op + ": image url required")
	}
	msg := message{Role: "user", Content: []part{
		{Type: "text", Text: instruction},
		{Type: "image_url", ImageURL: &imagePart{URL: imageURL}},
	}}
	return c.complete(ctx, op, c.newRequest(msg))
}

// HealthCheck asks the model for {"ok":true} to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	req := c.newRequest(
		textMessage("system", "Reply with JSON only."),
		textMessage("user", `Respond with {"ok":true}`),
	)
	req.ResponseFormat = &responseFormat{Type: "json_object"}
	reply, err := c.complete(ctx, "llm health", req)
	if err != nil {
		return err
	}
	var ping struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(reply, &ping); err != nil {
		return fmt.Errorf("llm health: parse reply: %w", err)
	}
	if !ping.OK {
		return errors.New("llm health: model did not acknowledge")
	}
	return nil
}

type request struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// message content is a plain string or a slice of parts.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type part struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	ImageURL *imagePart `json:"image_url,omitempty"`
}

type imagePart struct {
	URL string `json:"url"`
}

func textMessage(role, content string) message {
	return message{Role: role, Content: content}
}

func (c *Client) newRequest(messages ...message) request {
	return request{Model: c.model, Messages: messages}
}

type reply struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		// Legacy completions-style providers put the text here.
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete posts req and returns the first non-empty choice.
func (c *Client) complete(ctx context.Context, op string, req request) (string, error) {
	if !c.Configured() {
		return "", errors.New(op + ": api key required")
	}
	body, err := c.post(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var decoded reply
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	var finish, refusal string
	for _, choice := range decoded.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
		if text := strings.TrimSpace(choice.Text); text != "" {
			return text, nil
		}
		if finish == "" {
			finish = choice.FinishReason
		}
		if refusal == "" {
			refusal = strings.TrimSpace(choice.Message.Refusal)
		}
	}
	return "", fmt.Errorf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		op, finish, refusal, snippet(string(body)))
}

func (c *Client) post(ctx context.Context, payload request) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for key, values := range c.headers {
		httpReq.Header[key] = values
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
