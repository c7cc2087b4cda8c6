package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "glm-4"

	// DefaultMaxTokens bounds the generated answer.
	DefaultMaxTokens = 4096
)

// ChatClient implements LLM against an OpenAI-style chat-completions API.
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// ChatOption is a functional option for configuring ChatClient.
type ChatOption func(*ChatClient)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) ChatOption {
	return func(c *ChatClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) ChatOption {
	return func(c *ChatClient) {
		c.apiKey = key
	}
}

// WithModel sets the default model.
func WithModel(model string) ChatOption {
	return func(c *ChatClient) {
		c.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatClient) {
		c.httpClient = client
	}
}

// NewChatClient creates a chat client with the given options.
func NewChatClient(opts ...ChatOption) *ChatClient {
	c := &ChatClient{
		model: DefaultModel,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // generation is slow
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

// Generate sends the prompt as a single user message and returns the model's
// reply. All failures match ErrGeneration.
func (c *ChatClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrGeneration, resp.StatusCode, string(msg))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrGeneration, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response contains no choices", ErrGeneration)
	}

	// Some deployments return message.content, older ones plain text.
	choice := parsed.Choices[0]
	if choice.Message.Content != "" {
		return strings.TrimSpace(choice.Message.Content), nil
	}
	if choice.Text != "" {
		return strings.TrimSpace(choice.Text), nil
	}
	return "", fmt.Errorf("%w: choice carries neither message content nor text", ErrGeneration)
}

var _ LLM = (*ChatClient)(nil)
