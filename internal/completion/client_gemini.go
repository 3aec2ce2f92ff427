package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"specforge/internal/types"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional endpoint override
	Params  Params
	Timeout time.Duration
}

// GeminiClient implements Client using google.golang.org/genai.
type GeminiClient struct {
	client *genai.Client
	model  string
	params Params
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	params := cfg.Params
	if params.MaxTokens <= 0 {
		params = DefaultParams()
	}

	return &GeminiClient{client: client, model: cfg.Model, params: params}, nil
}

// Provider returns "gemini".
func (c *GeminiClient) Provider() string { return "gemini" }

// Model returns the configured model.
func (c *GeminiClient) Model() string { return c.model }

// Complete sends the conversation and returns the trimmed reply.
func (c *GeminiClient) Complete(ctx context.Context, conv types.Conversation) (string, error) {
	if len(conv) == 0 {
		return "", ErrEmptyConversation
	}

	contents, system := geminiContents(conv)
	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.params.Temperature),
		MaxOutputTokens: int32(c.params.MaxTokens),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return "", wrapGeminiError(err)
	}
	if resp == nil {
		return "", &RemoteServiceError{Provider: "gemini", Body: "empty response"}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &RemoteServiceError{Provider: "gemini", Status: http.StatusOK, Body: "response contained no text"}
	}
	return text, nil
}

// wrapGeminiError keeps the HTTP status and message of API failures.
// The SDK returns genai.APIError by value; the pointer form is matched too.
func wrapGeminiError(err error) error {
	rerr := &RemoteServiceError{Provider: "gemini", Err: err}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		rerr.Status = apiErr.Code
		rerr.Body = apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		rerr.Status = apiErrPtr.Code
		rerr.Body = apiErrPtr.Message
	}
	return rerr
}

// geminiContents maps turns onto Gemini roles. System turns are folded into
// the system instruction; assistant turns become model turns.
func geminiContents(conv types.Conversation) ([]*genai.Content, string) {
	contents := make([]*genai.Content, 0, len(conv))
	var system []string

	for _, m := range conv {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}
