package completion

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"specforge/internal/types"
)

// OpenAIConfig configures an OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey string
	Model  string

	// BaseURL may be the API root or the full chat completions URL.
	BaseURL string

	// Azure selects the "api-key" auth header and deployment-style URLs.
	Azure      bool
	APIVersion string

	Params  Params
	Timeout time.Duration
}

// OpenAIClient implements Client using the go-openai SDK.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	provider string
	params   Params
}

// NewOpenAIClient creates an OpenAI or Azure OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	var clientCfg openai.ClientConfig
	provider := "openai"
	model := cfg.Model

	if cfg.Azure {
		provider = "azure"
		base, deployment, version := splitAzureURL(cfg.BaseURL)
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, base)
		if version == "" {
			version = cfg.APIVersion
		}
		if version != "" {
			clientCfg.APIVersion = version
		}
		if deployment != "" {
			clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
			if model == "" {
				model = deployment
			}
		}
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if base := trimCompletionsPath(cfg.BaseURL); base != "" {
			clientCfg.BaseURL = base
		}
	}

	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	params := cfg.Params
	if params.MaxTokens <= 0 {
		params = DefaultParams()
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		provider: provider,
		params:   params,
	}
}

// Provider returns "openai" or "azure".
func (c *OpenAIClient) Provider() string { return c.provider }

// Model returns the configured model or deployment.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the conversation and returns the trimmed reply.
func (c *OpenAIClient) Complete(ctx context.Context, conv types.Conversation) (string, error) {
	if len(conv) == 0 {
		return "", ErrEmptyConversation
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(conv))
	for _, m := range conv {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.params.MaxTokens,
		Temperature: c.params.Temperature,
	})
	if err != nil {
		return "", c.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &RemoteServiceError{
			Provider: c.provider,
			Status:   http.StatusOK,
			Body:     "response contained no choices",
		}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) wrapError(err error) error {
	rerr := &RemoteServiceError{Provider: c.provider, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		rerr.Status = apiErr.HTTPStatusCode
		rerr.Body = apiErr.Message
	case errors.As(err, &reqErr):
		rerr.Status = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			rerr.Body = reqErr.Err.Error()
		}
	}
	return rerr
}

func openAIRole(r types.Role) string {
	switch r {
	case types.RoleSystem:
		return openai.ChatMessageRoleSystem
	case types.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// trimCompletionsPath turns a full ".../chat/completions" URL into the API root.
func trimCompletionsPath(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	return strings.TrimSuffix(base, "/chat/completions")
}

// splitAzureURL accepts either a resource root or a full deployment URL such as
// https://res.openai.azure.com/openai/deployments/gpt/chat/completions?api-version=2024-02-01
// and returns the resource root, deployment name and api-version.
func splitAzureURL(raw string) (base, deployment, version string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return trimCompletionsPath(raw), "", ""
	}

	version = u.Query().Get("api-version")
	u.RawQuery = ""

	const marker = "/openai/deployments/"
	if idx := strings.Index(u.Path, marker); idx >= 0 {
		rest := u.Path[idx+len(marker):]
		deployment, _, _ = strings.Cut(rest, "/")
		u.Path = u.Path[:idx]
	}

	return strings.TrimRight(u.String(), "/"), deployment, version
}
