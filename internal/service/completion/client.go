// Package completion talks to the external text-generation service.
//
// Client speaks the OpenRouter (OpenAI-compatible) chat completions API
// directly. ModelCompleter adapts any eino chat model, which is how the Ark
// provider is plugged in. Both turn failures into sentinel errors that
// ReplyText maps to user-visible assistant text.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-3.5-turbo"

	// MaxResponseSize caps how much of an upstream body is read.
	MaxResponseSize = 10 * 1024 * 1024
)

// WireMessage is one entry of the upstream "messages" array.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the upstream request body.
type Request struct {
	Model    string        `json:"model"`
	Messages []WireMessage `json:"messages"`
}

type response struct {
	Choices []struct {
		Message *struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// content extracts choices[0].message.content, falling back to FallbackReply
// when it is absent, null, empty or not a string.
func (r *response) content() string {
	if len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return FallbackReply
	}

	var text string
	if err := json.Unmarshal(r.Choices[0].Message.Content, &text); err != nil || text == "" {
		return FallbackReply
	}
	return text
}

// Client is an OpenRouter chat completions client. It performs exactly one
// request per call: no retries, no client-side timeout, no streaming.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	siteURL    string
	siteName   string
	httpClient *http.Client
}

// NewClient creates a client for apiKey. An empty key is allowed; every call
// then fails with ErrMissingCredential.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func (c *Client) WithBaseURL(url string) *Client {
	if url = strings.TrimSpace(url); url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithModel sets the model identifier sent upstream.
func (c *Client) WithModel(model string) *Client {
	if model = strings.TrimSpace(model); model != "" {
		c.model = model
	}
	return c
}

// WithAttribution sets the optional OpenRouter HTTP-Referer and X-Title headers.
func (c *Client) WithAttribution(siteURL, siteName string) *Client {
	c.siteURL = strings.TrimSpace(siteURL)
	c.siteName = strings.TrimSpace(siteName)
	return c
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, history []chat.Message) (string, error) {
	return c.send(ctx, ToWireMessages(history))
}

// ToWireMessages maps chat history to upstream messages. User messages keep
// the user role; everything else is sent as assistant.
func ToWireMessages(history []chat.Message) []WireMessage {
	out := make([]WireMessage, 0, len(history))
	for _, msg := range history {
		role := string(chat.RoleAssistant)
		if msg.Sender == chat.RoleUser {
			role = string(chat.RoleUser)
		}
		out = append(out, WireMessage{Role: role, Content: msg.Content})
	}
	return out
}

func (c *Client) send(ctx context.Context, messages []WireMessage) (string, error) {
	if !c.IsConfigured() {
		return "", ErrMissingCredential
	}

	body, err := json.Marshal(Request{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[completion] POST %s failed after %v", req.URL.Path, time.Since(start))
		return "", fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	log.Printf("[completion] POST %s -> %d (%v, model=%s, messages=%d)", req.URL.Path, resp.StatusCode, time.Since(start), c.model, len(messages))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return "", &UpstreamStatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTransportFailure, err)
	}
	if len(raw) > MaxResponseSize {
		return "", fmt.Errorf("%w: response exceeds %d bytes", ErrTransportFailure, MaxResponseSize)
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrTransportFailure, err)
	}
	return parsed.content(), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}
