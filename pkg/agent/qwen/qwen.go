// Package qwen implements the agent execution port against an
// OpenAI-compatible chat-completions endpoint (a local Qwen model served by
// ollama or similar). Each task configures an MCP filesystem server whose
// allowed roots come from the task's capability-argument list.
package qwen

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcplink/mcplink/pkg/agent"
	"github.com/mcplink/mcplink/pkg/log"
)

// Config describes the model server connection.
type Config struct {
	// BaseURL is the OpenAI-compatible API root, e.g.
	// "http://192.168.0.118:11434/v1". Required.
	BaseURL string
	// APIKey is sent as a bearer token. Local servers typically accept any
	// value ("ollama").
	APIKey string
	// Model is the model identifier, e.g. "qwen3:8b".
	Model string
	// TopP is the nucleus sampling parameter.
	TopP float64
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client configures per-task agent handles. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New builds a Client. Configuration is validated at Init time so a
// misconfigured client fails the task that uses it, not process startup.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Init prepares a handle whose MCP filesystem server is restricted to the
// given argument list.
func (c *Client) Init(ctx context.Context, args []string) (agent.Handle, error) {
	if c.cfg.BaseURL == "" {
		return nil, fmt.Errorf("model server base_url is not configured")
	}
	if c.cfg.Model == "" {
		return nil, fmt.Errorf("model is not configured")
	}

	fsArgs := append([]string{"-y", "@modelcontextprotocol/server-filesystem"}, args...)
	tools := []map[string]interface{}{
		{
			"mcpServers": map[string]interface{}{
				"filesystem": map[string]interface{}{
					"command": "npx",
					"args":    fsArgs,
				},
			},
		},
	}

	log.Debug("qwen agent configured", "model", c.cfg.Model, "server", c.cfg.BaseURL, "args", args)
	return &handle{client: c, tools: tools}, nil
}

type handle struct {
	client *Client
	tools  []map[string]interface{}
}

type chatRequest struct {
	Model    string                   `json:"model"`
	Messages []agent.Message          `json:"messages"`
	Stream   bool                     `json:"stream"`
	TopP     float64                  `json:"top_p,omitempty"`
	Tools    []map[string]interface{} `json:"tools,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Run submits the messages and streams the response. The provider sends
// content deltas; Run accumulates them and yields the full running content
// per chunk, which is the replace-semantics contract of the port.
func (h *handle) Run(ctx context.Context, messages []agent.Message) (<-chan agent.Chunk, error) {
	body, err := json.Marshal(chatRequest{
		Model:    h.client.cfg.Model,
		Messages: messages,
		Stream:   true,
		TopP:     h.client.cfg.TopP,
		Tools:    h.tools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := strings.TrimSuffix(h.client.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.client.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.client.cfg.APIKey)
	}

	resp, err := h.client.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("model server error (status %d): %s", resp.StatusCode, string(respBody))
	}

	out := make(chan agent.Chunk)
	go h.stream(ctx, resp.Body, out)
	return out, nil
}

func (h *handle) stream(ctx context.Context, body io.ReadCloser, out chan<- agent.Chunk) {
	defer close(out)
	defer body.Close()

	var content strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			log.Warn("skipping undecodable stream chunk", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		content.WriteString(chunk.Choices[0].Delta.Content)

		select {
		case out <- agent.Chunk{Content: content.String()}:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case out <- agent.Chunk{Err: fmt.Errorf("model stream interrupted: %w", err)}:
		case <-ctx.Done():
		}
	}
}
