package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llm_share/internal/models"
)

const (
	defaultTimeout      = 300 * time.Second
	chatCompletionsPath = "/chat/completions"
)

// Request carries everything the forwarder needs for one upstream call.
// The body is the already re-encoded payload with the upstream model
// name substituted in.
type Request struct {
	BaseURL     string
	Secret      string
	ServiceType models.ServiceType
	Body        []byte
}

// Response is the upstream reply. Exactly one of Body or Stream is set:
// Body holds buffered non-streaming replies and all non-2xx replies,
// Stream hands over the live SSE body for relaying.
type Response struct {
	StatusCode  int
	Header      http.Header
	ContentType string
	Body        []byte
	Stream      io.ReadCloser
}

// IsStream reports whether the reply must be relayed chunk by chunk.
func (r *Response) IsStream() bool {
	return r.Stream != nil
}

// Client forwards chat completion requests to a configured upstream.
type Client struct {
	client *http.Client
}

// NewClient creates a forwarder with the given overall request timeout.
// A zero timeout falls back to the default token-streaming budget.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Forward POSTs the request body to the upstream chat completions
// endpoint. No retries: a retried completion would double-bill the
// caller. Transport failures return an error; any HTTP response,
// success or not, comes back as a Response.
func (c *Client) Forward(ctx context.Context, req Request) (*Response, error) {
	url := strings.TrimRight(req.BaseURL, "/") + chatCompletionsPath

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.ServiceType == models.ServiceTypeAzureOpenAIChat {
		httpReq.Header.Set("api-key", req.Secret)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+req.Secret)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")

	out := &Response{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		ContentType: contentType,
	}

	// Live SSE bodies are handed to the relay loop; everything else,
	// error replies included, is buffered for inspection.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && isEventStream(contentType) {
		out.Stream = resp.Body
		return out, nil
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	out.Body = body
	return out, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func isEventStream(contentType string) bool {
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.TrimSpace(strings.ToLower(mediaType)) == "text/event-stream"
}
