package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_share/internal/models"
)

func TestForward_NonStreaming(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)

		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	defer client.Close()

	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hello"}]}`)
	resp, err := client.Forward(context.Background(), Request{
		BaseURL:     server.URL,
		Secret:      "sk-upstream",
		ServiceType: models.ServiceTypeOpenAIChat,
		Body:        body,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-upstream", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, body, gotBody)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, resp.IsStream())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &decoded))
	assert.Equal(t, "chatcmpl-1", decoded["id"])
}

func TestForward_AzureAuthHeader(t *testing.T) {
	var gotAPIKey, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("api-key")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	defer client.Close()

	_, err := client.Forward(context.Background(), Request{
		BaseURL:     server.URL,
		Secret:      "azure-secret",
		ServiceType: models.ServiceTypeAzureOpenAIChat,
		Body:        []byte(`{}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "azure-secret", gotAPIKey)
	assert.Empty(t, gotAuth)
}

func TestForward_Streaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	defer client.Close()

	resp, err := client.Forward(context.Background(), Request{
		BaseURL:     server.URL,
		Secret:      "sk-upstream",
		ServiceType: models.ServiceTypeOpenAIChat,
		Body:        []byte(`{"stream":true}`),
	})
	require.NoError(t, err)
	require.True(t, resp.IsStream())
	defer resp.Stream.Close()

	raw, err := io.ReadAll(resp.Stream)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "data: [DONE]")
}

func TestForward_UpstreamErrorBuffered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded"}}`)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	defer client.Close()

	resp, err := client.Forward(context.Background(), Request{
		BaseURL:     server.URL,
		Secret:      "sk-upstream",
		ServiceType: models.ServiceTypeOpenAIChat,
		Body:        []byte(`{}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.False(t, resp.IsStream())
	assert.Contains(t, string(resp.Body), "rate limit exceeded")
}

func TestForward_ErrorWithEventStreamTypeStillBuffered(t *testing.T) {
	// A non-2xx reply is buffered even if the upstream labels it SSE.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream exploded")
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	defer client.Close()

	resp, err := client.Forward(context.Background(), Request{
		BaseURL:     server.URL,
		Secret:      "sk-upstream",
		ServiceType: models.ServiceTypeOpenAIChat,
		Body:        []byte(`{}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.False(t, resp.IsStream())
	assert.Equal(t, "upstream exploded", string(resp.Body))
}

func TestForward_BaseURLTrailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	defer client.Close()

	_, err := client.Forward(context.Background(), Request{
		BaseURL:     server.URL + "/v1/",
		Secret:      "sk-upstream",
		ServiceType: models.ServiceTypeOpenAIChat,
		Body:        []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/chat/completions", gotPath)
}

func TestForward_TransportError(t *testing.T) {
	client := NewClient(time.Second)
	defer client.Close()

	_, err := client.Forward(context.Background(), Request{
		BaseURL:     "http://127.0.0.1:1",
		Secret:      "sk-upstream",
		ServiceType: models.ServiceTypeOpenAIChat,
		Body:        []byte(`{}`),
	})
	require.Error(t, err)
}

func TestIsEventStream(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/event-stream", true},
		{"text/event-stream; charset=utf-8", true},
		{"TEXT/EVENT-STREAM", true},
		{"application/json", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isEventStream(tt.contentType), tt.contentType)
	}
}
