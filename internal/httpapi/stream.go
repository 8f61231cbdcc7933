package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"llm_share/internal/models"
	"llm_share/internal/utils"
)

// streamChunk is one decoded SSE delta record from the upstream.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *models.Usage `json:"usage"`
}

// chunkAccumulator rebuilds the assistant message from SSE delta lines
// for accounting. It never touches the bytes relayed to the caller, so
// malformed lines cost nothing but a skipped accounting record.
type chunkAccumulator struct {
	role         string
	content      strings.Builder
	finishReason string
	usage        *models.Usage
	pending      []byte
	logger       *utils.Logger
}

func newChunkAccumulator(logger *utils.Logger) *chunkAccumulator {
	return &chunkAccumulator{logger: logger}
}

// Feed consumes a raw chunk, carrying partial lines across chunk
// boundaries.
func (a *chunkAccumulator) Feed(chunk []byte) {
	a.pending = append(a.pending, chunk...)
	for {
		idx := bytes.IndexByte(a.pending, '\n')
		if idx < 0 {
			return
		}
		line := a.pending[:idx]
		a.pending = a.pending[idx+1:]
		a.consumeLine(line)
	}
}

// Finish flushes a trailing line that arrived without a newline.
func (a *chunkAccumulator) Finish() {
	if len(a.pending) > 0 {
		a.consumeLine(a.pending)
		a.pending = nil
	}
}

func (a *chunkAccumulator) consumeLine(line []byte) {
	text := strings.TrimSpace(string(line))
	if text == "" {
		return
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, "data:"))
	if text == "" || text == "[DONE]" {
		return
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(text), &chunk); err != nil {
		a.logger.Debug("Skipping malformed stream line", "error", err)
		return
	}

	for _, c := range chunk.Choices {
		if c.Delta.Role != "" {
			a.role = c.Delta.Role
		}
		a.content.WriteString(c.Delta.Content)
		if c.FinishReason != nil && *c.FinishReason != "" {
			a.finishReason = *c.FinishReason
		}
	}
	// Providers report usage once, typically in the final chunk.
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
}

// Message returns the reconstructed assistant message.
func (a *chunkAccumulator) Message() models.Message {
	role := a.role
	if role == "" {
		role = "assistant"
	}
	return models.Message{Role: role, Content: a.content.String()}
}

// streamRelay copies the upstream SSE body to the caller byte for byte,
// flushing after every chunk, and feeds each chunk to the accumulator.
// Chunk N is written to the caller before chunk N+1 is read. Returns
// when the upstream ends or the caller stops accepting writes; either
// way the accumulator is finalized with everything seen so far.
func streamRelay(w http.ResponseWriter, upstream io.Reader, acc *chunkAccumulator, logger *utils.Logger) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)

	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				logger.Debug("Caller stopped accepting stream writes", "error", werr)
				acc.Finish()
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			acc.Feed(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug("Upstream stream ended with error", "error", err)
			}
			acc.Finish()
			return
		}
	}
}
