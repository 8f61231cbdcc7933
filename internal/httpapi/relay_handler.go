package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"llm_share/internal/config"
	"llm_share/internal/logging"
	"llm_share/internal/models"
	"llm_share/internal/queue"
	"llm_share/internal/stats"
	"llm_share/internal/storage"
	"llm_share/internal/upstream"
	"llm_share/internal/utils"
)

// AbilityStore resolves bearer tokens to authorization records.
type AbilityStore interface {
	GetByTokenAndInstance(ctx context.Context, tokenHash string, instanceID uuid.UUID) (*models.UserInstanceAbility, error)
}

// InstanceStore loads service instance records.
type InstanceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceInstance, error)
}

// Forwarder issues the outbound upstream call.
type Forwarder interface {
	Forward(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Abilities AbilityStore
	Instances InstanceStore
	Upstream  Forwarder
	Usage     UsageWriter
	Stats     *stats.Service
	Admin     config.AdminConfig

	// UsageWorker is owned here for lifecycle management only.
	UsageWorker *storage.UsageQueueWorker

	db         *storage.DB
	usageQueue queue.Queue
	usageDLQ   queue.DeadLetterQueue
	archive    logging.Sink
	logger     *utils.Logger
}

func (d *Dependencies) log() *utils.Logger {
	if d.logger == nil {
		d.logger = utils.NewLogger("relay")
	}
	return d.logger
}

// caller is the resolved request context shared by the chat and models
// handlers: who is asking, against which instance, under which policy.
type caller struct {
	instanceID  uuid.UUID
	ability     *models.UserInstanceAbility
	abilityData *models.AbilityData
	instance    *models.ServiceInstance
	cfg         *models.InstanceConfig
}

// resolveCaller authenticates the request and loads the instance
// configuration. On failure it writes the error response and returns
// false; no usage log is ever written for these rejections.
func (d *Dependencies) resolveCaller(w http.ResponseWriter, r *http.Request) (*caller, bool) {
	ctx := r.Context()

	rawID := r.PathValue("instance")
	instanceID, err := uuid.Parse(rawID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid instance id")
		return nil, false
	}

	token, err := parseBearer(r.Header.Get("Authorization"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing bearer token")
		return nil, false
	}

	ability, err := d.Abilities.GetByTokenAndInstance(ctx, utils.HashToken(token), instanceID)
	if err != nil {
		if errors.Is(err, storage.ErrAbilityNotFound) {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
		} else {
			d.log().Error("Ability lookup failed", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		}
		return nil, false
	}

	if !ability.CanUse {
		utils.RespondWithError(w, http.StatusUnauthorized, "Not permitted to use this instance")
		return nil, false
	}

	abilityData, err := ability.DecodeData()
	if err != nil {
		d.log().Error("Malformed ability data", "user", ability.UserID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return nil, false
	}

	instance, err := d.Instances.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, storage.ErrInstanceNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Service instance not found")
		} else {
			d.log().Error("Instance lookup failed", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		}
		return nil, false
	}

	if !instance.Type.IsChat() {
		utils.RespondWithError(w, http.StatusNotFound, "Service instance is not configured")
		return nil, false
	}

	cfg, err := models.DecodeInstanceConfig(instance)
	if err != nil {
		d.log().Warn("Instance has invalid configuration", "instance", instanceID, "error", err)
		utils.RespondWithError(w, http.StatusNotFound, "Service instance is not configured")
		return nil, false
	}

	return &caller{
		instanceID:  instanceID,
		ability:     ability,
		abilityData: abilityData,
		instance:    instance,
		cfg:         cfg,
	}, true
}

// handleChatCompletions proxies one chat completion request.
//
// Flow: authenticate token, load instance config, select model, forward
// upstream, then branch on buffered vs streamed reply. Every rejection
// before the upstream call returns without writing a usage log; every
// request that reaches the upstream and terminates writes exactly one.
func (d *Dependencies) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	setCORSHeaders(w)

	c, ok := d.resolveCaller(w, r)
	if !ok {
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	requestedModel, _ := payload["model"].(string)
	if requestedModel == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing 'model' field")
		return
	}
	isStream, _ := payload["stream"].(bool)

	mc, err := models.SelectModel(requestedModel, c.cfg, c.abilityData)
	if err != nil {
		var denied *models.ModelNotPermittedError
		if errors.As(err, &denied) {
			utils.RespondWithError(w, http.StatusUnauthorized, denied.Error())
		} else {
			d.log().Error("Model selection failed", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	payload["model"] = mc.ResolvedUpstreamModel()
	body, err := json.Marshal(payload)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := d.Upstream.Forward(r.Context(), upstream.Request{
		BaseURL:     c.cfg.BaseURL,
		Secret:      c.cfg.Secret,
		ServiceType: c.instance.Type,
		Body:        body,
	})
	if err != nil {
		d.log().Error("Upstream request failed", "instance", c.instanceID, "error", err)
		utils.RespondWithError(w, http.StatusBadGateway, "Upstream request failed")
		return
	}

	// Upstream failures are relayed verbatim; they produced nothing
	// billable, so no usage log either.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
		return
	}

	promptMessages := extractMessages(payload["messages"])

	if resp.IsStream() {
		d.relayStream(w, r, c, mc, resp, promptMessages, isStream, start)
		return
	}
	d.relayBuffered(w, c, mc, resp, promptMessages, isStream, start)
}

// relayBuffered handles the non-streaming branch: parse the upstream
// body, account for it, then return it verbatim.
func (d *Dependencies) relayBuffered(
	w http.ResponseWriter,
	c *caller,
	mc *models.ModelConfig,
	resp *upstream.Response,
	promptMessages []models.Message,
	requestedStream bool,
	start time.Time,
) {
	var completion struct {
		Choices []struct {
			Message      models.Message `json:"message"`
			FinishReason string         `json:"finish_reason"`
		} `json:"choices"`
		Usage *models.Usage `json:"usage"`
	}
	if err := json.Unmarshal(resp.Body, &completion); err != nil {
		d.log().Error("Upstream response is not a chat completion", "instance", c.instanceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to parse upstream response")
		return
	}

	details := &models.UsageDetails{
		Model:          mc.Code,
		Stream:         requestedStream,
		Usage:          completion.Usage,
		Cost:           models.Cost(completion.Usage, mc),
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	for _, choice := range completion.Choices {
		if c.cfg.LogCompletion {
			details.CompletionMessages = append(details.CompletionMessages, choice.Message)
		}
		if details.FinishReason == "" {
			details.FinishReason = choice.FinishReason
		}
	}
	if c.cfg.LogPrompt {
		details.PromptMessages = promptMessages
	}

	d.writeUsageLog(c, details)

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// relayStream handles the streaming branch: relay bytes verbatim while
// reconstructing the reply, then account exactly once after the stream
// closes, whether it ended normally or the caller went away.
func (d *Dependencies) relayStream(
	w http.ResponseWriter,
	r *http.Request,
	c *caller,
	mc *models.ModelConfig,
	resp *upstream.Response,
	promptMessages []models.Message,
	requestedStream bool,
	start time.Time,
) {
	defer func() {
		// The upstream connection is returned to the pool only when
		// fully drained; on caller disconnect we just close it.
		_ = resp.Stream.Close()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(resp.StatusCode)

	acc := newChunkAccumulator(d.log())
	streamRelay(w, resp.Stream, acc, d.log())

	message := acc.Message()
	details := &models.UsageDetails{
		Model:          mc.Code,
		Stream:         requestedStream,
		FinishReason:   acc.finishReason,
		Usage:          acc.usage,
		Cost:           models.Cost(acc.usage, mc),
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	if c.cfg.LogPrompt {
		details.PromptMessages = promptMessages
	}
	if c.cfg.LogCompletion {
		details.CompletionMessages = []models.Message{message}
	}

	d.writeUsageLog(c, details)
}

// writeUsageLog appends the usage record. Failures are diagnostics
// only; the HTTP outcome is already decided.
func (d *Dependencies) writeUsageLog(c *caller, details *models.UsageDetails) {
	log, err := models.NewChatUsageLog(c.ability.UserID, c.instanceID, c.instance.Type, details)
	if err != nil {
		d.log().Error("Failed to build usage log", "instance", c.instanceID, "error", err)
		return
	}
	if err := d.Usage.Append(context.Background(), log); err != nil {
		d.log().Error("Failed to append usage log", "id", log.ID, "error", err)
	}
}

// extractMessages best-effort decodes the caller's messages array for
// prompt logging. Non-text content is skipped rather than rejected.
func extractMessages(raw any) []models.Message {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var messages []models.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil
	}
	return messages
}

// parseBearer extracts the token from an Authorization: Bearer <token> header.
func parseBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	if parts[1] == "" {
		return "", errors.New("empty bearer token")
	}
	return parts[1], nil
}

// handleHealth is the liveness endpoint.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "OK")
}
