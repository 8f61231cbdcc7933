package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"llm_share/internal/auth"
	"llm_share/internal/utils"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAdminLogin exchanges the admin password for a short-lived JWT.
func (d *Dependencies) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if d.Admin.PasswordHash == "" || !auth.CheckPassword(d.Admin.PasswordHash, req.Password) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := auth.GenerateAdminJWT(d.Admin.JWTSecret, d.Admin.TokenTTL)
	if err != nil {
		d.log().Error("Failed to issue admin token", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// handleStatsSummary serves per-model usage totals for one instance.
// Query: instance (uuid, required), from/to (RFC 3339, default last 30 days).
func (d *Dependencies) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(r.URL.Query().Get("instance"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid instance id")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid 'from' timestamp")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid 'to' timestamp")
			return
		}
	}
	if !to.After(from) {
		utils.RespondWithError(w, http.StatusBadRequest, "'to' must be after 'from'")
		return
	}

	summary, err := d.Stats.Summary(r.Context(), instanceID, from, to)
	if err != nil {
		d.log().Error("Stats summary failed", "instance", instanceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// handleStatsDaily serves per-day usage totals for one instance.
// Query: instance (uuid, required), days (default 30).
func (d *Dependencies) handleStatsDaily(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(r.URL.Query().Get("instance"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid instance id")
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid 'days' value")
			return
		}
	}

	report, err := d.Stats.Daily(r.Context(), instanceID, days)
	if err != nil {
		d.log().Error("Stats daily failed", "instance", instanceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, report)
}
