package httpapi

import (
	"net/http"

	"llm_share/internal/models"
	"llm_share/internal/utils"
)

type modelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

type modelList struct {
	Object string      `json:"object"`
	Data   []modelCard `json:"data"`
}

// handleListModels returns the models the presenting token may use, in
// the OpenAI list format so off-the-shelf clients can discover them.
func (d *Dependencies) handleListModels(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	c, ok := d.resolveCaller(w, r)
	if !ok {
		return
	}

	permitted := models.PermittedModels(c.cfg, c.abilityData)
	list := modelList{Object: "list", Data: make([]modelCard, 0, len(permitted))}
	for _, m := range permitted {
		list.Data = append(list.Data, modelCard{
			ID:      m.Code,
			Object:  "model",
			OwnedBy: c.instance.Name,
			Created: c.instance.CreatedAt.Unix(),
		})
	}

	utils.RespondWithJSON(w, http.StatusOK, list)
}
