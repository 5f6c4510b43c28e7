package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// SettingsList returns all settings with their coerced values.
func (a *App) SettingsList(w http.ResponseWriter, r *http.Request) {
	publicOnly := r.URL.Query().Get("all") == ""
	settings, err := a.Settings.List(r.Context(), publicOnly)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load settings")
		return
	}
	items := make([]map[string]any, 0, len(settings))
	for _, s := range settings {
		items = append(items, settingPayload(s))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// SettingGet returns one setting by key.
func (a *App) SettingGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	setting, err := a.Settings.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no such setting")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load setting")
		return
	}
	a.json(w, http.StatusOK, settingPayload(*setting))
}

type settingRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Public      *bool  `json:"public"`
}

// SettingUpsert creates or updates a setting by key. Lets an admin adjust
// display values like the fundraising goal without a deployment.
func (a *App) SettingUpsert(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "key is required")
		return
	}
	settingType := domain.SettingType(req.Type)
	if req.Type == "" {
		settingType = domain.SettingString
	}
	if !settingType.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown setting type")
		return
	}
	if settingType == domain.SettingNumber {
		if _, err := strconv.ParseFloat(req.Value, 64); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "value is not a number")
			return
		}
	}

	category := req.Category
	if category == "" {
		category = "general"
	}
	public := true
	if req.Public != nil {
		public = *req.Public
	}
	setting := &domain.Setting{
		Key:         strings.TrimSpace(req.Key),
		Value:       req.Value,
		Type:        settingType,
		Label:       req.Label,
		Description: req.Description,
		Category:    category,
		Public:      public,
	}
	if err := a.Settings.Upsert(r.Context(), setting); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to save setting")
		return
	}
	a.json(w, http.StatusOK, settingPayload(*setting))
}

func settingPayload(s domain.Setting) map[string]any {
	return map[string]any{
		"key":         s.Key,
		"value":       s.TypedValue(),
		"type":        s.Type,
		"label":       s.Label,
		"description": s.Description,
		"category":    s.Category,
		"public":      s.Public,
	}
}
