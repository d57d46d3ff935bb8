package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rodasmf/loyalty/internal/model"
	"github.com/rodasmf/loyalty/internal/service"
)

// Правила начисления

type RuleJSONRequest struct {
	LowerBound     *int `json:"lower_bound"`
	UpperBound     *int `json:"upper_bound"`
	AmountPerPoint int  `json:"amount_per_point"`
}

type RuleJSONResponse struct {
	ID             int  `json:"id"`
	LowerBound     *int `json:"lower_bound"`
	UpperBound     *int `json:"upper_bound"`
	AmountPerPoint int  `json:"amount_per_point"`
}

func ruleJSON(r model.Rule) RuleJSONResponse {
	return RuleJSONResponse{
		ID:             r.ID,
		LowerBound:     r.LowerBound,
		UpperBound:     r.UpperBound,
		AmountPerPoint: r.AmountPerPoint,
	}
}

func (h *handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rule, err := h.service.CreateRule(r.Context(), model.Rule{
		LowerBound:     req.LowerBound,
		UpperBound:     req.UpperBound,
		AmountPerPoint: req.AmountPerPoint,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, ruleJSON(rule))
}

func (h *handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]RuleJSONResponse, 0, len(rules))
	for _, rule := range rules {
		response = append(response, ruleJSON(rule))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req RuleJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rule, err := h.service.UpdateRule(r.Context(), model.Rule{
		ID:             id,
		LowerBound:     req.LowerBound,
		UpperBound:     req.UpperBound,
		AmountPerPoint: req.AmountPerPoint,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ruleJSON(rule))
}

func (h *handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Параметры сгорания

type ExpirationJSONRequest struct {
	ValidFrom    string `json:"valid_from"`
	DurationDays int    `json:"duration_days"`
}

type ExpirationJSONResponse struct {
	ID           int    `json:"id"`
	ValidFrom    string `json:"valid_from"`
	ValidUntil   string `json:"valid_until,omitempty"`
	DurationDays int    `json:"duration_days"`
}

func expirationJSON(p model.ExpirationPolicy) ExpirationJSONResponse {
	response := ExpirationJSONResponse{
		ID:           p.ID,
		ValidFrom:    p.ValidFrom.Format(dateLayout),
		DurationDays: p.DurationDays,
	}
	if p.ValidUntil != nil {
		response.ValidUntil = p.ValidUntil.Format(dateLayout)
	}
	return response
}

func (h *handler) CreateExpiration(w http.ResponseWriter, r *http.Request) {
	var req ExpirationJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	validFrom, err := time.Parse(dateLayout, req.ValidFrom)
	if err != nil {
		http.Error(w, "valid_from: expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	policy, err := h.service.CreateExpiration(r.Context(), validFrom, req.DurationDays)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, expirationJSON(policy))
}

func (h *handler) ListExpirations(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.ListExpirations(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]ExpirationJSONResponse, 0, len(policies))
	for _, policy := range policies {
		response = append(response, expirationJSON(policy))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) CurrentExpiration(w http.ResponseWriter, r *http.Request) {
	policy, err := h.service.CurrentExpiration(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, expirationJSON(policy))
}

type ExpirationPatchJSONRequest struct {
	ValidFrom    *string `json:"valid_from"`
	DurationDays *int    `json:"duration_days"`
}

func (h *handler) UpdateExpiration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req ExpirationPatchJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var patch service.ExpirationPatch
	if req.ValidFrom != nil {
		validFrom, err := time.Parse(dateLayout, *req.ValidFrom)
		if err != nil {
			http.Error(w, "valid_from: expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		patch.ValidFrom = &validFrom
	}
	patch.DurationDays = req.DurationDays

	policy, err := h.service.UpdateExpiration(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, expirationJSON(policy))
}

func (h *handler) DeleteExpiration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteExpiration(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Концепты

type ConceptJSONRequest struct {
	Description    string `json:"description"`
	PointsRequired int    `json:"points_required"`
}

type ConceptJSONResponse struct {
	ID             int    `json:"id"`
	Description    string `json:"description"`
	PointsRequired int    `json:"points_required"`
	Active         bool   `json:"active"`
}

func conceptJSON(c model.Concept) ConceptJSONResponse {
	return ConceptJSONResponse{
		ID:             c.ID,
		Description:    c.Description,
		PointsRequired: c.PointsRequired,
		Active:         c.Active,
	}
}

func (h *handler) CreateConcept(w http.ResponseWriter, r *http.Request) {
	var req ConceptJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	concept, err := h.service.CreateConcept(r.Context(), model.Concept{
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, conceptJSON(concept))
}

func (h *handler) ListConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := h.service.ListConcepts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]ConceptJSONResponse, 0, len(concepts))
	for _, concept := range concepts {
		response = append(response, conceptJSON(concept))
	}
	h.writeJSON(w, http.StatusOK, response)
}

type ConceptPatchJSONRequest struct {
	Description    *string `json:"description"`
	PointsRequired *int    `json:"points_required"`
	Active         *bool   `json:"active"`
}

func (h *handler) UpdateConcept(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req ConceptPatchJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	concept, err := h.service.UpdateConcept(r.Context(), id, model.ConceptPatch{
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		Active:         req.Active,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, conceptJSON(concept))
}

func (h *handler) DeactivateConcept(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.DeactivateConcept(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Уровни лояльности

type LevelJSONRequest struct {
	Name      string `json:"name"`
	MinPoints int    `json:"min_points"`
}

type LevelJSONResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	MinPoints int    `json:"min_points"`
}

func (h *handler) CreateLevel(w http.ResponseWriter, r *http.Request) {
	var req LevelJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	level, err := h.service.CreateLevel(r.Context(), model.Level{
		Name:      req.Name,
		MinPoints: req.MinPoints,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, LevelJSONResponse(level))
}

func (h *handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.ListLevels(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]LevelJSONResponse, 0, len(levels))
	for _, level := range levels {
		response = append(response, LevelJSONResponse(level))
	}
	h.writeJSON(w, http.StatusOK, response)
}

type LevelPatchJSONRequest struct {
	Name      *string `json:"name"`
	MinPoints *int    `json:"min_points"`
}

func (h *handler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req LevelPatchJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	level, err := h.service.UpdateLevel(r.Context(), id, model.LevelPatch{
		Name:      req.Name,
		MinPoints: req.MinPoints,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LevelJSONResponse(level))
}

func (h *handler) DeleteLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteLevel(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ClientLevelJSONResponse struct {
	ClientID    int    `json:"client_id"`
	TotalPoints int    `json:"total_points"`
	LevelID     int    `json:"level_id,omitempty"`
	LevelName   string `json:"level_name,omitempty"`
}

func (h *handler) GetClientLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	clientLevel, err := h.service.GetClientLevel(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := ClientLevelJSONResponse{
		ClientID:    clientLevel.ClientID,
		TotalPoints: clientLevel.TotalPoints,
	}
	if clientLevel.Level != nil {
		response.LevelID = clientLevel.Level.ID
		response.LevelName = clientLevel.Level.Name
	}
	h.writeJSON(w, http.StatusOK, response)
}
