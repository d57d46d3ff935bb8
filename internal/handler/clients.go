package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rodasmf/loyalty/internal/model"
	"github.com/rodasmf/loyalty/internal/service"
)

type ClientJSONRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DocumentNumber string `json:"document_number"`
	DocumentType   string `json:"document_type"`
	Nationality    string `json:"nationality"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	BirthDate      string `json:"birth_date"`
	ReferredBy     int    `json:"referred_by,omitempty"`
}

type ClientJSONResponse struct {
	ID             int    `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DocumentNumber string `json:"document_number"`
	DocumentType   string `json:"document_type"`
	Nationality    string `json:"nationality"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	BirthDate      string `json:"birth_date"`
	ReferralCode   string `json:"referral_code"`
	ReferredBy     int    `json:"referred_by,omitempty"`
}

func clientJSON(c model.Client) ClientJSONResponse {
	return ClientJSONResponse{
		ID:             c.ID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		DocumentNumber: c.DocumentNumber,
		DocumentType:   c.DocumentType,
		Nationality:    c.Nationality,
		Email:          c.Email,
		Phone:          c.Phone,
		BirthDate:      c.BirthDate.Format(dateLayout),
		ReferralCode:   c.ReferralCode,
		ReferredBy:     c.ReferredBy,
	}
}

func (h *handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	birthDate, err := time.Parse(dateLayout, req.BirthDate)
	if err != nil {
		http.Error(w, "birth_date: expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	client, err := h.service.RegisterClient(r.Context(), model.Client{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DocumentNumber: req.DocumentNumber,
		DocumentType:   req.DocumentType,
		Nationality:    req.Nationality,
		Email:          req.Email,
		Phone:          req.Phone,
		BirthDate:      birthDate,
		ReferredBy:     req.ReferredBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, clientJSON(client))
}

func (h *handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, clientJSON(client))
}

func (h *handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]ClientJSONResponse, 0, len(clients))
	for _, client := range clients {
		response = append(response, clientJSON(client))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) FindClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clients, err := h.service.FindClients(r.Context(),
		q.Get("document"), q.Get("email"), q.Get("phone"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]ClientJSONResponse, 0, len(clients))
	for _, client := range clients {
		response = append(response, clientJSON(client))
	}
	h.writeJSON(w, http.StatusOK, response)
}

type ClientPatchJSONRequest struct {
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

func (h *handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req ClientPatchJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client, err := h.service.UpdateClient(r.Context(), id, model.ClientPatch{
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, clientJSON(client))
}

func (h *handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteClient(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Интеграция с внешними системами

func (h *handler) Ping(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "available"})
}

type IntegrationClientJSONResponse struct {
	ID          int    `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	TotalPoints int    `json:"total_points"`
}

func (h *handler) IntegrationClient(w http.ResponseWriter, r *http.Request) {
	document := chi.URLParam(r, "document")
	if document == "" {
		http.Error(w, service.ErrInsufficientData.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.service.ClientByDocument(r.Context(), document)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, IntegrationClientJSONResponse{
		ID:          info.Client.ID,
		FirstName:   info.Client.FirstName,
		LastName:    info.Client.LastName,
		TotalPoints: info.TotalPoints,
	})
}
