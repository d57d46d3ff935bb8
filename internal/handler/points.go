package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rodasmf/loyalty/internal/model"
)

// Начисление

type AssignJSONRequest struct {
	ClientID       int `json:"client_id"`
	PurchaseAmount int `json:"purchase_amount"`
}

type AssignJSONResponse struct {
	ClientID       int    `json:"client_id"`
	PointsAssigned int    `json:"points_assigned"`
	ExpiresOn      string `json:"expires_on"`
	TotalBalance   int    `json:"total_balance"`
}

func (h *handler) AssignPoints(w http.ResponseWriter, r *http.Request) {
	var req AssignJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := h.service.AssignPoints(r.Context(), req.ClientID, req.PurchaseAmount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, AssignJSONResponse{
		ClientID:       receipt.ClientID,
		PointsAssigned: receipt.PointsAssigned,
		ExpiresOn:      receipt.ExpiresOn.Format(dateLayout),
		TotalBalance:   receipt.TotalBalance,
	})
}

// Списание

type RedeemJSONRequest struct {
	ClientID  int `json:"client_id"`
	ConceptID int `json:"concept_id"`
}

type RedeemItemJSONResponse struct {
	LotID  int `json:"lot_id"`
	Points int `json:"points"`
}

type RedeemJSONResponse struct {
	RedemptionID     int                      `json:"redemption_id"`
	ClientID         int                      `json:"client_id"`
	ConceptID        int                      `json:"concept_id"`
	PointsUsed       int                      `json:"points_used"`
	Date             string                   `json:"date"`
	Items            []RedeemItemJSONResponse `json:"items"`
	RemainingBalance int                      `json:"remaining_balance"`
}

func (h *handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := h.service.Redeem(r.Context(), req.ClientID, req.ConceptID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]RedeemItemJSONResponse, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		items = append(items, RedeemItemJSONResponse{LotID: item.LotID, Points: item.Points})
	}
	h.writeJSON(w, http.StatusOK, RedeemJSONResponse{
		RedemptionID:     receipt.Header.ID,
		ClientID:         receipt.Header.ClientID,
		ConceptID:        receipt.Header.ConceptID,
		PointsUsed:       receipt.Header.PointsUsed,
		Date:             receipt.Header.Date.Format(dateLayout),
		Items:            items,
		RemainingBalance: receipt.RemainingBalance,
	})
}

// Остатки и лоты

type BalanceJSONResponse struct {
	ClientID int `json:"client_id"`
	Balance  int `json:"balance"`
}

func (h *handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// ?all=true — включая сгоревшие лоты
	onlyUsable := r.URL.Query().Get("all") != "true"

	balance, err := h.service.Balance(r.Context(), id, onlyUsable)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceJSONResponse{ClientID: id, Balance: balance})
}

type LotJSONResponse struct {
	ID             int    `json:"id"`
	ClientID       int    `json:"client_id"`
	AssignedOn     string `json:"assigned_on"`
	ExpiresOn      string `json:"expires_on"`
	PointsAssigned int    `json:"points_assigned"`
	PointsConsumed int    `json:"points_consumed"`
	Balance        int    `json:"balance"`
	PurchaseAmount int    `json:"purchase_amount"`
}

func lotJSON(l model.PointLot) LotJSONResponse {
	return LotJSONResponse{
		ID:             l.ID,
		ClientID:       l.ClientID,
		AssignedOn:     l.AssignedOn.Format(dateLayout),
		ExpiresOn:      l.ExpiresOn.Format(dateLayout),
		PointsAssigned: l.PointsAssigned,
		PointsConsumed: l.PointsConsumed,
		Balance:        l.Balance,
		PurchaseAmount: l.PurchaseAmount,
	}
}

func (h *handler) ListLots(w http.ResponseWriter, r *http.Request) {
	clientID := 0
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		var err error
		clientID, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	lots, err := h.service.ListLots(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]LotJSONResponse, 0, len(lots))
	for _, lot := range lots {
		response = append(response, lotJSON(lot))
	}
	h.writeJSON(w, http.StatusOK, response)
}

// История списаний

type RedemptionJSONResponse struct {
	ID         int    `json:"id"`
	ClientID   int    `json:"client_id"`
	ConceptID  int    `json:"concept_id"`
	PointsUsed int    `json:"points_used"`
	Date       string `json:"date"`
}

func (h *handler) RedemptionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	redemptions, err := h.service.RedemptionHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]RedemptionJSONResponse, 0, len(redemptions))
	for _, redemption := range redemptions {
		response = append(response, RedemptionJSONResponse{
			ID:         redemption.ID,
			ClientID:   redemption.ClientID,
			ConceptID:  redemption.ConceptID,
			PointsUsed: redemption.PointsUsed,
			Date:       redemption.Date.Format(dateLayout),
		})
	}
	h.writeJSON(w, http.StatusOK, response)
}

type RedemptionItemJSONResponse struct {
	ID           int `json:"id"`
	RedemptionID int `json:"redemption_id"`
	LotID        int `json:"lot_id"`
	Points       int `json:"points"`
}

func (h *handler) RedemptionDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := h.service.RedemptionDetails(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]RedemptionItemJSONResponse, 0, len(items))
	for _, item := range items {
		response = append(response, RedemptionItemJSONResponse(item))
	}
	h.writeJSON(w, http.StatusOK, response)
}

// Сгорающие лоты

type ExpiringLotJSONResponse struct {
	ExpiresOn string `json:"expires_on"`
	Points    int    `json:"points"`
}

type ExpiringClientJSONResponse struct {
	ClientID int                       `json:"client_id"`
	Name     string                    `json:"name"`
	Email    string                    `json:"email,omitempty"`
	Lots     []ExpiringLotJSONResponse `json:"lots"`
}

func (h *handler) FindExpiring(w http.ResponseWriter, r *http.Request) {
	days := 3
	if raw := r.URL.Query().Get("days"); raw != "" {
		var err error
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			http.Error(w, "days: expected a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	expiring, err := h.service.FindExpiring(r.Context(), days)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]ExpiringClientJSONResponse, 0, len(expiring))
	for _, ec := range expiring {
		entry := ExpiringClientJSONResponse{
			ClientID: ec.Client.ID,
			Name:     ec.Client.FullName(),
			Email:    ec.Client.Email,
		}
		for _, lot := range ec.Lots {
			entry.Lots = append(entry.Lots, ExpiringLotJSONResponse{
				ExpiresOn: lot.ExpiresOn.Format(dateLayout),
				Points:    lot.Balance,
			})
		}
		response = append(response, entry)
	}
	h.writeJSON(w, http.StatusOK, response)
}
