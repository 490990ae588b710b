package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IndicatorHandler struct {
	service *services.IndicatorService
}

func NewIndicatorHandler(service *services.IndicatorService) *IndicatorHandler {
	return &IndicatorHandler{service: service}
}

type createIndicatorRequest struct {
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	EndDate      time.Time `json:"endDate"`
	DepartmentID string    `json:"departmentId,omitempty"`
}

func (h *IndicatorHandler) CreateIndicator(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createIndicatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.InvalidInputf("invalid request payload: %v", err))
		return
	}

	indicator, err := h.service.CreateIndicator(r.Context(), actor, req.Name, req.Description, req.EndDate, req.DepartmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, indicator)
}

func (h *IndicatorHandler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "indicatorID")
	if err != nil {
		writeError(w, err)
		return
	}
	indicator, err := h.service.GetIndicator(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indicator)
}

func (h *IndicatorHandler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	indicators, err := h.service.ListIndicators(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indicators)
}

func (h *IndicatorHandler) DeleteIndicator(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "indicatorID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.DeleteIndicator(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "indicator deleted"})
}

type replaceRequest struct {
	ReplacementID string `json:"replacementId"`
}

func (h *IndicatorHandler) ApproveReplacement(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "indicatorID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.InvalidInputf("invalid request payload: %v", err))
		return
	}
	replacementID, err := primitive.ObjectIDFromHex(req.ReplacementID)
	if err != nil {
		writeError(w, models.InvalidInputf("invalid replacement ID format"))
		return
	}

	indicator, err := h.service.ApproveReplacement(r.Context(), actor, id, replacementID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indicator)
}

func (h *IndicatorHandler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.Hierarchy(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}
