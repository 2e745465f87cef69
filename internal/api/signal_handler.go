package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/api/shared"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/service"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/signals"
)

// SignalHandler handles account-signal HTTP requests
type SignalHandler struct {
	signalService service.SignalService
	validator     *validator.Validate
}

// NewSignalHandler creates a new SignalHandler
func NewSignalHandler(signalService service.SignalService) *SignalHandler {
	return &SignalHandler{
		signalService: signalService,
		validator:     validator.New(),
	}
}

// DetectSignals handles POST /api/accounts/{id}/signals requests
func (h *SignalHandler) DetectSignals(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountIDFromURL(w, r)
	if !ok {
		return
	}

	var req DetectSignalsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	findings := make([]signals.RawFinding, 0, len(req.Findings))
	for _, f := range req.Findings {
		findings = append(findings, f.RawFinding())
	}

	detected, err := h.signalService.DetectSignals(r.Context(), accountID, findings)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, NewSignalListResponse(detected))
}

// ListSignals handles GET /api/accounts/{id}/signals requests
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountIDFromURL(w, r)
	if !ok {
		return
	}

	list, err := h.signalService.ListSignals(r.Context(), accountID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewSignalListResponse(list))
}

func (h *SignalHandler) accountIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid account ID")
		return uuid.Nil, false
	}
	return accountID, true
}
