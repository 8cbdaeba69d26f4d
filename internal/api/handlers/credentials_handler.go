package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/instanti8/engine/internal/api/middleware"
	"github.com/instanti8/engine/internal/api/types"
	"github.com/instanti8/engine/internal/credentials"
	"github.com/instanti8/engine/internal/services"
)

type CredentialsHandler struct {
	svc services.CredentialService
}

func NewCredentialsHandler(svc services.CredentialService) *CredentialsHandler {
	return &CredentialsHandler{svc: svc}
}

// List answers {aws: bool, azure: bool, gcp: bool}.
func (h *CredentialsHandler) List(w http.ResponseWriter, r *http.Request) {
	configured, err := h.svc.Configured(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make(map[string]bool, len(configured))
	for p, ok := range configured {
		out[p.String()] = ok
	}
	writeJSON(w, http.StatusOK, out)
}

// Save stores the request body as the bundle for {provider}.
func (h *CredentialsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var bundle credentials.Bundle
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&bundle); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.svc.Save(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "provider"), bundle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ProviderAck{Success: true, Provider: p.String()})
}

func (h *CredentialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ProviderAck{Success: true, Provider: p.String()})
}

// VerifyAWS reports which identity the stored AWS keys authenticate as.
func (h *CredentialsHandler) VerifyAWS(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.VerifyAWS(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: id})
}
