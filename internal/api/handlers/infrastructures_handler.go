package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/instanti8/engine/internal/api/middleware"
	"github.com/instanti8/engine/internal/api/types"
	"github.com/instanti8/engine/internal/api/validators"
	"github.com/instanti8/engine/internal/services"
)

type InfrastructuresHandler struct {
	infra  services.InfrastructureService
	deploy services.DeploymentService
}

func NewInfrastructuresHandler(infra services.InfrastructureService, deploy services.DeploymentService) *InfrastructuresHandler {
	return &InfrastructuresHandler{infra: infra, deploy: deploy}
}

// Create generates, validates and stores a program for the prompt.
func (h *InfrastructuresHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validators.New().Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.infra.Generate(r.Context(), middleware.GetUserID(r.Context()), req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: types.NewInfrastructure(rec)})
}

func (h *InfrastructuresHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.infra.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]types.Infrastructure, 0, len(items))
	for i := range items {
		out = append(out, types.NewInfrastructure(&items[i]))
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: out, Meta: &types.Meta{Total: int64(len(out))}})
}

func (h *InfrastructuresHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.infra.Get(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: types.NewInfrastructure(rec)})
}

// Deployment reports the latest persisted deployment snapshot.
func (h *InfrastructuresHandler) Deployment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.infra.Get(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	details, err := rec.Details()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: types.Deployment{
		ID:        rec.ID,
		Status:    string(rec.Status),
		Details:   details,
		UpdatedAt: rec.UpdatedAt,
	}})
}

// Deploy runs the deployment inline, or hands it to the worker with ?async=true.
func (h *InfrastructuresHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	owner := middleware.GetUserID(r.Context())

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if err := h.deploy.Enqueue(r.Context(), id, owner); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, types.Accepted{Success: true, Message: "Deployment queued", ID: id.String()})
		return
	}

	res, err := h.deploy.Deploy(r.Context(), id, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Deploy{Success: res.Success, Message: res.Message, Outputs: res.Outputs})
}

func (h *InfrastructuresHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.infra.Analyze(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: report})
}
