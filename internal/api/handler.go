package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/enghistory/internal/auth"
	"github.com/rpattn/enghistory/internal/domain"
	"github.com/rpattn/enghistory/internal/export"
	"github.com/rpattn/enghistory/internal/repository"
	"github.com/rpattn/enghistory/pkg/history"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxPayloadBytes = 4 << 20
)

// HistoryService is the subset of the service layer the HTTP API depends on.
type HistoryService interface {
	EntityHistory(ctx context.Context, entityID uuid.UUID, ignoredFields []string) (*history.Record, error)
	BatchHistory(ctx context.Context, entityIDs []uuid.UUID, ignoredFields []string) (map[uuid.UUID]*history.Record, error)
	Diff(snapshots []history.Snapshot, ignoredFields []string) *history.Record
	CreateEntity(ctx context.Context, organizationID uuid.UUID, entityType string, properties map[string]any) (domain.Entity, error)
	UpdateEntity(ctx context.Context, entityID uuid.UUID, properties map[string]any, reason string) (domain.Entity, error)
	PatchEntity(ctx context.Context, entityID uuid.UUID, set map[string]any, unset []string, reason string) (domain.Entity, error)
}

type Handler struct {
	service HistoryService
	logger  *zap.Logger
}

func NewHandler(service HistoryService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes registers the API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /entities/{id}/history", h.handleEntityHistory)
	mux.HandleFunc("GET /entities/{id}/history.xlsx", h.handleEntityHistoryWorkbook)
	mux.HandleFunc("POST /entities", h.handleCreateEntity)
	mux.HandleFunc("PUT /entities/{id}", h.handleUpdateEntity)
	mux.HandleFunc("PATCH /entities/{id}", h.handlePatchEntity)
	mux.HandleFunc("POST /history/batch", h.handleBatchHistory)
	mux.HandleFunc("POST /history/diff", h.handleDiff)
	mux.HandleFunc("GET /healthz", handleHealth)
}

type batchHistoryPayload struct {
	EntityIDs     []string `json:"entityIds" validate:"required,min=1,max=500,dive,uuid"`
	IgnoredFields []string `json:"ignoredFields" validate:"omitempty,dive,required"`
}

type diffPayload struct {
	Snapshots     []history.Snapshot `json:"snapshots" validate:"required,min=1"`
	IgnoredFields []string           `json:"ignoredFields" validate:"omitempty,dive,required"`
}

type createEntityPayload struct {
	OrganizationID string         `json:"organizationId" validate:"required,uuid"`
	EntityType     string         `json:"entityType" validate:"required,max=255"`
	Properties     map[string]any `json:"properties"`
}

type updateEntityPayload struct {
	Properties map[string]any `json:"properties" validate:"required"`
	Reason     string         `json:"reason" validate:"max=1000"`
}

type patchEntityPayload struct {
	Set    map[string]any `json:"set"`
	Unset  []string       `json:"unset" validate:"omitempty,dive,required"`
	Reason string         `json:"reason" validate:"max=1000"`
}

func (h *Handler) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	entityID, ok := pathEntityID(w, r)
	if !ok {
		return
	}
	record, err := h.service.EntityHistory(r.Context(), entityID, ignoredFromQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if record == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleEntityHistoryWorkbook(w http.ResponseWriter, r *http.Request) {
	entityID, ok := pathEntityID(w, r)
	if !ok {
		return
	}
	record, err := h.service.EntityHistory(r.Context(), entityID, ignoredFromQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistoryWorkbook(&buf, record); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "history-"+entityID.String()+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleBatchHistory(w http.ResponseWriter, r *http.Request) {
	var payload batchHistoryPayload
	if !decodePayload(w, r, &payload) {
		return
	}
	ids := make([]uuid.UUID, 0, len(payload.EntityIDs))
	for _, raw := range payload.EntityIDs {
		ids = append(ids, uuid.MustParse(raw))
	}

	records, err := h.service.BatchHistory(r.Context(), ids, payload.IgnoredFields)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make(map[string]*history.Record, len(records))
	for id, record := range records {
		out[id.String()] = record
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDiff(w http.ResponseWriter, r *http.Request) {
	var payload diffPayload
	if !decodePayload(w, r, &payload) {
		return
	}
	record := h.service.Diff(payload.Snapshots, payload.IgnoredFields)
	if record == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var payload createEntityPayload
	if !decodePayload(w, r, &payload) {
		return
	}
	entity, err := h.service.CreateEntity(r.Context(), uuid.MustParse(payload.OrganizationID), strings.TrimSpace(payload.EntityType), payload.Properties)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entity)
}

func (h *Handler) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	entityID, ok := pathEntityID(w, r)
	if !ok {
		return
	}
	var payload updateEntityPayload
	if !decodePayload(w, r, &payload) {
		return
	}
	entity, err := h.service.UpdateEntity(r.Context(), entityID, payload.Properties, payload.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (h *Handler) handlePatchEntity(w http.ResponseWriter, r *http.Request) {
	entityID, ok := pathEntityID(w, r)
	if !ok {
		return
	}
	var payload patchEntityPayload
	if !decodePayload(w, r, &payload) {
		return
	}
	if len(payload.Set) == 0 && len(payload.Unset) == 0 {
		http.Error(w, "set or unset is required", http.StatusBadRequest)
		return
	}
	entity, err := h.service.PatchEntity(r.Context(), entityID, payload.Set, payload.Unset, payload.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrOutOfScope):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func pathEntityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid entity id: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// ignoredFromQuery accepts both ?ignore=a,b and repeated ?ignore= parameters.
func ignoredFromQuery(r *http.Request) []string {
	var fields []string
	for _, raw := range r.URL.Query()["ignore"] {
		for _, field := range strings.Split(raw, ",") {
			if field = strings.TrimSpace(field); field != "" {
				fields = append(fields, field)
			}
		}
	}
	return fields
}

func decodePayload(w http.ResponseWriter, r *http.Request, payload any) bool {
	body := http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(payload); err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
