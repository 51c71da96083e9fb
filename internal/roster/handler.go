package roster

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/averhoeven/roster-management/internal"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/platform"
	"github.com/averhoeven/roster-management/internal/transport"
)

type ServiceAPI interface {
	Join(ctx context.Context, actorID, departmentID int64, dto *JoinDTO) (*memberDatamodel.Member, error)
	CompleteTraining(ctx context.Context, memberID, credentialDepartmentID int64) (*memberDatamodel.Member, error)
	BypassTraining(ctx context.Context, actorID, memberID int64) (*memberDatamodel.Member, error)
	AssignTeam(ctx context.Context, actorID, memberID int64, dto *AssignTeamDTO) (*memberDatamodel.Member, []platform.SyncWarning, error)
	ChangeStatus(ctx context.Context, actorID, memberID int64, dto *ChangeStatusDTO) (*memberDatamodel.Member, error)
	Remove(ctx context.Context, actorID, memberID int64, dto *RemoveDTO) (*memberDatamodel.Member, []platform.SyncWarning, error)
	Restore(ctx context.Context, actorID, memberID int64) (*memberDatamodel.Member, []platform.SyncWarning, error)
	GetMember(memberID int64) (*memberDatamodel.Member, error)
	ListMembers(departmentID int64) ([]*memberDatamodel.Member, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(nil),
		Service:     service,
	}
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	departmentID, ok := h.pathID(w, r, "id", "invalid department id")
	if !ok {
		return
	}

	var dto JoinDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("failed to decode join request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.Service.Join(r.Context(), actorID, departmentID, &dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, member)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department id")
	if !ok {
		return
	}

	members, err := h.Service.ListMembers(departmentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
	})
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	member, err := h.Service.GetMember(memberID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, member)
}

// CompleteTraining is reached through credential-key authentication, not an
// actor session; the middleware stores the credential's department scope.
func (h *Handler) CompleteTraining(w http.ResponseWriter, r *http.Request) {
	credentialDeptID := internal.CredentialDepartmentFromContext(r.Context())
	if credentialDeptID == 0 {
		h.WriteError(w, http.StatusUnauthorized, "credential authentication required")
		return
	}
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	member, err := h.Service.CompleteTraining(r.Context(), memberID, credentialDeptID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) BypassTraining(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	member, err := h.Service.BypassTraining(r.Context(), actorID, memberID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) AssignTeam(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	var dto AssignTeamDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("failed to decode team assignment request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, warnings, err := h.Service.AssignTeam(r.Context(), actorID, memberID, &dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeMemberWithWarnings(w, member, warnings)
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	var dto ChangeStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("failed to decode status change request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.Service.ChangeStatus(r.Context(), actorID, memberID, &dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	// removal reason is optional, so an empty body is accepted
	var dto RemoveDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		h.Logger.Error("failed to decode removal request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, warnings, err := h.Service.Remove(r.Context(), actorID, memberID, &dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeMemberWithWarnings(w, member, warnings)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	member, warnings, err := h.Service.Restore(r.Context(), actorID, memberID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeMemberWithWarnings(w, member, warnings)
}

func (h *Handler) writeMemberWithWarnings(w http.ResponseWriter, member *memberDatamodel.Member, warnings []platform.SyncWarning) {
	if warnings == nil {
		warnings = []platform.SyncWarning{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"member":   member,
		"warnings": warnings,
	})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actorID := internal.ActorFromContext(r.Context())
	if actorID == 0 {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	return actorID, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
}
