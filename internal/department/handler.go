package department

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	identifierDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/identifier"
	"github.com/averhoeven/roster-management/internal/transport"
	"github.com/averhoeven/roster-management/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateDepartment(dto *CreateDepartmentDTO) (*departmentDatamodel.Department, error)
	GetDepartment(id int64) (*departmentDatamodel.Department, error)
	ListDepartments() ([]*departmentDatamodel.Department, error)
	DeactivateDepartment(id int64) (*departmentDatamodel.Department, error)
	CreateRank(departmentID int64, dto *CreateRankDTO) (*departmentDatamodel.Rank, error)
	UpdateRank(rankID int64, dto *UpdateRankDTO) (*departmentDatamodel.Rank, error)
	DeleteRank(ctx context.Context, rankID int64) error
	ListRanks(departmentID int64) ([]*departmentDatamodel.Rank, error)
	CreateTeam(departmentID int64, dto *CreateTeamDTO) (*departmentDatamodel.Team, error)
	UpdateTeam(teamID int64, dto *UpdateTeamDTO) (*departmentDatamodel.Team, error)
	DeleteTeam(ctx context.Context, teamID int64) error
	ListTeams(departmentID int64) ([]*departmentDatamodel.Team, error)
	SetTeamLimit(teamID int64, dto *SetTeamLimitDTO) (*departmentDatamodel.TeamRankLimit, error)
	RemoveTeamLimit(teamID, rankID int64) error
	ListTeamLimits(teamID int64) ([]*departmentDatamodel.TeamRankLimit, error)
}

// PoolAPI exposes a department's identifier pool for the read endpoint.
type PoolAPI interface {
	Pool(departmentID int64) ([]*identifierDatamodel.Slot, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Pool    PoolAPI
}

func NewHandler(service ServiceAPI, pool PoolAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Pool:        pool,
	}
}

func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var dto CreateDepartmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateDepartment: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dept, err := h.Service.CreateDepartment(&dto)
	if err != nil {
		h.Logger.Error("CreateDepartment: service error", "error", err, "name", dto.Name)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateDepartment: department created",
		"department_id", dept.ID,
		"name", dept.Name)
	h.WriteJSON(w, http.StatusCreated, dept)
}

func (h *Handler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department ID")
	if !ok {
		return
	}

	dept, err := h.Service.GetDepartment(departmentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dept)
}

func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.Service.ListDepartments()
	if err != nil {
		h.Logger.Error("ListDepartments: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"departments": depts,
	})
}

func (h *Handler) DeactivateDepartment(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department ID")
	if !ok {
		return
	}

	dept, err := h.Service.DeactivateDepartment(departmentID)
	if err != nil {
		h.Logger.Error("DeactivateDepartment: service error", "error", err, "department_id", departmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dept)
}

func (h *Handler) ListIdentifiers(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department ID")
	if !ok {
		return
	}

	slots, err := h.Pool.Pool(departmentID)
	if err != nil {
		h.Logger.Error("ListIdentifiers: service error", "error", err, "department_id", departmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"identifiers": slots,
	})
}

func (h *Handler) CreateRank(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department ID")
	if !ok {
		return
	}

	var dto CreateRankDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateRank: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rank, err := h.Service.CreateRank(departmentID, &dto)
	if err != nil {
		h.Logger.Error("CreateRank: service error", "error", err, "department_id", departmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateRank: rank created",
		"rank_id", rank.ID,
		"department_id", departmentID,
		"name", rank.Name)
	h.WriteJSON(w, http.StatusCreated, rank)
}

func (h *Handler) ListRanks(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department ID")
	if !ok {
		return
	}

	ranks, err := h.Service.ListRanks(departmentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ranks": ranks,
	})
}

func (h *Handler) UpdateRank(w http.ResponseWriter, r *http.Request) {
	rankID, ok := h.pathID(w, r, "id", "invalid rank ID")
	if !ok {
		return
	}

	var dto UpdateRankDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateRank: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rank, err := h.Service.UpdateRank(rankID, &dto)
	if err != nil {
		h.Logger.Error("UpdateRank: service error", "error", err, "rank_id", rankID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, rank)
}

func (h *Handler) DeleteRank(w http.ResponseWriter, r *http.Request) {
	rankID, ok := h.pathID(w, r, "id", "invalid rank ID")
	if !ok {
		return
	}

	if err := h.Service.DeleteRank(r.Context(), rankID); err != nil {
		h.Logger.Error("DeleteRank: service error", "error", err, "rank_id", rankID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department ID")
	if !ok {
		return
	}

	var dto CreateTeamDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateTeam: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	team, err := h.Service.CreateTeam(departmentID, &dto)
	if err != nil {
		h.Logger.Error("CreateTeam: service error", "error", err, "department_id", departmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateTeam: team created",
		"team_id", team.ID,
		"department_id", departmentID,
		"name", team.Name)
	h.WriteJSON(w, http.StatusCreated, team)
}

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	departmentID, ok := h.pathID(w, r, "id", "invalid department ID")
	if !ok {
		return
	}

	teams, err := h.Service.ListTeams(departmentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"teams": teams,
	})
}

func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "id", "invalid team ID")
	if !ok {
		return
	}

	var dto UpdateTeamDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateTeam: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	team, err := h.Service.UpdateTeam(teamID, &dto)
	if err != nil {
		h.Logger.Error("UpdateTeam: service error", "error", err, "team_id", teamID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, team)
}

func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "id", "invalid team ID")
	if !ok {
		return
	}

	if err := h.Service.DeleteTeam(r.Context(), teamID); err != nil {
		h.Logger.Error("DeleteTeam: service error", "error", err, "team_id", teamID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetTeamLimit(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "id", "invalid team ID")
	if !ok {
		return
	}

	var dto SetTeamLimitDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("SetTeamLimit: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	limit, err := h.Service.SetTeamLimit(teamID, &dto)
	if err != nil {
		h.Logger.Error("SetTeamLimit: service error", "error", err, "team_id", teamID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, limit)
}

func (h *Handler) RemoveTeamLimit(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "id", "invalid team ID")
	if !ok {
		return
	}
	rankID, ok := h.pathID(w, r, "rankID", "invalid rank ID")
	if !ok {
		return
	}

	if err := h.Service.RemoveTeamLimit(teamID, rankID); err != nil {
		h.Logger.Error("RemoveTeamLimit: service error", "error", err, "team_id", teamID, "rank_id", rankID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTeamLimits(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "id", "invalid team ID")
	if !ok {
		return
	}

	limits, err := h.Service.ListTeamLimits(teamID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"limits": limits,
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param, message string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.Logger.Error("invalid path parameter", "param", param, "value", raw)
		h.WriteError(w, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
}
