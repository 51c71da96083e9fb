package promotion

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/averhoeven/roster-management/internal"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/transport"
)

type ServiceAPI interface {
	Promote(ctx context.Context, actorID, memberID int64, dto *ChangeRankDTO) (*memberDatamodel.Member, error)
	Demote(ctx context.Context, actorID, memberID int64, dto *ChangeRankDTO) (*memberDatamodel.Member, error)
	History(memberID int64) ([]*memberDatamodel.PromotionHistoryEntry, error)
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

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	h.changeRank(w, r, h.Service.Promote)
}

func (h *Handler) Demote(w http.ResponseWriter, r *http.Request) {
	h.changeRank(w, r, h.Service.Demote)
}

func (h *Handler) changeRank(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, memberID int64, dto *ChangeRankDTO) (*memberDatamodel.Member, error)) {
	actorID := internal.ActorFromContext(r.Context())
	if actorID == 0 {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	var dto ChangeRankDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("failed to decode rank change request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := op(r.Context(), actorID, memberID, &dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathID(w, r, "id", "invalid member id")
	if !ok {
		return
	}

	entries, err := h.Service.History(memberID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
}
