package reconcile

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/transport"
)

type ServiceAPI interface {
	Reconcile(ctx context.Context, dto *RoleWebhookDTO) (*Result, error)
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

// RoleWebhook handles the platform's role-change notification. The route
// sits behind API-credential authentication; the credential identifies
// the relay, the payload decides the scope.
func (h *Handler) RoleWebhook(w http.ResponseWriter, r *http.Request) {
	if internal.CredentialDepartmentFromContext(r.Context()) == 0 {
		h.WriteError(w, http.StatusUnauthorized, "credential authentication required")
		return
	}

	var dto RoleWebhookDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("failed to decode role webhook", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Reconcile(r.Context(), &dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
