package auth

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/averhoeven/roster-management/internal"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/transport"
)

// ActorRepository resolves the acting member and the rank carrying their
// permissions.
type ActorRepository interface {
	GetActiveMember(id int64) (*memberDatamodel.Member, error)
	GetRank(id int64) (*departmentDatamodel.Rank, error)
}

// Authorizer guards admin routes with rank permissions, the same record
// the services consult for member-scoped operations.
type Authorizer struct {
	*transport.BaseHandler
	repo ActorRepository
}

func NewAuthorizer(repo ActorRepository) *Authorizer {
	return &Authorizer{
		BaseHandler: transport.NewBaseHandler(nil),
		repo:        repo,
	}
}

// RequirePermission admits active ranked actors whose permission record
// passes the check, whichever department they serve in.
func (a *Authorizer) RequirePermission(permission string, permitted func(departmentDatamodel.Permissions) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.admit(w, r, permission, permitted, nil) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireDepartmentPermission additionally pins the actor to the
// department named by the route parameter.
func (a *Authorizer) RequireDepartmentPermission(param, permission string, permitted func(departmentDatamodel.Permissions) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			departmentID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil {
				a.WriteError(w, http.StatusBadRequest, "invalid department id")
				return
			}
			if a.admit(w, r, permission, permitted, &departmentID) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (a *Authorizer) admit(w http.ResponseWriter, r *http.Request, permission string, permitted func(departmentDatamodel.Permissions) bool, departmentID *int64) bool {
	actorID := internal.ActorFromContext(r.Context())
	if actorID == 0 {
		a.WriteError(w, http.StatusUnauthorized, "authentication required")
		return false
	}

	actor, err := a.repo.GetActiveMember(actorID)
	if err != nil {
		a.Logger.Error("authorization lookup failed", "actor_id", actorID, "error", err)
		a.WriteError(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	if actor == nil {
		a.Logger.Warn("access denied: actor is not an active member", "actor_id", actorID)
		a.WriteError(w, http.StatusForbidden, "insufficient permissions")
		return false
	}
	if departmentID != nil && actor.DepartmentID != *departmentID {
		a.Logger.Warn("access denied: actor belongs to another department",
			"actor_id", actorID,
			"department_id", *departmentID)
		a.WriteError(w, http.StatusForbidden, "insufficient permissions")
		return false
	}
	if actor.RankID == nil {
		a.Logger.Warn("access denied: actor holds no rank",
			"actor_id", actorID,
			"required_permission", permission)
		a.WriteError(w, http.StatusForbidden, "insufficient permissions")
		return false
	}

	rank, err := a.repo.GetRank(*actor.RankID)
	if err != nil {
		a.Logger.Error("authorization lookup failed", "actor_id", actorID, "error", err)
		a.WriteError(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	if rank == nil || !permitted(rank.Permissions) {
		a.Logger.Warn("access denied: insufficient permissions",
			"actor_id", actorID,
			"required_permission", permission)
		a.WriteError(w, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}
