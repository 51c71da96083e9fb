package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/averhoeven/roster-management/internal/auth"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	"github.com/averhoeven/roster-management/internal/department"
	"github.com/averhoeven/roster-management/internal/promotion"
	"github.com/averhoeven/roster-management/internal/reconcile"
	"github.com/averhoeven/roster-management/internal/roster"
	"github.com/averhoeven/roster-management/internal/transport/middleware"
	"github.com/averhoeven/roster-management/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/redis/go-redis/v9"
)

// Permission predicates used by the route guards. Department-scoped routes
// pin the actor to the department in the path; flat routes only demand that
// the actor's own rank carries the permission.
var (
	manageMembers = func(p departmentDatamodel.Permissions) bool { return p.ManageMembers }
	manageRanks   = func(p departmentDatamodel.Permissions) bool { return p.ManageRanks }
	manageTeams   = func(p departmentDatamodel.Permissions) bool { return p.ManageTeams }
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, queue *redis.Client, authMW *auth.Middleware, authorizer *auth.Authorizer, departmentHandler *department.Handler, rosterHandler *roster.Handler, promotionHandler *promotion.Handler, reconcileHandler *reconcile.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, queue)

	// Apply global middleware; CORS is installed by the server command so
	// the configured origin list reaches it.
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if authMW == nil {
			return
		}

		// Relay routes authenticate with an API credential instead of an
		// actor session: the role webhook and the training bot callback.
		r.Group(func(cr chi.Router) {
			cr.Use(authMW.RequireAPICredential)

			if reconcileHandler != nil {
				cr.Post("/webhooks/roles", reconcileHandler.RoleWebhook)
			}
			if rosterHandler != nil {
				cr.Post("/members/{id}/complete-training", rosterHandler.CompleteTraining)
			}
		})

		// Everything else runs on behalf of an authenticated actor.
		r.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireActor)

			if departmentHandler != nil {
				pr.Route("/departments", func(dr chi.Router) {
					dr.Get("/", departmentHandler.ListDepartments)
					dr.With(authorizer.RequirePermission("manage_ranks", manageRanks)).
						Post("/", departmentHandler.CreateDepartment)

					dr.Route("/{id}", func(ir chi.Router) {
						ir.Get("/", departmentHandler.GetDepartment)
						ir.With(authorizer.RequireDepartmentPermission("id", "manage_ranks", manageRanks)).
							Delete("/", departmentHandler.DeactivateDepartment)

						ir.Get("/identifiers", departmentHandler.ListIdentifiers)

						ir.Get("/ranks", departmentHandler.ListRanks)
						ir.With(authorizer.RequireDepartmentPermission("id", "manage_ranks", manageRanks)).
							Post("/ranks", departmentHandler.CreateRank)

						ir.Get("/teams", departmentHandler.ListTeams)
						ir.With(authorizer.RequireDepartmentPermission("id", "manage_teams", manageTeams)).
							Post("/teams", departmentHandler.CreateTeam)

						if rosterHandler != nil {
							ir.Get("/members", rosterHandler.ListMembers)
							ir.With(authorizer.RequireDepartmentPermission("id", "manage_members", manageMembers)).
								Post("/members", rosterHandler.Join)
						}
					})
				})

				pr.Route("/ranks/{id}", func(rr chi.Router) {
					rr.Use(authorizer.RequirePermission("manage_ranks", manageRanks))
					rr.Patch("/", departmentHandler.UpdateRank)
					rr.Delete("/", departmentHandler.DeleteRank)
				})

				pr.Route("/teams/{id}", func(tr chi.Router) {
					tr.Get("/rank-limits", departmentHandler.ListTeamLimits)

					tr.Group(func(mr chi.Router) {
						mr.Use(authorizer.RequirePermission("manage_teams", manageTeams))
						mr.Patch("/", departmentHandler.UpdateTeam)
						mr.Delete("/", departmentHandler.DeleteTeam)
					})

					// Per-team rank caps belong to rank administration, not
					// team administration.
					tr.Group(func(mr chi.Router) {
						mr.Use(authorizer.RequirePermission("manage_ranks", manageRanks))
						mr.Put("/rank-limits", departmentHandler.SetTeamLimit)
						mr.Delete("/rank-limits/{rankID}", departmentHandler.RemoveTeamLimit)
					})
				})
			}

			if rosterHandler != nil {
				pr.Route("/members/{id}", func(mr chi.Router) {
					mr.Get("/", rosterHandler.GetMember)

					// Member-scoped operations carry the actor into the
					// service, which checks permission and rank hierarchy
					// against the target.
					mr.Post("/bypass-training", rosterHandler.BypassTraining)
					mr.Post("/team", rosterHandler.AssignTeam)
					mr.Post("/status", rosterHandler.ChangeStatus)
					mr.Post("/remove", rosterHandler.Remove)
					mr.Post("/restore", rosterHandler.Restore)

					if promotionHandler != nil {
						mr.Post("/promote", promotionHandler.Promote)
						mr.Post("/demote", promotionHandler.Demote)
						mr.Get("/history", promotionHandler.History)
					}
				})
			}
		})
	})
}
