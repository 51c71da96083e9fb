package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/averhoeven/roster-management/internal"
	credentialDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/credential"
	"github.com/averhoeven/roster-management/internal/transport"
)

// CredentialAPI is the slice of the credential service the middleware uses.
type CredentialAPI interface {
	Authenticate(ctx context.Context, key string) (*credentialDatamodel.APICredential, error)
}

// APIKeyHeader carries department credentials on webhook routes.
const APIKeyHeader = "X-Api-Key"

type Middleware struct {
	*transport.BaseHandler
	verifier    TokenVerifier
	credentials CredentialAPI
}

func NewMiddleware(verifier TokenVerifier, credentials CredentialAPI) *Middleware {
	return &Middleware{
		BaseHandler: transport.NewBaseHandler(nil),
		verifier:    verifier,
		credentials: credentials,
	}
}

// RequireActor verifies the bearer token and stores the member id named by
// its subject. Nothing is issued here; an upstream identity service owns
// the tokens.
func (m *Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.ExtractTokenFromHeader(r)
		if token == "" {
			m.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := m.verifier.VerifyActorToken(token)
		if err != nil {
			m.Logger.Warn("actor token rejected", "error", err)
			m.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		actorID, err := claims.MemberID()
		if err != nil {
			m.Logger.Warn("actor token carries no member subject", "subject", claims.Subject)
			m.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := internal.ContextWithActor(r.Context(), actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAPICredential authenticates the key header and stores the
// credential's department scope.
func (m *Middleware) RequireAPICredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
		if key == "" {
			m.WriteError(w, http.StatusUnauthorized, "missing api credential")
			return
		}

		cred, err := m.credentials.Authenticate(r.Context(), key)
		if err != nil {
			m.Logger.Warn("api credential rejected", "error", err)
			m.WriteError(w, http.StatusUnauthorized, "invalid api credential")
			return
		}

		ctx := internal.ContextWithCredentialDepartment(r.Context(), cred.DepartmentID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
