package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/averhoeven/roster-management/internal"
	credentialDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/credential"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Mock CredentialRepository for testing
type mockCredentialRepository struct {
	credentials   map[string]*credentialDatamodel.APICredential
	touched       []int64
	returnError   bool
	errorToReturn error
	nextID        int64
}

func newMockCredentialRepository() *mockCredentialRepository {
	return &mockCredentialRepository{
		credentials: make(map[string]*credentialDatamodel.APICredential),
	}
}

func (m *mockCredentialRepository) CreateCredential(cred *credentialDatamodel.APICredential) error {
	if m.returnError {
		return m.errorToReturn
	}
	m.nextID++
	cred.ID = m.nextID
	m.credentials[cred.KeyPrefix] = cred
	return nil
}

func (m *mockCredentialRepository) GetActiveByKeyPrefix(keyPrefix string) (*credentialDatamodel.APICredential, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	cred, exists := m.credentials[keyPrefix]
	if !exists || !cred.IsActive {
		return nil, nil
	}
	return cred, nil
}

func (m *mockCredentialRepository) TouchLastUsed(id int64, at time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

// Mock ActorRepository for testing
type mockActorRepository struct {
	members map[int64]*memberDatamodel.Member
	ranks   map[int64]*departmentDatamodel.Rank
}

func newMockActorRepository() *mockActorRepository {
	return &mockActorRepository{
		members: make(map[int64]*memberDatamodel.Member),
		ranks:   make(map[int64]*departmentDatamodel.Rank),
	}
}

func (m *mockActorRepository) GetActiveMember(id int64) (*memberDatamodel.Member, error) {
	member, exists := m.members[id]
	if !exists || !member.IsActive {
		return nil, nil
	}
	return member, nil
}

func (m *mockActorRepository) GetRank(id int64) (*departmentDatamodel.Rank, error) {
	rank, exists := m.ranks[id]
	if !exists {
		return nil, nil
	}
	return rank, nil
}

func mintToken(secret, subject string, ttl time.Duration) string {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	return token
}

var _ = ginkgo.Describe("Credential Service", func() {
	var (
		service  *Service
		mockRepo *mockCredentialRepository
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockCredentialRepository()
		service = NewService(mockRepo, bcrypt.MinCost, testLogger())
	})

	ginkgo.Describe("IssueCredential", func() {
		ginkgo.It("should store the hash and hand back the clear key once", func() {
			// When
			cred, key, err := service.IssueCredential(1, "training webhook")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(key).To(gomega.HavePrefix("rk_"))
			gomega.Expect(cred.KeyPrefix).To(gomega.Equal(key[:12]))
			gomega.Expect(cred.KeyHash).ToNot(gomega.Equal(key))
			gomega.Expect(cred.IsActive).To(gomega.BeTrue())

			err = bcrypt.CompareHashAndPassword([]byte(cred.KeyHash), []byte(key))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should generate a different key every time", func() {
			_, first, err1 := service.IssueCredential(1, "one")
			_, second, err2 := service.IssueCredential(1, "two")

			gomega.Expect(err1).ToNot(gomega.HaveOccurred())
			gomega.Expect(err2).ToNot(gomega.HaveOccurred())
			gomega.Expect(first).ToNot(gomega.Equal(second))
		})

		ginkgo.It("should reject a blank name", func() {
			_, _, err := service.IssueCredential(1, "   ")

			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should reject a missing department", func() {
			_, _, err := service.IssueCredential(0, "training webhook")

			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("Authenticate", func() {
		var issuedKey string
		var issued *credentialDatamodel.APICredential

		ginkgo.BeforeEach(func() {
			var err error
			issued, issuedKey, err = service.IssueCredential(7, "training webhook")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should accept the issued key and record its use", func() {
			// When
			cred, err := service.Authenticate(context.Background(), issuedKey)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(cred.DepartmentID).To(gomega.Equal(int64(7)))
			gomega.Expect(cred.LastUsedAt).ToNot(gomega.BeNil())
			gomega.Expect(mockRepo.touched).To(gomega.ContainElement(issued.ID))
		})

		ginkgo.It("should reject a key with the right prefix but wrong secret", func() {
			forged := issuedKey[:12] + "0000000000000000000000000000000000000000"

			cred, err := service.Authenticate(context.Background(), forged)

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredential))
			gomega.Expect(cred).To(gomega.BeNil())
		})

		ginkgo.It("should reject an unknown prefix", func() {
			cred, err := service.Authenticate(context.Background(), "rk_ffffffffffffffffffffffffffffffffffffffffffffffff")

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredential))
			gomega.Expect(cred).To(gomega.BeNil())
		})

		ginkgo.It("should reject a key shorter than the prefix", func() {
			_, err := service.Authenticate(context.Background(), "rk_short")

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredential))
		})

		ginkgo.It("should reject a deactivated credential", func() {
			issued.IsActive = false

			_, err := service.Authenticate(context.Background(), issuedKey)

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredential))
		})

		ginkgo.It("should surface repository failures as internal errors", func() {
			mockRepo.returnError = true
			mockRepo.errorToReturn = errors.New("database error")

			_, err := service.Authenticate(context.Background(), issuedKey)

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err).ToNot(gomega.Equal(internal.ErrInvalidCredential))
		})
	})
})

var _ = ginkgo.Describe("HMACVerifier", func() {
	var verifier *HMACVerifier
	secret := "test-actor-secret"

	ginkgo.BeforeEach(func() {
		verifier = NewHMACVerifier(secret)
	})

	ginkgo.It("should accept a token and expose the member subject", func() {
		// Given
		token := mintToken(secret, "42", 15*time.Minute)

		// When
		claims, err := verifier.VerifyActorToken(token)

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		memberID, err := claims.MemberID()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(memberID).To(gomega.Equal(int64(42)))
	})

	ginkgo.It("should reject a token signed with another secret", func() {
		token := mintToken("some-other-secret", "42", 15*time.Minute)

		claims, err := verifier.VerifyActorToken(token)

		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		gomega.Expect(claims).To(gomega.BeNil())
	})

	ginkgo.It("should reject an expired token", func() {
		token := mintToken(secret, "42", -time.Hour)

		claims, err := verifier.VerifyActorToken(token)

		gomega.Expect(err).To(gomega.Equal(ErrTokenExpired))
		gomega.Expect(claims).To(gomega.BeNil())
	})

	ginkgo.It("should reject the none algorithm", func() {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "42",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		_, err = verifier.VerifyActorToken(token)

		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
	})

	ginkgo.It("should reject garbage", func() {
		_, err := verifier.VerifyActorToken("not.a.token")

		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
	})

	ginkgo.It("should refuse a subject that is not a member id", func() {
		token := mintToken(secret, "robot-7", 15*time.Minute)

		claims, err := verifier.VerifyActorToken(token)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		_, err = claims.MemberID()
		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
	})
})

var _ = ginkgo.Describe("Middleware", func() {
	var (
		middleware *Middleware
		credRepo   *mockCredentialRepository
		service    *Service
		secret     = "middleware-secret"
	)

	ginkgo.BeforeEach(func() {
		credRepo = newMockCredentialRepository()
		service = NewService(credRepo, bcrypt.MinCost, testLogger())
		middleware = NewMiddleware(NewHMACVerifier(secret), service)
	})

	ginkgo.Describe("RequireActor", func() {
		ginkgo.It("should store the member id for downstream handlers", func() {
			var seenActor int64
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenActor = internal.ActorFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/members/1", nil)
			req.Header.Set("Authorization", "Bearer "+mintToken(secret, "42", 15*time.Minute))
			rec := httptest.NewRecorder()

			middleware.RequireActor(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(seenActor).To(gomega.Equal(int64(42)))
		})

		ginkgo.It("should reject a request without a token", func() {
			req := httptest.NewRequest(http.MethodGet, "/members/1", nil)
			rec := httptest.NewRecorder()

			middleware.RequireActor(http.NotFoundHandler()).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should reject an invalid token", func() {
			req := httptest.NewRequest(http.MethodGet, "/members/1", nil)
			req.Header.Set("Authorization", "Bearer garbage")
			rec := httptest.NewRecorder()

			middleware.RequireActor(http.NotFoundHandler()).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should reject a token whose subject is not a member", func() {
			req := httptest.NewRequest(http.MethodGet, "/members/1", nil)
			req.Header.Set("Authorization", "Bearer "+mintToken(secret, "robot-7", 15*time.Minute))
			rec := httptest.NewRecorder()

			middleware.RequireActor(http.NotFoundHandler()).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("RequireAPICredential", func() {
		ginkgo.It("should store the credential scope for downstream handlers", func() {
			_, key, err := service.IssueCredential(9, "training webhook")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			var seenDepartment int64
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenDepartment = internal.CredentialDepartmentFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodPost, "/webhooks/roles", nil)
			req.Header.Set(APIKeyHeader, key)
			rec := httptest.NewRecorder()

			middleware.RequireAPICredential(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(seenDepartment).To(gomega.Equal(int64(9)))
		})

		ginkgo.It("should reject a missing key", func() {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/roles", nil)
			rec := httptest.NewRecorder()

			middleware.RequireAPICredential(http.NotFoundHandler()).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should reject an unknown key", func() {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/roles", nil)
			req.Header.Set(APIKeyHeader, "rk_ffffffffffffffffffffffffffffffffffffffffffffffff")
			rec := httptest.NewRecorder()

			middleware.RequireAPICredential(http.NotFoundHandler()).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})

var _ = ginkgo.Describe("Authorizer", func() {
	var (
		authorizer *Authorizer
		repo       *mockActorRepository
		router     chi.Router
		admitted   bool
	)

	manageRanks := func(p departmentDatamodel.Permissions) bool { return p.ManageRanks }

	actorRequest := func(method, target string, actorID int64) *http.Request {
		req := httptest.NewRequest(method, target, nil)
		if actorID != 0 {
			req = req.WithContext(internal.ContextWithActor(req.Context(), actorID))
		}
		return req
	}

	ginkgo.BeforeEach(func() {
		repo = newMockActorRepository()
		authorizer = NewAuthorizer(repo)
		admitted = false

		okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admitted = true
			w.WriteHeader(http.StatusNoContent)
		})

		router = chi.NewRouter()
		router.With(authorizer.RequireDepartmentPermission("id", "manage_ranks", manageRanks)).
			Post("/departments/{id}/ranks", okHandler)
		router.With(authorizer.RequirePermission("manage_ranks", manageRanks)).
			Post("/departments", okHandler)

		rankID := int64(10)
		repo.ranks[rankID] = &departmentDatamodel.Rank{
			ID:           rankID,
			DepartmentID: 1,
			Name:         "Chief",
			Level:        100,
			Permissions:  departmentDatamodel.Permissions{ManageRanks: true},
		}
		repo.members[42] = &memberDatamodel.Member{
			ID:           42,
			DepartmentID: 1,
			RankID:       &rankID,
			IsActive:     true,
		}
	})

	ginkgo.It("should admit an actor with the permission in the routed department", func() {
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, actorRequest(http.MethodPost, "/departments/1/ranks", 42))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(admitted).To(gomega.BeTrue())
	})

	ginkgo.It("should refuse an actor from another department", func() {
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, actorRequest(http.MethodPost, "/departments/2/ranks", 42))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(admitted).To(gomega.BeFalse())
	})

	ginkgo.It("should refuse an actor whose rank lacks the permission", func() {
		repo.ranks[10].Permissions = departmentDatamodel.Permissions{ManageTeams: true}
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, actorRequest(http.MethodPost, "/departments/1/ranks", 42))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
	})

	ginkgo.It("should refuse an unranked actor", func() {
		repo.members[42].RankID = nil
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, actorRequest(http.MethodPost, "/departments/1/ranks", 42))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
	})

	ginkgo.It("should refuse a removed actor", func() {
		repo.members[42].IsActive = false
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, actorRequest(http.MethodPost, "/departments/1/ranks", 42))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
	})

	ginkgo.It("should demand authentication first", func() {
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, actorRequest(http.MethodPost, "/departments/1/ranks", 0))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("should admit department creation from any department with the permission", func() {
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, actorRequest(http.MethodPost, "/departments", 42))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(admitted).To(gomega.BeTrue())
	})
})
