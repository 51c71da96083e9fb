package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/averhoeven/roster-management/internal"
	credentialDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/credential"
)

// keyPrefixLength is how much of an issued key doubles as its lookup
// handle. The prefix travels in clear; the whole key is bcrypt-hashed.
const (
	keyPrefixLength = 12
	keyByteLength   = 24
)

type CredentialRepository interface {
	CreateCredential(cred *credentialDatamodel.APICredential) error
	GetActiveByKeyPrefix(keyPrefix string) (*credentialDatamodel.APICredential, error)
	TouchLastUsed(id int64, at time.Time) error
}

// Service issues and authenticates department API credentials, the
// shared-secret surface behind training-completion and role webhooks.
type Service struct {
	repo       CredentialRepository
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo CredentialRepository, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// GenerateKey mints a department API key: rk_ followed by hex.
func GenerateKey() (string, error) {
	bytes := make([]byte, keyByteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "rk_" + hex.EncodeToString(bytes), nil
}

// IssueCredential stores a new credential and returns the clear key once.
// Only the hash persists; a lost key means issuing a replacement.
func (s *Service) IssueCredential(departmentID int64, name string) (*credentialDatamodel.APICredential, string, error) {
	name = strings.TrimSpace(name)
	if departmentID <= 0 || name == "" {
		return nil, "", internal.NewValidationError("department and name are required", internal.ErrCodeValidationFailed)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, "", internal.NewInternalError("could not generate credential key", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), s.bcryptCost)
	if err != nil {
		return nil, "", internal.NewInternalError("could not hash credential key", err)
	}

	cred := &credentialDatamodel.APICredential{
		DepartmentID: departmentID,
		Name:         name,
		KeyPrefix:    key[:keyPrefixLength],
		KeyHash:      string(hash),
		IsActive:     true,
	}
	if err := s.repo.CreateCredential(cred); err != nil {
		return nil, "", internal.NewInternalError("could not store credential", err)
	}

	s.logger.Info("api credential issued",
		"credential_id", cred.ID,
		"department_id", departmentID,
		"name", name)
	return cred, key, nil
}

// Authenticate resolves a presented key to its credential. Lookup goes
// through the clear prefix; the bcrypt comparison covers the whole key.
func (s *Service) Authenticate(ctx context.Context, key string) (*credentialDatamodel.APICredential, error) {
	if len(key) < keyPrefixLength {
		return nil, internal.ErrInvalidCredential
	}

	cred, err := s.repo.GetActiveByKeyPrefix(key[:keyPrefixLength])
	if err != nil {
		s.logger.Error("credential lookup failed", "error", err)
		return nil, internal.NewInternalError("could not look up credential", err)
	}
	if cred == nil {
		return nil, internal.ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.KeyHash), []byte(key)); err != nil {
		return nil, internal.ErrInvalidCredential
	}

	now := time.Now().UTC()
	if err := s.repo.TouchLastUsed(cred.ID, now); err != nil {
		s.logger.Warn("could not record credential use", "credential_id", cred.ID, "error", err)
	}
	cred.LastUsedAt = &now
	return cred, nil
}
