package postgres

import (
	"time"

	"github.com/averhoeven/roster-management/internal/auth"

	credentialDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/credential"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"gorm.io/gorm"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) auth.CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) CreateCredential(cred *credentialDatamodel.APICredential) error {
	return r.db.Create(cred).Error
}

func (r *CredentialRepository) GetActiveByKeyPrefix(keyPrefix string) (*credentialDatamodel.APICredential, error) {
	var cred credentialDatamodel.APICredential
	err := r.db.
		Where("key_prefix = ? AND is_active = ?", keyPrefix, true).
		First(&cred).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) TouchLastUsed(id int64, at time.Time) error {
	return r.db.
		Model(&credentialDatamodel.APICredential{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}

// ActorRepository backs the route authorizer.
type ActorRepository struct {
	db *gorm.DB
}

func NewActorRepository(db *gorm.DB) auth.ActorRepository {
	return &ActorRepository{db: db}
}

func (r *ActorRepository) GetActiveMember(id int64) (*memberDatamodel.Member, error) {
	var m memberDatamodel.Member
	err := r.db.
		Where("id = ? AND is_active = ?", id, true).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ActorRepository) GetRank(id int64) (*departmentDatamodel.Rank, error) {
	var rank departmentDatamodel.Rank
	err := r.db.Where("id = ?", id).First(&rank).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rank, nil
}
