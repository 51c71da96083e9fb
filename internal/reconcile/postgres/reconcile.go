package postgres

import (
	"context"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/reconcile"

	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"gorm.io/gorm"
)

type ReconcileRepository struct {
	db *gorm.DB
}

func NewReconcileRepository(db *gorm.DB) reconcile.Repository {
	return &ReconcileRepository{db: db}
}

func (r *ReconcileRepository) ListActiveByPlatformUser(platformUserID string, departmentID *int64) ([]*memberDatamodel.Member, error) {
	query := r.db.Where("platform_user_id = ? AND is_active = ?", platformUserID, true)
	if departmentID != nil {
		query = query.Where("department_id = ?", *departmentID)
	}

	var members []*memberDatamodel.Member
	err := query.Order("id ASC").Find(&members).Error
	return members, err
}

func (r *ReconcileRepository) GetMember(id int64) (*memberDatamodel.Member, error) {
	var m memberDatamodel.Member
	err := r.db.Where("id = ?", id).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ReconcileRepository) GetDepartment(id int64) (*departmentDatamodel.Department, error) {
	var dept departmentDatamodel.Department
	err := r.db.Where("id = ?", id).First(&dept).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &dept, nil
}

func (r *ReconcileRepository) ListRanks(departmentID int64) ([]*departmentDatamodel.Rank, error) {
	var ranks []*departmentDatamodel.Rank
	err := r.db.
		Where("department_id = ?", departmentID).
		Order("level DESC").
		Find(&ranks).Error
	return ranks, err
}

func (r *ReconcileRepository) GetTeam(id int64) (*departmentDatamodel.Team, error) {
	var team departmentDatamodel.Team
	err := r.db.Where("id = ?", id).First(&team).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &team, nil
}

// ApplyRankChange converges the member row onto the rank the platform
// reports. The update is guarded by the version column so a promotion
// committing in parallel makes this a zero-row match instead of a lost
// write; the history entry only lands when the member update does.
func (r *ReconcileRepository) ApplyRankChange(ctx context.Context, m *memberDatamodel.Member, toRankID *int64, newCallsign string, entry *memberDatamodel.PromotionHistoryEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&memberDatamodel.Member{}).
			Where("id = ? AND version = ?", m.ID, m.Version).
			Updates(map[string]interface{}{
				"rank_id":  toRankID,
				"callsign": newCallsign,
				"version":  m.Version + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrStaleMember
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return err
	}

	m.RankID = toRankID
	m.Callsign = newCallsign
	m.Version++
	return nil
}
