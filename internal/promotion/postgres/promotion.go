package postgres

import (
	"context"
	"time"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/promotion"

	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"gorm.io/gorm"
)

type PromotionRepository struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) promotion.Repository {
	return &PromotionRepository{db: db}
}

func (r *PromotionRepository) GetMember(id int64) (*memberDatamodel.Member, error) {
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

func (r *PromotionRepository) GetDepartment(id int64) (*departmentDatamodel.Department, error) {
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

func (r *PromotionRepository) GetRank(id int64) (*departmentDatamodel.Rank, error) {
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

func (r *PromotionRepository) GetTeam(id int64) (*departmentDatamodel.Team, error) {
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

// CommitRankChange performs the local half of a rank change in one
// transaction. The first write on the destination rank row makes
// concurrent commits into the same rank queue behind each other, so the
// occupancy count that follows cannot be raced past the limit. The member
// update is version-guarded; a concurrent member write surfaces as
// ErrStaleMember and rolls the whole transaction back.
func (r *PromotionRepository) CommitRankChange(ctx context.Context, m *memberDatamodel.Member, toRankID int64, newCallsign string, entry *memberDatamodel.PromotionHistoryEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&departmentDatamodel.Rank{}).
			Where("id = ?", toRankID).
			Update("updated_at", time.Now().UTC()).Error; err != nil {
			return err
		}

		var rank departmentDatamodel.Rank
		if err := tx.Where("id = ?", toRankID).First(&rank).Error; err != nil {
			return err
		}

		limit, scopeTeamID, err := effectiveLimit(tx, &rank, m.TeamID)
		if err != nil {
			return err
		}
		if limit != nil {
			query := tx.Model(&memberDatamodel.Member{}).
				Where("rank_id = ? AND is_active = ?", toRankID, true)
			if scopeTeamID != nil {
				query = query.Where("team_id = ?", *scopeTeamID)
			} else {
				query = query.Where("department_id = ?", rank.DepartmentID)
			}
			var count int64
			if err := query.Count(&count).Error; err != nil {
				return err
			}
			if count >= *limit {
				return internal.ErrRankLimitExceeded
			}
		}

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

	rankID := toRankID
	m.RankID = &rankID
	m.Callsign = newCallsign
	m.Version++
	return nil
}

// effectiveLimit resolves which cap governs inside the commit transaction:
// a team override for the member's primary team when one exists, otherwise
// the rank's own max_members with nil meaning unlimited.
func effectiveLimit(tx *gorm.DB, rank *departmentDatamodel.Rank, teamID *int64) (*int64, *int64, error) {
	if teamID != nil {
		var override departmentDatamodel.TeamRankLimit
		err := tx.Where("team_id = ? AND rank_id = ?", *teamID, rank.ID).First(&override).Error
		if err == nil {
			limit := override.MaxMembers
			return &limit, teamID, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, nil, err
		}
	}
	return rank.MaxMembers, nil, nil
}

func (r *PromotionRepository) ListHistory(memberID int64) ([]*memberDatamodel.PromotionHistoryEntry, error) {
	var entries []*memberDatamodel.PromotionHistoryEntry
	err := r.db.
		Where("member_id = ?", memberID).
		Order("occurred_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}
