package postgres

import (
	"github.com/averhoeven/roster-management/internal"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/ranklimit"
	"gorm.io/gorm"
)

// RankLimitRepository implements the ranklimit.Repository interface using GORM
type RankLimitRepository struct {
	db *gorm.DB
}

// NewRankLimitRepository creates a new rank limit repository
func NewRankLimitRepository(db *gorm.DB) ranklimit.Repository {
	return &RankLimitRepository{db: db}
}

// GetRank retrieves a rank by ID
func (r *RankLimitRepository) GetRank(rankID int64) (*departmentDatamodel.Rank, error) {
	var rank departmentDatamodel.Rank
	err := r.db.Where("id = ?", rankID).First(&rank).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrRankNotFound
		}
		return nil, err
	}
	return &rank, nil
}

// GetTeamLimit returns the override row for (team, rank), or nil when the
// rank carries no team-scoped limit there.
func (r *RankLimitRepository) GetTeamLimit(teamID, rankID int64) (*departmentDatamodel.TeamRankLimit, error) {
	var limit departmentDatamodel.TeamRankLimit
	err := r.db.Where("team_id = ? AND rank_id = ?", teamID, rankID).First(&limit).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &limit, nil
}

// CountTeamOccupancy counts active members holding the rank whose primary
// team is the given team.
func (r *RankLimitRepository) CountTeamOccupancy(teamID, rankID int64) (int64, error) {
	var count int64
	err := r.db.Model(&memberDatamodel.Member{}).
		Where("team_id = ? AND rank_id = ? AND is_active = ?", teamID, rankID, true).
		Count(&count).Error
	return count, err
}

// CountDepartmentOccupancy counts active members holding the rank anywhere
// in the department.
func (r *RankLimitRepository) CountDepartmentOccupancy(departmentID, rankID int64) (int64, error) {
	var count int64
	err := r.db.Model(&memberDatamodel.Member{}).
		Where("department_id = ? AND rank_id = ? AND is_active = ?", departmentID, rankID, true).
		Count(&count).Error
	return count, err
}
