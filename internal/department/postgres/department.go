package postgres

import (
	"context"

	"github.com/averhoeven/roster-management/internal/department"

	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"gorm.io/gorm"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) department.Repository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) CreateDepartment(dept *departmentDatamodel.Department) error {
	return r.db.Create(dept).Error
}

func (r *DepartmentRepository) GetDepartment(id int64) (*departmentDatamodel.Department, error) {
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

func (r *DepartmentRepository) GetDepartmentByName(name string) (*departmentDatamodel.Department, error) {
	var dept departmentDatamodel.Department
	err := r.db.Where("name = ?", name).First(&dept).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &dept, nil
}

func (r *DepartmentRepository) GetDepartmentByPrefix(prefix string) (*departmentDatamodel.Department, error) {
	var dept departmentDatamodel.Department
	err := r.db.Where("callsign_prefix = ?", prefix).First(&dept).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &dept, nil
}

func (r *DepartmentRepository) ListDepartments() ([]*departmentDatamodel.Department, error) {
	var depts []*departmentDatamodel.Department
	err := r.db.Order("name ASC").Find(&depts).Error
	return depts, err
}

func (r *DepartmentRepository) SaveDepartment(dept *departmentDatamodel.Department) error {
	return r.db.Save(dept).Error
}

func (r *DepartmentRepository) CountActiveMembers(departmentID int64) (int64, error) {
	var count int64
	err := r.db.Model(&memberDatamodel.Member{}).
		Where("department_id = ? AND is_active = ?", departmentID, true).
		Count(&count).Error
	return count, err
}

func (r *DepartmentRepository) CreateRank(rank *departmentDatamodel.Rank) error {
	return r.db.Create(rank).Error
}

func (r *DepartmentRepository) GetRank(id int64) (*departmentDatamodel.Rank, error) {
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

func (r *DepartmentRepository) GetRankByDesignator(departmentID int64, designator string) (*departmentDatamodel.Rank, error) {
	var rank departmentDatamodel.Rank
	err := r.db.Where("department_id = ? AND designator = ?", departmentID, designator).First(&rank).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rank, nil
}

func (r *DepartmentRepository) GetRankByRoleID(roleID string) (*departmentDatamodel.Rank, error) {
	var rank departmentDatamodel.Rank
	err := r.db.Where("role_id = ?", roleID).First(&rank).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rank, nil
}

func (r *DepartmentRepository) ListRanks(departmentID int64) ([]*departmentDatamodel.Rank, error) {
	var ranks []*departmentDatamodel.Rank
	err := r.db.Where("department_id = ?", departmentID).
		Order("level DESC, id ASC").
		Find(&ranks).Error
	return ranks, err
}

func (r *DepartmentRepository) SaveRank(rank *departmentDatamodel.Rank) error {
	return r.db.Save(rank).Error
}

// DeleteRank drops the rank together with its team caps in one transaction.
func (r *DepartmentRepository) DeleteRank(ctx context.Context, rankID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rank_id = ?", rankID).Delete(&departmentDatamodel.TeamRankLimit{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", rankID).Delete(&departmentDatamodel.Rank{}).Error
	})
}

// CountRankHolders counts every member row referencing the rank, removed
// members included, since restore re-reads it.
func (r *DepartmentRepository) CountRankHolders(rankID int64) (int64, error) {
	var count int64
	err := r.db.Model(&memberDatamodel.Member{}).
		Where("rank_id = ?", rankID).
		Count(&count).Error
	return count, err
}

func (r *DepartmentRepository) CreateTeam(team *departmentDatamodel.Team) error {
	return r.db.Create(team).Error
}

func (r *DepartmentRepository) GetTeam(id int64) (*departmentDatamodel.Team, error) {
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

func (r *DepartmentRepository) ListTeams(departmentID int64) ([]*departmentDatamodel.Team, error) {
	var teams []*departmentDatamodel.Team
	err := r.db.Where("department_id = ?", departmentID).
		Order("name ASC").
		Find(&teams).Error
	return teams, err
}

func (r *DepartmentRepository) SaveTeam(team *departmentDatamodel.Team) error {
	return r.db.Save(team).Error
}

// DeleteTeam drops the team together with its rank caps and secondary
// memberships in one transaction.
func (r *DepartmentRepository) DeleteTeam(ctx context.Context, teamID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", teamID).Delete(&departmentDatamodel.TeamRankLimit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&memberDatamodel.TeamMembership{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", teamID).Delete(&departmentDatamodel.Team{}).Error
	})
}

func (r *DepartmentRepository) CountPrimaryTeamMembers(teamID int64) (int64, error) {
	var count int64
	err := r.db.Model(&memberDatamodel.Member{}).
		Where("team_id = ?", teamID).
		Count(&count).Error
	return count, err
}

func (r *DepartmentRepository) MemberBelongsTo(memberID, departmentID int64) (bool, error) {
	var count int64
	err := r.db.Model(&memberDatamodel.Member{}).
		Where("id = ? AND department_id = ?", memberID, departmentID).
		Count(&count).Error
	return count > 0, err
}

func (r *DepartmentRepository) UpsertTeamLimit(limit *departmentDatamodel.TeamRankLimit) error {
	var existing departmentDatamodel.TeamRankLimit
	err := r.db.Where("team_id = ? AND rank_id = ?", limit.TeamID, limit.RankID).First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return r.db.Create(limit).Error
		}
		return err
	}

	limit.ID = existing.ID
	limit.CreatedAt = existing.CreatedAt
	return r.db.Model(&departmentDatamodel.TeamRankLimit{}).
		Where("id = ?", existing.ID).
		Update("max_members", limit.MaxMembers).Error
}

func (r *DepartmentRepository) DeleteTeamLimit(teamID, rankID int64) error {
	return r.db.Where("team_id = ? AND rank_id = ?", teamID, rankID).
		Delete(&departmentDatamodel.TeamRankLimit{}).Error
}

func (r *DepartmentRepository) ListTeamLimits(teamID int64) ([]*departmentDatamodel.TeamRankLimit, error) {
	var limits []*departmentDatamodel.TeamRankLimit
	err := r.db.Where("team_id = ?", teamID).
		Order("rank_id ASC").
		Find(&limits).Error
	return limits, err
}
