package postgres

import (
	"context"
	"time"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/roster"

	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"gorm.io/gorm"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) roster.Repository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) CreateMember(m *memberDatamodel.Member) error {
	return r.db.Create(m).Error
}

// DeleteMember hard-deletes a row. Only the enrollment compensation path
// uses it; everything else soft-removes through is_active.
func (r *MemberRepository) DeleteMember(id int64) error {
	return r.db.Delete(&memberDatamodel.Member{}, id).Error
}

func (r *MemberRepository) GetMember(id int64) (*memberDatamodel.Member, error) {
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

func (r *MemberRepository) GetActiveByPlatformUser(departmentID int64, platformUserID string) (*memberDatamodel.Member, error) {
	var m memberDatamodel.Member
	err := r.db.
		Where("department_id = ? AND platform_user_id = ? AND is_active = ?", departmentID, platformUserID, true).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) ListMembers(departmentID int64) ([]*memberDatamodel.Member, error) {
	var members []*memberDatamodel.Member
	err := r.db.
		Where("department_id = ?", departmentID).
		Order("id ASC").
		Find(&members).Error
	return members, err
}

func (r *MemberRepository) SaveMember(m *memberDatamodel.Member) error {
	return r.db.Save(m).Error
}

// UpdateMemberCAS applies fields guarded by the member's version column.
// A concurrent writer bumps the version first and the update matches zero
// rows, which surfaces as ErrStaleMember. On success the in-memory version
// advances with the row.
func (r *MemberRepository) UpdateMemberCAS(ctx context.Context, m *memberDatamodel.Member, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for column, value := range fields {
		updates[column] = value
	}
	updates["version"] = m.Version + 1

	result := r.db.WithContext(ctx).
		Model(&memberDatamodel.Member{}).
		Where("id = ? AND version = ?", m.ID, m.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrStaleMember
	}
	m.Version++
	return nil
}

func (r *MemberRepository) GetDepartment(id int64) (*departmentDatamodel.Department, error) {
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

func (r *MemberRepository) GetRank(id int64) (*departmentDatamodel.Rank, error) {
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

func (r *MemberRepository) GetTeam(id int64) (*departmentDatamodel.Team, error) {
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

// EnsureTeamMembership records the member's association with a team once;
// assigning the same team again keeps the original joined_at.
func (r *MemberRepository) EnsureTeamMembership(ctx context.Context, memberID, teamID int64) error {
	var existing memberDatamodel.TeamMembership
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND team_id = ?", memberID, teamID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	membership := &memberDatamodel.TeamMembership{
		MemberID: memberID,
		TeamID:   teamID,
		JoinedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *MemberRepository) AppendHistory(entry *memberDatamodel.PromotionHistoryEntry) error {
	return r.db.Create(entry).Error
}
