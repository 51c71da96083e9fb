package department

import (
	"errors"
	"strings"

	"github.com/averhoeven/roster-management/internal/callsign"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
)

// CreateDepartmentDTO represents the request payload for creating a department
type CreateDepartmentDTO struct {
	Name           string `json:"name" validate:"required"`
	DeptType       string `json:"dept_type" validate:"required"`
	CallsignPrefix string `json:"callsign_prefix" validate:"required,max=8"`
	GuildID        string `json:"guild_id" validate:"required"`
}

// Validate validates the CreateDepartmentDTO
func (dto CreateDepartmentDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("department name is required")
	}
	if !departmentDatamodel.Type(dto.DeptType).Valid() {
		return errors.New("unknown department type")
	}
	if strings.TrimSpace(dto.CallsignPrefix) == "" {
		return errors.New("callsign prefix is required")
	}
	if len(dto.CallsignPrefix) > 8 {
		return errors.New("callsign prefix must be at most 8 characters")
	}
	if dto.GuildID == "" {
		return errors.New("guild id is required")
	}
	return nil
}

// CreateRankDTO represents the request payload for creating a rank. The
// external role binding is fixed at creation and cannot be updated later.
type CreateRankDTO struct {
	Name        string                          `json:"name" validate:"required"`
	Designator  string                          `json:"designator" validate:"required"`
	Level       int                             `json:"level" validate:"min=0"`
	RoleID      string                          `json:"role_id" validate:"required"`
	MaxMembers  *int64                          `json:"max_members,omitempty"`
	Permissions departmentDatamodel.Permissions `json:"permissions"`
}

// Validate validates the CreateRankDTO
func (dto CreateRankDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("rank name is required")
	}
	if strings.TrimSpace(dto.Designator) == "" {
		return errors.New("rank designator is required")
	}
	if strings.TrimSpace(dto.Designator) == callsign.UnrankedDesignator {
		return errors.New("rank designator " + callsign.UnrankedDesignator + " is reserved for unranked members")
	}
	if dto.Level < 0 {
		return errors.New("rank level cannot be negative")
	}
	if dto.RoleID == "" {
		return errors.New("rank role reference is required")
	}
	if dto.MaxMembers != nil && *dto.MaxMembers < 1 {
		return errors.New("rank max members must be at least 1 when set")
	}
	return nil
}

// UpdateRankDTO replaces every mutable rank field. A nil MaxMembers makes
// the rank unlimited department-wide.
type UpdateRankDTO struct {
	Name        string                          `json:"name" validate:"required"`
	Designator  string                          `json:"designator" validate:"required"`
	Level       int                             `json:"level" validate:"min=0"`
	MaxMembers  *int64                          `json:"max_members,omitempty"`
	Permissions departmentDatamodel.Permissions `json:"permissions"`
}

// Validate validates the UpdateRankDTO
func (dto UpdateRankDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("rank name is required")
	}
	if strings.TrimSpace(dto.Designator) == "" {
		return errors.New("rank designator is required")
	}
	if strings.TrimSpace(dto.Designator) == callsign.UnrankedDesignator {
		return errors.New("rank designator " + callsign.UnrankedDesignator + " is reserved for unranked members")
	}
	if dto.Level < 0 {
		return errors.New("rank level cannot be negative")
	}
	if dto.MaxMembers != nil && *dto.MaxMembers < 1 {
		return errors.New("rank max members must be at least 1 when set")
	}
	return nil
}

// CreateTeamDTO represents the request payload for creating a team
type CreateTeamDTO struct {
	Name           string  `json:"name" validate:"required"`
	Designator     *string `json:"designator,omitempty"`
	RoleID         *string `json:"role_id,omitempty"`
	LeaderMemberID *int64  `json:"leader_member_id,omitempty"`
}

// Validate validates the CreateTeamDTO
func (dto CreateTeamDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("team name is required")
	}
	if dto.Designator != nil && strings.TrimSpace(*dto.Designator) == "" {
		return errors.New("team designator cannot be blank when set")
	}
	if dto.RoleID != nil && *dto.RoleID == "" {
		return errors.New("team role reference cannot be blank when set")
	}
	return nil
}

// UpdateTeamDTO replaces every mutable team field
type UpdateTeamDTO struct {
	Name           string  `json:"name" validate:"required"`
	Designator     *string `json:"designator,omitempty"`
	RoleID         *string `json:"role_id,omitempty"`
	LeaderMemberID *int64  `json:"leader_member_id,omitempty"`
}

// Validate validates the UpdateTeamDTO
func (dto UpdateTeamDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("team name is required")
	}
	if dto.Designator != nil && strings.TrimSpace(*dto.Designator) == "" {
		return errors.New("team designator cannot be blank when set")
	}
	if dto.RoleID != nil && *dto.RoleID == "" {
		return errors.New("team role reference cannot be blank when set")
	}
	return nil
}

// SetTeamLimitDTO caps one rank inside one team. The cap always overrides
// the rank's department-wide limit and is never unlimited.
type SetTeamLimitDTO struct {
	RankID     int64 `json:"rank_id" validate:"required"`
	MaxMembers int64 `json:"max_members" validate:"required,min=1"`
}

// Validate validates the SetTeamLimitDTO
func (dto SetTeamLimitDTO) Validate() error {
	if dto.RankID <= 0 {
		return errors.New("rank id is required")
	}
	if dto.MaxMembers < 1 {
		return errors.New("team rank limit must be at least 1")
	}
	return nil
}
