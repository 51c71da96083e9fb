package department

import (
	"context"
	"log/slog"
	"strings"

	"github.com/averhoeven/roster-management/internal"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
)

// Repository is the persistence surface the admin service needs. Lookup
// methods return (nil, nil) when no row matches. The holder counts include
// soft-removed members because restore re-reads their rank and team.
type Repository interface {
	CreateDepartment(dept *departmentDatamodel.Department) error
	GetDepartment(id int64) (*departmentDatamodel.Department, error)
	GetDepartmentByName(name string) (*departmentDatamodel.Department, error)
	GetDepartmentByPrefix(prefix string) (*departmentDatamodel.Department, error)
	ListDepartments() ([]*departmentDatamodel.Department, error)
	SaveDepartment(dept *departmentDatamodel.Department) error
	CountActiveMembers(departmentID int64) (int64, error)

	CreateRank(rank *departmentDatamodel.Rank) error
	GetRank(id int64) (*departmentDatamodel.Rank, error)
	GetRankByDesignator(departmentID int64, designator string) (*departmentDatamodel.Rank, error)
	GetRankByRoleID(roleID string) (*departmentDatamodel.Rank, error)
	ListRanks(departmentID int64) ([]*departmentDatamodel.Rank, error)
	SaveRank(rank *departmentDatamodel.Rank) error
	DeleteRank(ctx context.Context, rankID int64) error
	CountRankHolders(rankID int64) (int64, error)

	CreateTeam(team *departmentDatamodel.Team) error
	GetTeam(id int64) (*departmentDatamodel.Team, error)
	ListTeams(departmentID int64) ([]*departmentDatamodel.Team, error)
	SaveTeam(team *departmentDatamodel.Team) error
	DeleteTeam(ctx context.Context, teamID int64) error
	CountPrimaryTeamMembers(teamID int64) (int64, error)
	MemberBelongsTo(memberID, departmentID int64) (bool, error)

	UpsertTeamLimit(limit *departmentDatamodel.TeamRankLimit) error
	DeleteTeamLimit(teamID, rankID int64) error
	ListTeamLimits(teamID int64) ([]*departmentDatamodel.TeamRankLimit, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) CreateDepartment(dto *CreateDepartmentDTO) (*departmentDatamodel.Department, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	name := strings.TrimSpace(dto.Name)
	prefix := strings.TrimSpace(dto.CallsignPrefix)

	existing, err := s.repo.GetDepartmentByName(name)
	if err != nil {
		s.logger.Error("failed to check department name", "name", name, "error", err)
		return nil, internal.NewInternalError("could not verify department name", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError("department name already in use", internal.ErrCodeDuplicateName)
	}

	existing, err = s.repo.GetDepartmentByPrefix(prefix)
	if err != nil {
		s.logger.Error("failed to check callsign prefix", "prefix", prefix, "error", err)
		return nil, internal.NewInternalError("could not verify callsign prefix", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError("callsign prefix already in use", internal.ErrCodeDuplicatePrefix)
	}

	dept := &departmentDatamodel.Department{
		Name:           name,
		DeptType:       departmentDatamodel.Type(dto.DeptType),
		CallsignPrefix: prefix,
		GuildID:        dto.GuildID,
		IsActive:       true,
	}
	if err := s.repo.CreateDepartment(dept); err != nil {
		s.logger.Error("failed to create department", "name", name, "error", err)
		return nil, internal.NewInternalError("could not create department", err)
	}

	s.logger.Info("department created",
		"department_id", dept.ID,
		"name", dept.Name,
		"dept_type", dept.DeptType,
		"callsign_prefix", dept.CallsignPrefix)
	return dept, nil
}

func (s *Service) GetDepartment(id int64) (*departmentDatamodel.Department, error) {
	dept, err := s.repo.GetDepartment(id)
	if err != nil {
		s.logger.Error("failed to get department", "department_id", id, "error", err)
		return nil, internal.NewInternalError("could not load department", err)
	}
	if dept == nil {
		return nil, internal.ErrDepartmentNotFound
	}
	return dept, nil
}

func (s *Service) ListDepartments() ([]*departmentDatamodel.Department, error) {
	depts, err := s.repo.ListDepartments()
	if err != nil {
		s.logger.Error("failed to list departments", "error", err)
		return nil, internal.NewInternalError("could not list departments", err)
	}
	return depts, nil
}

// DeactivateDepartment succeeds only once every member has been removed or
// marked inactive. Deactivation keeps all roster rows for later reactivation.
func (s *Service) DeactivateDepartment(id int64) (*departmentDatamodel.Department, error) {
	dept, err := s.GetDepartment(id)
	if err != nil {
		return nil, err
	}
	if !dept.IsActive {
		return dept, nil
	}

	active, err := s.repo.CountActiveMembers(id)
	if err != nil {
		s.logger.Error("failed to count active members", "department_id", id, "error", err)
		return nil, internal.NewInternalError("could not count active members", err)
	}
	if active > 0 {
		return nil, internal.NewConflictError("department still has active members", internal.ErrCodeDepartmentActive)
	}

	dept.IsActive = false
	if err := s.repo.SaveDepartment(dept); err != nil {
		s.logger.Error("failed to deactivate department", "department_id", id, "error", err)
		return nil, internal.NewInternalError("could not deactivate department", err)
	}

	s.logger.Info("department deactivated", "department_id", id, "name", dept.Name)
	return dept, nil
}

func (s *Service) CreateRank(departmentID int64, dto *CreateRankDTO) (*departmentDatamodel.Rank, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	if _, err := s.GetDepartment(departmentID); err != nil {
		return nil, err
	}

	designator := strings.TrimSpace(dto.Designator)

	existing, err := s.repo.GetRankByDesignator(departmentID, designator)
	if err != nil {
		s.logger.Error("failed to check rank designator", "department_id", departmentID, "designator", designator, "error", err)
		return nil, internal.NewInternalError("could not verify rank designator", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError("rank designator already in use in this department", internal.ErrCodeDuplicateDesignator)
	}

	existing, err = s.repo.GetRankByRoleID(dto.RoleID)
	if err != nil {
		s.logger.Error("failed to check rank role binding", "role_id", dto.RoleID, "error", err)
		return nil, internal.NewInternalError("could not verify rank role binding", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError("external role already bound to a rank", internal.ErrCodeDuplicateRole)
	}

	rank := &departmentDatamodel.Rank{
		DepartmentID: departmentID,
		Name:         strings.TrimSpace(dto.Name),
		Designator:   designator,
		Level:        dto.Level,
		RoleID:       dto.RoleID,
		MaxMembers:   dto.MaxMembers,
		Permissions:  dto.Permissions,
	}
	if rank.Permissions.Version == 0 {
		rank.Permissions.Version = departmentDatamodel.PermissionsVersion
	}
	if err := s.repo.CreateRank(rank); err != nil {
		s.logger.Error("failed to create rank", "department_id", departmentID, "name", rank.Name, "error", err)
		return nil, internal.NewInternalError("could not create rank", err)
	}

	s.logger.Info("rank created",
		"rank_id", rank.ID,
		"department_id", departmentID,
		"name", rank.Name,
		"level", rank.Level,
		"role_id", rank.RoleID)
	return rank, nil
}

func (s *Service) GetRank(id int64) (*departmentDatamodel.Rank, error) {
	rank, err := s.repo.GetRank(id)
	if err != nil {
		s.logger.Error("failed to get rank", "rank_id", id, "error", err)
		return nil, internal.NewInternalError("could not load rank", err)
	}
	if rank == nil {
		return nil, internal.ErrRankNotFound
	}
	return rank, nil
}

func (s *Service) UpdateRank(rankID int64, dto *UpdateRankDTO) (*departmentDatamodel.Rank, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	rank, err := s.GetRank(rankID)
	if err != nil {
		return nil, err
	}

	designator := strings.TrimSpace(dto.Designator)
	if designator != rank.Designator {
		existing, err := s.repo.GetRankByDesignator(rank.DepartmentID, designator)
		if err != nil {
			s.logger.Error("failed to check rank designator", "department_id", rank.DepartmentID, "designator", designator, "error", err)
			return nil, internal.NewInternalError("could not verify rank designator", err)
		}
		if existing != nil && existing.ID != rankID {
			return nil, internal.NewConflictError("rank designator already in use in this department", internal.ErrCodeDuplicateDesignator)
		}
	}

	rank.Name = strings.TrimSpace(dto.Name)
	rank.Designator = designator
	rank.Level = dto.Level
	rank.MaxMembers = dto.MaxMembers
	rank.Permissions = dto.Permissions
	if rank.Permissions.Version == 0 {
		rank.Permissions.Version = departmentDatamodel.PermissionsVersion
	}

	if err := s.repo.SaveRank(rank); err != nil {
		s.logger.Error("failed to update rank", "rank_id", rankID, "error", err)
		return nil, internal.NewInternalError("could not update rank", err)
	}

	s.logger.Info("rank updated", "rank_id", rankID, "name", rank.Name, "level", rank.Level)
	return rank, nil
}

// DeleteRank removes a rank and its team caps. Any member row still
// pointing at the rank blocks deletion, including soft-removed members
// whose restore would otherwise dangle.
func (s *Service) DeleteRank(ctx context.Context, rankID int64) error {
	rank, err := s.GetRank(rankID)
	if err != nil {
		return err
	}

	holders, err := s.repo.CountRankHolders(rankID)
	if err != nil {
		s.logger.Error("failed to count rank holders", "rank_id", rankID, "error", err)
		return internal.NewInternalError("could not count rank holders", err)
	}
	if holders > 0 {
		return internal.NewConflictError("rank is still held by members", internal.ErrCodeRankHeld)
	}

	if err := s.repo.DeleteRank(ctx, rankID); err != nil {
		s.logger.Error("failed to delete rank", "rank_id", rankID, "error", err)
		return internal.NewInternalError("could not delete rank", err)
	}

	s.logger.Info("rank deleted", "rank_id", rankID, "department_id", rank.DepartmentID, "name", rank.Name)
	return nil
}

func (s *Service) ListRanks(departmentID int64) ([]*departmentDatamodel.Rank, error) {
	if _, err := s.GetDepartment(departmentID); err != nil {
		return nil, err
	}

	ranks, err := s.repo.ListRanks(departmentID)
	if err != nil {
		s.logger.Error("failed to list ranks", "department_id", departmentID, "error", err)
		return nil, internal.NewInternalError("could not list ranks", err)
	}
	return ranks, nil
}

func (s *Service) CreateTeam(departmentID int64, dto *CreateTeamDTO) (*departmentDatamodel.Team, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	if _, err := s.GetDepartment(departmentID); err != nil {
		return nil, err
	}

	team := &departmentDatamodel.Team{
		DepartmentID:   departmentID,
		Name:           strings.TrimSpace(dto.Name),
		Designator:     dto.Designator,
		RoleID:         dto.RoleID,
		LeaderMemberID: dto.LeaderMemberID,
	}
	if err := s.checkTeamConflicts(team, 0); err != nil {
		return nil, err
	}
	if err := s.checkTeamLeader(team); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTeam(team); err != nil {
		s.logger.Error("failed to create team", "department_id", departmentID, "name", team.Name, "error", err)
		return nil, internal.NewInternalError("could not create team", err)
	}

	s.logger.Info("team created", "team_id", team.ID, "department_id", departmentID, "name", team.Name)
	return team, nil
}

func (s *Service) GetTeam(id int64) (*departmentDatamodel.Team, error) {
	team, err := s.repo.GetTeam(id)
	if err != nil {
		s.logger.Error("failed to get team", "team_id", id, "error", err)
		return nil, internal.NewInternalError("could not load team", err)
	}
	if team == nil {
		return nil, internal.ErrTeamNotFound
	}
	return team, nil
}

func (s *Service) UpdateTeam(teamID int64, dto *UpdateTeamDTO) (*departmentDatamodel.Team, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	team, err := s.GetTeam(teamID)
	if err != nil {
		return nil, err
	}

	team.Name = strings.TrimSpace(dto.Name)
	team.Designator = dto.Designator
	team.RoleID = dto.RoleID
	team.LeaderMemberID = dto.LeaderMemberID

	if err := s.checkTeamConflicts(team, teamID); err != nil {
		return nil, err
	}
	if err := s.checkTeamLeader(team); err != nil {
		return nil, err
	}

	if err := s.repo.SaveTeam(team); err != nil {
		s.logger.Error("failed to update team", "team_id", teamID, "error", err)
		return nil, internal.NewInternalError("could not update team", err)
	}

	s.logger.Info("team updated", "team_id", teamID, "name", team.Name)
	return team, nil
}

// DeleteTeam removes a team, its rank caps and its secondary memberships.
// Members still carrying the team as their primary assignment block it.
func (s *Service) DeleteTeam(ctx context.Context, teamID int64) error {
	team, err := s.GetTeam(teamID)
	if err != nil {
		return err
	}

	holders, err := s.repo.CountPrimaryTeamMembers(teamID)
	if err != nil {
		s.logger.Error("failed to count team members", "team_id", teamID, "error", err)
		return internal.NewInternalError("could not count team members", err)
	}
	if holders > 0 {
		return internal.NewConflictError("team is still the primary assignment of members", internal.ErrCodeTeamHasMembers)
	}

	if err := s.repo.DeleteTeam(ctx, teamID); err != nil {
		s.logger.Error("failed to delete team", "team_id", teamID, "error", err)
		return internal.NewInternalError("could not delete team", err)
	}

	s.logger.Info("team deleted", "team_id", teamID, "department_id", team.DepartmentID, "name", team.Name)
	return nil
}

func (s *Service) ListTeams(departmentID int64) ([]*departmentDatamodel.Team, error) {
	if _, err := s.GetDepartment(departmentID); err != nil {
		return nil, err
	}

	teams, err := s.repo.ListTeams(departmentID)
	if err != nil {
		s.logger.Error("failed to list teams", "department_id", departmentID, "error", err)
		return nil, internal.NewInternalError("could not list teams", err)
	}
	return teams, nil
}

// SetTeamLimit caps one rank inside one team, overriding the rank's
// department-wide cap for that team's scope.
func (s *Service) SetTeamLimit(teamID int64, dto *SetTeamLimitDTO) (*departmentDatamodel.TeamRankLimit, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	team, err := s.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	rank, err := s.GetRank(dto.RankID)
	if err != nil {
		return nil, err
	}
	if rank.DepartmentID != team.DepartmentID {
		return nil, internal.NewValidationError("rank and team belong to different departments", internal.ErrCodeWrongDepartment)
	}

	limit := &departmentDatamodel.TeamRankLimit{
		TeamID:     teamID,
		RankID:     dto.RankID,
		MaxMembers: dto.MaxMembers,
	}
	if err := s.repo.UpsertTeamLimit(limit); err != nil {
		s.logger.Error("failed to set team rank limit", "team_id", teamID, "rank_id", dto.RankID, "error", err)
		return nil, internal.NewInternalError("could not set team rank limit", err)
	}

	s.logger.Info("team rank limit set",
		"team_id", teamID,
		"rank_id", dto.RankID,
		"max_members", dto.MaxMembers)
	return limit, nil
}

// RemoveTeamLimit drops a team's cap for one rank so the department-wide
// cap applies again. Removing an absent cap is a no-op.
func (s *Service) RemoveTeamLimit(teamID, rankID int64) error {
	if _, err := s.GetTeam(teamID); err != nil {
		return err
	}

	if err := s.repo.DeleteTeamLimit(teamID, rankID); err != nil {
		s.logger.Error("failed to remove team rank limit", "team_id", teamID, "rank_id", rankID, "error", err)
		return internal.NewInternalError("could not remove team rank limit", err)
	}

	s.logger.Info("team rank limit removed", "team_id", teamID, "rank_id", rankID)
	return nil
}

func (s *Service) ListTeamLimits(teamID int64) ([]*departmentDatamodel.TeamRankLimit, error) {
	if _, err := s.GetTeam(teamID); err != nil {
		return nil, err
	}

	limits, err := s.repo.ListTeamLimits(teamID)
	if err != nil {
		s.logger.Error("failed to list team rank limits", "team_id", teamID, "error", err)
		return nil, internal.NewInternalError("could not list team rank limits", err)
	}
	return limits, nil
}

// checkTeamConflicts scans the department's teams for name, designator and
// role collisions. Teams per department stay small enough that a scan beats
// three indexed lookups.
func (s *Service) checkTeamConflicts(team *departmentDatamodel.Team, selfID int64) error {
	siblings, err := s.repo.ListTeams(team.DepartmentID)
	if err != nil {
		s.logger.Error("failed to list teams for conflict check", "department_id", team.DepartmentID, "error", err)
		return internal.NewInternalError("could not verify team uniqueness", err)
	}

	for _, sibling := range siblings {
		if sibling.ID == selfID {
			continue
		}
		if strings.EqualFold(sibling.Name, team.Name) {
			return internal.NewConflictError("team name already in use in this department", internal.ErrCodeDuplicateName)
		}
		if team.Designator != nil && sibling.Designator != nil && *sibling.Designator == *team.Designator {
			return internal.NewConflictError("team designator already in use in this department", internal.ErrCodeDuplicateDesignator)
		}
		if team.RoleID != nil && sibling.RoleID != nil && *sibling.RoleID == *team.RoleID {
			return internal.NewConflictError("external role already bound to a team", internal.ErrCodeDuplicateRole)
		}
	}
	return nil
}

func (s *Service) checkTeamLeader(team *departmentDatamodel.Team) error {
	if team.LeaderMemberID == nil {
		return nil
	}

	belongs, err := s.repo.MemberBelongsTo(*team.LeaderMemberID, team.DepartmentID)
	if err != nil {
		s.logger.Error("failed to check team leader", "member_id", *team.LeaderMemberID, "error", err)
		return internal.NewInternalError("could not verify team leader", err)
	}
	if !belongs {
		return internal.NewValidationError("team leader must be a member of the department", internal.ErrCodeWrongDepartment)
	}
	return nil
}
