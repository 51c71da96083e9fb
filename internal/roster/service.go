package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/callsign"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	identifierDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/identifier"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/core/events"
	"github.com/averhoeven/roster-management/internal/platform"
)

// Repository is the persistence surface of the lifecycle manager. Lookups
// return (nil, nil) when no row matches; UpdateMemberCAS fails with
// ErrStaleMember when the member's version moved underneath the caller.
type Repository interface {
	CreateMember(m *memberDatamodel.Member) error
	DeleteMember(id int64) error
	GetMember(id int64) (*memberDatamodel.Member, error)
	GetActiveByPlatformUser(departmentID int64, platformUserID string) (*memberDatamodel.Member, error)
	ListMembers(departmentID int64) ([]*memberDatamodel.Member, error)
	SaveMember(m *memberDatamodel.Member) error
	UpdateMemberCAS(ctx context.Context, m *memberDatamodel.Member, fields map[string]interface{}) error

	GetDepartment(id int64) (*departmentDatamodel.Department, error)
	GetRank(id int64) (*departmentDatamodel.Rank, error)
	GetTeam(id int64) (*departmentDatamodel.Team, error)
	EnsureTeamMembership(ctx context.Context, memberID, teamID int64) error
	AppendHistory(entry *memberDatamodel.PromotionHistoryEntry) error
}

// IdentifierAllocator is the slice of the identifier pool the lifecycle
// manager drives.
type IdentifierAllocator interface {
	Allocate(ctx context.Context, departmentID, memberID int64) (*identifierDatamodel.Slot, error)
	Release(ctx context.Context, departmentID int64, number int) error
}

// RoleSyncAPI is the slice of the external synchronizer the lifecycle
// manager drives: best-effort calls for team decoration and removal
// cleanup, the authoritative swap for the restore re-grant.
type RoleSyncAPI interface {
	SyncTeamRoles(ctx context.Context, guildID, userID string, oldRoleID, newRoleID *string, memberID, departmentID int64) []platform.SyncWarning
	BestEffortRevoke(ctx context.Context, guildID, userID string, roleIDs []string, memberID, departmentID int64) []platform.SyncWarning
	SwapRankRoles(ctx context.Context, guildID, userID string, oldRoleID *string, newRoleID string) error
}

type Service struct {
	repo        Repository
	identifiers IdentifierAllocator
	sync        RoleSyncAPI
	events      *events.EventBus
	logger      *slog.Logger
}

func NewService(repo Repository, identifiers IdentifierAllocator, sync RoleSyncAPI, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		identifiers: identifiers,
		sync:        sync,
		events:      bus,
		logger:      logger,
	}
}

// Join enrolls a platform identity into a department: a fresh member row in
// training, the lowest free identifier, and the placeholder callsign. No
// external call happens here.
func (s *Service) Join(ctx context.Context, actorID, departmentID int64, dto *JoinDTO) (*memberDatamodel.Member, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	dept, err := s.activeDepartment(departmentID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.requireActor(actorID, departmentID, "manage_members", func(p departmentDatamodel.Permissions) bool {
		return p.ManageMembers
	}); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetActiveByPlatformUser(departmentID, dto.PlatformUserID)
	if err != nil {
		s.logger.Error("failed to check existing membership", "platform_user_id", dto.PlatformUserID, "error", err)
		return nil, internal.NewInternalError("could not verify membership", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError("identity already has an active membership in this department", internal.ErrCodeDuplicateMember)
	}

	m := &memberDatamodel.Member{
		DepartmentID:   departmentID,
		PlatformUserID: dto.PlatformUserID,
		DisplayName:    strings.TrimSpace(dto.DisplayName),
		Callsign:       callsign.Compose("", dept.CallsignPrefix, nil, nil),
		Status:         memberDatamodel.StatusInTraining,
		IsActive:       true,
		Version:        1,
		HiredAt:        time.Now().UTC(),
	}
	if err := s.repo.CreateMember(m); err != nil {
		s.logger.Error("failed to create member", "platform_user_id", dto.PlatformUserID, "error", err)
		return nil, internal.NewInternalError("could not create member", err)
	}

	slot, err := s.identifiers.Allocate(ctx, departmentID, m.ID)
	if err != nil {
		if delErr := s.repo.DeleteMember(m.ID); delErr != nil {
			s.logger.Error("failed to undo member creation after allocation failure", "member_id", m.ID, "error", delErr)
		}
		return nil, err
	}

	m.IdentifierNumber = &slot.Number
	m.Callsign = callsign.Compose("", dept.CallsignPrefix, &slot.Number, nil)
	if err := s.repo.SaveMember(m); err != nil {
		s.logger.Error("failed to persist identifier on new member", "member_id", m.ID, "error", err)
		if relErr := s.identifiers.Release(ctx, departmentID, slot.Number); relErr != nil {
			s.logger.Error("failed to release identifier during join rollback", "member_id", m.ID, "number", slot.Number, "error", relErr)
		}
		if delErr := s.repo.DeleteMember(m.ID); delErr != nil {
			s.logger.Error("failed to undo member creation during join rollback", "member_id", m.ID, "error", delErr)
		}
		return nil, internal.NewInternalError("could not enroll member", err)
	}

	s.logger.Info("member joined",
		"member_id", m.ID,
		"department_id", departmentID,
		"platform_user_id", m.PlatformUserID,
		"callsign", m.Callsign)
	s.events.Publish(ctx, events.NewMemberJoinedEvent(m.ID, departmentID, m.PlatformUserID, m.Callsign))
	return m, nil
}

// CompleteTraining is the credential-authenticated exit from training. The
// caller passes the department the credential is scoped to.
func (s *Service) CompleteTraining(ctx context.Context, memberID, credentialDepartmentID int64) (*memberDatamodel.Member, error) {
	m, err := s.activeMember(memberID)
	if err != nil {
		return nil, err
	}
	if m.DepartmentID != credentialDepartmentID {
		return nil, internal.NewForbiddenError("credential is scoped to a different department", internal.ErrCodeWrongDepartment)
	}

	return s.moveToPending(ctx, m)
}

// BypassTraining lets a privileged actor skip the training gate.
func (s *Service) BypassTraining(ctx context.Context, actorID, memberID int64) (*memberDatamodel.Member, error) {
	m, err := s.activeMember(memberID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.requireActor(actorID, m.DepartmentID, "bypass_training", func(p departmentDatamodel.Permissions) bool {
		return p.BypassTraining
	}); err != nil {
		return nil, err
	}

	return s.moveToPending(ctx, m)
}

func (s *Service) moveToPending(ctx context.Context, m *memberDatamodel.Member) (*memberDatamodel.Member, error) {
	if !CanTransition(m.Status, memberDatamodel.StatusPending) {
		return nil, transitionError(m.Status, memberDatamodel.StatusPending)
	}

	m.Status = memberDatamodel.StatusPending
	if err := s.repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
		"status": memberDatamodel.StatusPending,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("training completed", "member_id", m.ID, "department_id", m.DepartmentID)
	return m, nil
}

// AssignTeam sets the member's primary team, recomposes the callsign, and
// activates a pending member. The team role swap on the platform is
// best-effort: its failures come back as warnings, never as an error.
func (s *Service) AssignTeam(ctx context.Context, actorID, memberID int64, dto *AssignTeamDTO) (*memberDatamodel.Member, []platform.SyncWarning, error) {
	if err := dto.Validate(); err != nil {
		return nil, nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	m, err := s.activeMember(memberID)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := s.requireActor(actorID, m.DepartmentID, "assign_teams", func(p departmentDatamodel.Permissions) bool {
		return p.AssignTeams
	}); err != nil {
		return nil, nil, err
	}

	switch m.Status {
	case memberDatamodel.StatusPending, memberDatamodel.StatusActive:
	case memberDatamodel.StatusInTraining:
		return nil, nil, internal.NewConflictError("complete training before team assignment", internal.ErrCodeInvalidTransition)
	default:
		return nil, nil, internal.NewConflictError(
			fmt.Sprintf("cannot assign a team while the member is %s", m.Status), internal.ErrCodeInvalidTransition)
	}

	team, err := s.repo.GetTeam(dto.TeamID)
	if err != nil {
		s.logger.Error("failed to load team", "team_id", dto.TeamID, "error", err)
		return nil, nil, internal.NewInternalError("could not load team", err)
	}
	if team == nil {
		return nil, nil, internal.ErrTeamNotFound
	}
	if team.DepartmentID != m.DepartmentID {
		return nil, nil, internal.NewValidationError("team belongs to a different department", internal.ErrCodeWrongDepartment)
	}

	if m.TeamID != nil && *m.TeamID == team.ID {
		return m, nil, nil
	}

	var oldTeam *departmentDatamodel.Team
	if m.TeamID != nil {
		oldTeam, err = s.repo.GetTeam(*m.TeamID)
		if err != nil {
			s.logger.Error("failed to load previous team", "team_id", *m.TeamID, "error", err)
			return nil, nil, internal.NewInternalError("could not load previous team", err)
		}
	}

	dept, err := s.repo.GetDepartment(m.DepartmentID)
	if err != nil || dept == nil {
		s.logger.Error("failed to load department", "department_id", m.DepartmentID, "error", err)
		return nil, nil, internal.NewInternalError("could not load department", err)
	}

	designator, err := s.rankDesignator(m)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.EnsureTeamMembership(ctx, m.ID, team.ID); err != nil {
		s.logger.Error("failed to record team membership", "member_id", m.ID, "team_id", team.ID, "error", err)
		return nil, nil, internal.NewInternalError("could not record team membership", err)
	}

	newStatus := m.Status
	if m.Status == memberDatamodel.StatusPending {
		newStatus = memberDatamodel.StatusActive
	}
	newCallsign := callsign.Compose(designator, dept.CallsignPrefix, m.IdentifierNumber, team.Designator)

	fields := map[string]interface{}{
		"team_id":  team.ID,
		"callsign": newCallsign,
		"status":   newStatus,
	}
	m.TeamID = &team.ID
	m.Callsign = newCallsign
	m.Status = newStatus
	if err := s.repo.UpdateMemberCAS(ctx, m, fields); err != nil {
		return nil, nil, err
	}

	var oldRoleID *string
	if oldTeam != nil {
		oldRoleID = oldTeam.RoleID
	}
	warnings := s.sync.SyncTeamRoles(ctx, dept.GuildID, m.PlatformUserID, oldRoleID, team.RoleID, m.ID, m.DepartmentID)
	s.publishWarnings(ctx, m, warnings)

	s.logger.Info("team assigned",
		"member_id", m.ID,
		"team_id", team.ID,
		"callsign", m.Callsign,
		"status", m.Status,
		"warnings", len(warnings))
	return m, warnings, nil
}

// ChangeStatus walks the status table for everything except the dedicated
// training and team-assignment paths. Disciplinary targets need the
// discipline permission, seniority over the member, and a reason.
func (s *Service) ChangeStatus(ctx context.Context, actorID, memberID int64, dto *ChangeStatusDTO) (*memberDatamodel.Member, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	to := memberDatamodel.Status(dto.Status)

	m, err := s.activeMember(memberID)
	if err != nil {
		return nil, err
	}

	if m.Status == memberDatamodel.StatusInTraining {
		return nil, internal.NewConflictError("training completion moves a trainee forward", internal.ErrCodeInvalidTransition)
	}
	if m.Status == memberDatamodel.StatusPending && to == memberDatamodel.StatusActive {
		return nil, internal.NewConflictError("team assignment activates a pending member", internal.ErrCodeInvalidTransition)
	}
	if !CanTransition(m.Status, to) {
		return nil, transitionError(m.Status, to)
	}

	if to.Disciplinary() {
		_, actorRank, err := s.requireActor(actorID, m.DepartmentID, "discipline", func(p departmentDatamodel.Permissions) bool {
			return p.Discipline
		})
		if err != nil {
			return nil, err
		}
		if err := s.requireSeniority(actorRank, m); err != nil {
			return nil, err
		}
	} else {
		if _, _, err := s.requireActor(actorID, m.DepartmentID, "manage_members", func(p departmentDatamodel.Permissions) bool {
			return p.ManageMembers
		}); err != nil {
			return nil, err
		}
	}

	var reason *string
	if dto.Reason != nil && strings.TrimSpace(*dto.Reason) != "" {
		trimmed := strings.TrimSpace(*dto.Reason)
		reason = &trimmed
	}
	if to == memberDatamodel.StatusActive {
		reason = nil
	}

	from := m.Status
	m.Status = to
	m.StatusReason = reason
	if err := s.repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
		"status":        to,
		"status_reason": reason,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("member status changed",
		"member_id", m.ID,
		"from", from,
		"to", to,
		"actor_id", actorID)
	return m, nil
}

// Remove soft-deletes a member: the row stays for audit and restore, the
// identifier returns to the pool, and held platform roles are revoked
// best-effort.
func (s *Service) Remove(ctx context.Context, actorID, memberID int64, dto *RemoveDTO) (*memberDatamodel.Member, []platform.SyncWarning, error) {
	m, err := s.activeMember(memberID)
	if err != nil {
		return nil, nil, err
	}
	_, actorRank, err := s.requireActor(actorID, m.DepartmentID, "remove_members", func(p departmentDatamodel.Permissions) bool {
		return p.RemoveMembers
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireSeniority(actorRank, m); err != nil {
		return nil, nil, err
	}

	dept, err := s.repo.GetDepartment(m.DepartmentID)
	if err != nil || dept == nil {
		s.logger.Error("failed to load department", "department_id", m.DepartmentID, "error", err)
		return nil, nil, internal.NewInternalError("could not load department", err)
	}

	var revokeRoles []string
	designator, err := s.rankDesignator(m)
	if err != nil {
		return nil, nil, err
	}
	if m.RankID != nil {
		rank, err := s.repo.GetRank(*m.RankID)
		if err != nil || rank == nil {
			s.logger.Error("failed to load rank", "rank_id", *m.RankID, "error", err)
			return nil, nil, internal.NewInternalError("could not load rank", err)
		}
		revokeRoles = append(revokeRoles, rank.RoleID)
	}
	if m.TeamID != nil {
		team, err := s.repo.GetTeam(*m.TeamID)
		if err != nil {
			s.logger.Error("failed to load team", "team_id", *m.TeamID, "error", err)
			return nil, nil, internal.NewInternalError("could not load team", err)
		}
		if team != nil && team.RoleID != nil {
			revokeRoles = append(revokeRoles, *team.RoleID)
		}
	}

	if m.IdentifierNumber != nil {
		if err := s.identifiers.Release(ctx, m.DepartmentID, *m.IdentifierNumber); err != nil {
			s.logger.Error("failed to release identifier", "member_id", m.ID, "number", *m.IdentifierNumber, "error", err)
			return nil, nil, err
		}
	}

	var reason *string
	if dto != nil && dto.Reason != nil && strings.TrimSpace(*dto.Reason) != "" {
		trimmed := strings.TrimSpace(*dto.Reason)
		reason = &trimmed
	}

	m.IsActive = false
	m.IdentifierNumber = nil
	m.Callsign = callsign.Compose(designator, dept.CallsignPrefix, nil, nil)
	m.StatusReason = reason
	if err := s.repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
		"is_active":         false,
		"identifier_number": nil,
		"callsign":          m.Callsign,
		"status_reason":     reason,
	}); err != nil {
		return nil, nil, err
	}

	warnings := s.sync.BestEffortRevoke(ctx, dept.GuildID, m.PlatformUserID, revokeRoles, m.ID, m.DepartmentID)
	s.publishWarnings(ctx, m, warnings)

	removalReason := ""
	if reason != nil {
		removalReason = *reason
	}
	s.logger.Info("member removed",
		"member_id", m.ID,
		"department_id", m.DepartmentID,
		"actor_id", actorID,
		"warnings", len(warnings))
	s.events.Publish(ctx, events.NewMemberRemovedEvent(m.ID, m.DepartmentID, removalReason))
	return m, warnings, nil
}

// Restore reactivates a soft-removed member. The identifier and callsign
// are committed locally first; if the rank role re-grant then fails, the
// speculative commit is reversed and the sync error reports the rollback
// outcome.
func (s *Service) Restore(ctx context.Context, actorID, memberID int64) (*memberDatamodel.Member, []platform.SyncWarning, error) {
	m, err := s.repo.GetMember(memberID)
	if err != nil {
		s.logger.Error("failed to load member", "member_id", memberID, "error", err)
		return nil, nil, internal.NewInternalError("could not load member", err)
	}
	if m == nil {
		return nil, nil, internal.ErrMemberNotFound
	}
	if m.IsActive {
		return nil, nil, internal.NewConflictError("member is not removed", internal.ErrCodeMemberNotRemoved)
	}

	dept, err := s.activeDepartment(m.DepartmentID)
	if err != nil {
		return nil, nil, err
	}
	_, actorRank, err := s.requireActor(actorID, m.DepartmentID, "manage_members", func(p departmentDatamodel.Permissions) bool {
		return p.ManageMembers
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireSeniority(actorRank, m); err != nil {
		return nil, nil, err
	}

	current, err := s.repo.GetActiveByPlatformUser(m.DepartmentID, m.PlatformUserID)
	if err != nil {
		s.logger.Error("failed to check existing membership", "platform_user_id", m.PlatformUserID, "error", err)
		return nil, nil, internal.NewInternalError("could not verify membership", err)
	}
	if current != nil {
		return nil, nil, internal.NewConflictError("identity already has an active membership in this department", internal.ErrCodeDuplicateMember)
	}

	designator, err := s.rankDesignator(m)
	if err != nil {
		return nil, nil, err
	}
	var teamDesignator *string
	var teamRoleID *string
	if m.TeamID != nil {
		team, err := s.repo.GetTeam(*m.TeamID)
		if err != nil {
			s.logger.Error("failed to load team", "team_id", *m.TeamID, "error", err)
			return nil, nil, internal.NewInternalError("could not load team", err)
		}
		if team != nil {
			teamDesignator = team.Designator
			teamRoleID = team.RoleID
		}
	}

	slot, err := s.identifiers.Allocate(ctx, m.DepartmentID, m.ID)
	if err != nil {
		return nil, nil, err
	}

	removedCallsign := m.Callsign
	m.IsActive = true
	m.IdentifierNumber = &slot.Number
	m.Callsign = callsign.Compose(designator, dept.CallsignPrefix, &slot.Number, teamDesignator)
	if err := s.repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
		"is_active":         true,
		"identifier_number": slot.Number,
		"callsign":          m.Callsign,
	}); err != nil {
		if relErr := s.identifiers.Release(ctx, m.DepartmentID, slot.Number); relErr != nil {
			s.logger.Error("failed to release identifier during restore rollback", "member_id", m.ID, "number", slot.Number, "error", relErr)
		}
		return nil, nil, err
	}

	if m.RankID != nil {
		rank, rankErr := s.repo.GetRank(*m.RankID)
		if rankErr != nil || rank == nil {
			s.logger.Error("failed to load rank", "rank_id", *m.RankID, "error", rankErr)
			s.rollbackRestore(ctx, m, slot.Number, removedCallsign)
			return nil, nil, internal.NewInternalError("could not load rank", rankErr)
		}
		if err := s.sync.SwapRankRoles(ctx, dept.GuildID, m.PlatformUserID, nil, rank.RoleID); err != nil {
			rolledBack := s.rollbackRestore(ctx, m, slot.Number, removedCallsign)
			if appErr, ok := internal.IsAppError(err); ok {
				return nil, nil, appErr.WithDetails(map[string]interface{}{
					"rolled_back": rolledBack,
				})
			}
			return nil, nil, err
		}
	}

	entry := &memberDatamodel.PromotionHistoryEntry{
		MemberID:      m.ID,
		DepartmentID:  m.DepartmentID,
		FromRankID:    m.RankID,
		ToRankID:      m.RankID,
		Source:        memberDatamodel.HistorySourceRestore,
		ActorMemberID: &actorID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.repo.AppendHistory(entry); err != nil {
		s.logger.Error("failed to append restore history", "member_id", m.ID, "error", err)
	}

	var warnings []platform.SyncWarning
	if teamRoleID != nil {
		warnings = s.sync.SyncTeamRoles(ctx, dept.GuildID, m.PlatformUserID, nil, teamRoleID, m.ID, m.DepartmentID)
		s.publishWarnings(ctx, m, warnings)
	}

	s.logger.Info("member restored",
		"member_id", m.ID,
		"department_id", m.DepartmentID,
		"callsign", m.Callsign,
		"actor_id", actorID)
	s.events.Publish(ctx, events.NewMemberRestoredEvent(m.ID, m.DepartmentID, m.Callsign))
	return m, warnings, nil
}

func (s *Service) GetMember(memberID int64) (*memberDatamodel.Member, error) {
	m, err := s.repo.GetMember(memberID)
	if err != nil {
		s.logger.Error("failed to load member", "member_id", memberID, "error", err)
		return nil, internal.NewInternalError("could not load member", err)
	}
	if m == nil {
		return nil, internal.ErrMemberNotFound
	}
	return m, nil
}

func (s *Service) ListMembers(departmentID int64) ([]*memberDatamodel.Member, error) {
	dept, err := s.repo.GetDepartment(departmentID)
	if err != nil {
		s.logger.Error("failed to load department", "department_id", departmentID, "error", err)
		return nil, internal.NewInternalError("could not load department", err)
	}
	if dept == nil {
		return nil, internal.ErrDepartmentNotFound
	}

	members, err := s.repo.ListMembers(departmentID)
	if err != nil {
		s.logger.Error("failed to list members", "department_id", departmentID, "error", err)
		return nil, internal.NewInternalError("could not list members", err)
	}
	return members, nil
}

// rollbackRestore reverses the speculative local commit of Restore and
// reports whether every step of the reversal succeeded.
func (s *Service) rollbackRestore(ctx context.Context, m *memberDatamodel.Member, number int, removedCallsign string) bool {
	rolledBack := true

	m.IsActive = false
	m.IdentifierNumber = nil
	m.Callsign = removedCallsign
	if err := s.repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
		"is_active":         false,
		"identifier_number": nil,
		"callsign":          removedCallsign,
	}); err != nil {
		s.logger.Error("failed to reverse restore commit", "member_id", m.ID, "error", err)
		rolledBack = false
	}
	if err := s.identifiers.Release(ctx, m.DepartmentID, number); err != nil {
		s.logger.Error("failed to release identifier during restore rollback", "member_id", m.ID, "number", number, "error", err)
		rolledBack = false
	}
	return rolledBack
}

func (s *Service) activeDepartment(departmentID int64) (*departmentDatamodel.Department, error) {
	dept, err := s.repo.GetDepartment(departmentID)
	if err != nil {
		s.logger.Error("failed to load department", "department_id", departmentID, "error", err)
		return nil, internal.NewInternalError("could not load department", err)
	}
	if dept == nil {
		return nil, internal.ErrDepartmentNotFound
	}
	if !dept.IsActive {
		return nil, internal.NewConflictError("department is deactivated", internal.ErrCodeDepartmentInactive)
	}
	return dept, nil
}

// activeMember loads a member and rejects soft-removed rows; removed
// members only respond to Restore.
func (s *Service) activeMember(memberID int64) (*memberDatamodel.Member, error) {
	m, err := s.repo.GetMember(memberID)
	if err != nil {
		s.logger.Error("failed to load member", "member_id", memberID, "error", err)
		return nil, internal.NewInternalError("could not load member", err)
	}
	if m == nil {
		return nil, internal.ErrMemberNotFound
	}
	if !m.IsActive {
		return nil, internal.NewConflictError("member has been removed from the roster", internal.ErrCodeMemberRemoved)
	}
	return m, nil
}

// requireActor resolves the acting member and checks a single permission
// from their rank. The actor must be an active member of the same
// department as the subject.
func (s *Service) requireActor(actorID, departmentID int64, permission string, permitted func(departmentDatamodel.Permissions) bool) (*memberDatamodel.Member, *departmentDatamodel.Rank, error) {
	actor, err := s.repo.GetMember(actorID)
	if err != nil {
		s.logger.Error("failed to load actor", "actor_id", actorID, "error", err)
		return nil, nil, internal.NewInternalError("could not load actor", err)
	}
	if actor == nil || !actor.IsActive {
		return nil, nil, internal.NewForbiddenError("actor is not an active member", internal.ErrCodeMissingPermission)
	}
	if actor.DepartmentID != departmentID {
		return nil, nil, internal.NewForbiddenError("actor belongs to a different department", internal.ErrCodeWrongDepartment)
	}

	var rank *departmentDatamodel.Rank
	if actor.RankID != nil {
		rank, err = s.repo.GetRank(*actor.RankID)
		if err != nil {
			s.logger.Error("failed to load actor rank", "rank_id", *actor.RankID, "error", err)
			return nil, nil, internal.NewInternalError("could not load actor rank", err)
		}
	}

	perms := departmentDatamodel.Permissions{}
	if rank != nil {
		perms = rank.Permissions
	}
	if !permitted(perms) {
		s.logger.Warn("permission denied", "actor_id", actorID, "required", permission)
		return nil, nil, internal.ErrMissingPermission
	}
	return actor, rank, nil
}

// requireSeniority enforces the hierarchy guard: the actor's rank level
// must strictly exceed the target's. An unranked target sits below every
// ranked actor.
func (s *Service) requireSeniority(actorRank *departmentDatamodel.Rank, target *memberDatamodel.Member) error {
	actorLevel := -1
	if actorRank != nil {
		actorLevel = actorRank.Level
	}

	targetLevel := -1
	if target.RankID != nil {
		rank, err := s.repo.GetRank(*target.RankID)
		if err != nil {
			s.logger.Error("failed to load target rank", "rank_id", *target.RankID, "error", err)
			return internal.NewInternalError("could not load target rank", err)
		}
		if rank != nil {
			targetLevel = rank.Level
		}
	}

	if actorLevel <= targetLevel {
		return internal.ErrHierarchyViolation
	}
	return nil
}

func (s *Service) rankDesignator(m *memberDatamodel.Member) (string, error) {
	if m.RankID == nil {
		return "", nil
	}
	rank, err := s.repo.GetRank(*m.RankID)
	if err != nil {
		s.logger.Error("failed to load rank", "rank_id", *m.RankID, "error", err)
		return "", internal.NewInternalError("could not load rank", err)
	}
	if rank == nil {
		return "", internal.ErrRankNotFound
	}
	return rank.Designator, nil
}

func (s *Service) publishWarnings(ctx context.Context, m *memberDatamodel.Member, warnings []platform.SyncWarning) {
	for _, warning := range warnings {
		s.events.Publish(ctx, events.NewSyncWarningEvent(m.ID, m.DepartmentID, warning.Operation, warning.RoleID, warning.Detail))
	}
}

func transitionError(from, to memberDatamodel.Status) error {
	return internal.NewConflictError(
		fmt.Sprintf("cannot transition from %s to %s", from, to), internal.ErrCodeInvalidTransition)
}
