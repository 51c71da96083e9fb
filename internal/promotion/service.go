package promotion

import (
	"context"
	"log/slog"
	"time"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/callsign"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/core/events"
	"github.com/averhoeven/roster-management/internal/ranklimit"
)

// Repository is the persistence surface of the rank orchestrator.
// CommitRankChange runs the whole local commit in one transaction: it
// serializes on the destination rank row, re-checks the effective limit,
// CAS-updates the member and appends the history entry.
type Repository interface {
	GetMember(id int64) (*memberDatamodel.Member, error)
	GetDepartment(id int64) (*departmentDatamodel.Department, error)
	GetRank(id int64) (*departmentDatamodel.Rank, error)
	GetTeam(id int64) (*departmentDatamodel.Team, error)
	CommitRankChange(ctx context.Context, m *memberDatamodel.Member, toRankID int64, newCallsign string, entry *memberDatamodel.PromotionHistoryEntry) error
	ListHistory(memberID int64) ([]*memberDatamodel.PromotionHistoryEntry, error)
}

// LimitEvaluator is the preflight slice of the rank-limit evaluator.
type LimitEvaluator interface {
	Evaluate(rankID, departmentID int64, teamID *int64) (*ranklimit.Decision, error)
}

// RoleSyncAPI is the external-first role swap with its compensation.
type RoleSyncAPI interface {
	SwapRankRoles(ctx context.Context, guildID, userID string, oldRoleID *string, newRoleID string) error
	Compensate(ctx context.Context, guildID, userID, grantedRoleID string, revokedRoleID *string) error
}

type Service struct {
	repo   Repository
	limits LimitEvaluator
	sync   RoleSyncAPI
	events *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, limits LimitEvaluator, sync RoleSyncAPI, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		limits: limits,
		sync:   sync,
		events: bus,
		logger: logger,
	}
}

// Promote moves a member strictly up the rank ladder. The external role
// swap happens before the local commit; a failed swap leaves no local
// trace, a failed commit compensates the swap.
func (s *Service) Promote(ctx context.Context, actorID, memberID int64, dto *ChangeRankDTO) (*memberDatamodel.Member, error) {
	return s.changeRank(ctx, actorID, memberID, dto, false)
}

// Demote moves a member strictly down and always records a reason.
func (s *Service) Demote(ctx context.Context, actorID, memberID int64, dto *ChangeRankDTO) (*memberDatamodel.Member, error) {
	return s.changeRank(ctx, actorID, memberID, dto, true)
}

func (s *Service) changeRank(ctx context.Context, actorID, memberID int64, dto *ChangeRankDTO, demotion bool) (*memberDatamodel.Member, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	if demotion && dto.Reason == "" {
		return nil, internal.NewValidationError("demotion requires a reason", internal.ErrCodeReasonRequired)
	}

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
	if m.Status == memberDatamodel.StatusBlacklisted {
		return nil, internal.NewConflictError("a blacklisted member cannot change rank", internal.ErrCodeInvalidTransition)
	}

	toRank, err := s.repo.GetRank(dto.ToRankID)
	if err != nil {
		s.logger.Error("failed to load destination rank", "rank_id", dto.ToRankID, "error", err)
		return nil, internal.NewInternalError("could not load rank", err)
	}
	if toRank == nil {
		return nil, internal.ErrRankNotFound
	}
	if toRank.DepartmentID != m.DepartmentID {
		return nil, internal.NewValidationError("rank belongs to a different department", internal.ErrCodeWrongDepartment)
	}

	permission := "promote"
	permitted := func(p departmentDatamodel.Permissions) bool { return p.Promote }
	if demotion {
		permission = "demote"
		permitted = func(p departmentDatamodel.Permissions) bool { return p.Demote }
	}
	_, actorRank, err := s.requireActor(actorID, m.DepartmentID, permission, permitted)
	if err != nil {
		return nil, err
	}

	var fromRank *departmentDatamodel.Rank
	currentLevel := -1
	if m.RankID != nil {
		fromRank, err = s.repo.GetRank(*m.RankID)
		if err != nil || fromRank == nil {
			s.logger.Error("failed to load current rank", "rank_id", *m.RankID, "error", err)
			return nil, internal.NewInternalError("could not load current rank", err)
		}
		currentLevel = fromRank.Level
	}

	actorLevel := -1
	if actorRank != nil {
		actorLevel = actorRank.Level
	}
	if actorLevel <= currentLevel || actorLevel <= toRank.Level {
		return nil, internal.ErrHierarchyViolation
	}

	if demotion {
		if toRank.Level >= currentLevel {
			return nil, internal.NewValidationError("demotion must move to a lower rank", internal.ErrCodeValidationFailed)
		}
	} else {
		if toRank.Level <= currentLevel {
			return nil, internal.NewValidationError("promotion must move to a higher rank", internal.ErrCodeValidationFailed)
		}
	}

	decision, err := s.limits.Evaluate(toRank.ID, m.DepartmentID, m.TeamID)
	if err != nil {
		s.logger.Error("failed to evaluate rank limit", "rank_id", toRank.ID, "error", err)
		return nil, internal.NewInternalError("could not evaluate rank limit", err)
	}
	if !decision.Allowed {
		return nil, internal.NewConflictError(decision.Reason, internal.ErrCodeRankLimitExceeded)
	}

	dept, err := s.repo.GetDepartment(m.DepartmentID)
	if err != nil || dept == nil {
		s.logger.Error("failed to load department", "department_id", m.DepartmentID, "error", err)
		return nil, internal.NewInternalError("could not load department", err)
	}

	var teamDesignator *string
	if m.TeamID != nil {
		team, err := s.repo.GetTeam(*m.TeamID)
		if err != nil {
			s.logger.Error("failed to load team", "team_id", *m.TeamID, "error", err)
			return nil, internal.NewInternalError("could not load team", err)
		}
		if team != nil {
			teamDesignator = team.Designator
		}
	}

	var fromRoleID *string
	var fromRankID *int64
	if fromRank != nil {
		fromRoleID = &fromRank.RoleID
		rankID := fromRank.ID
		fromRankID = &rankID
	}

	if err := s.sync.SwapRankRoles(ctx, dept.GuildID, m.PlatformUserID, fromRoleID, toRank.RoleID); err != nil {
		s.logger.Error("external rank swap failed",
			"member_id", m.ID,
			"to_rank_id", toRank.ID,
			"error", err)
		return nil, err
	}

	var reason *string
	if dto.Reason != "" {
		reason = &dto.Reason
	}
	source := memberDatamodel.HistorySourcePromotion
	if demotion {
		source = memberDatamodel.HistorySourceDemotion
	}
	toRankID := toRank.ID
	entry := &memberDatamodel.PromotionHistoryEntry{
		MemberID:      m.ID,
		DepartmentID:  m.DepartmentID,
		FromRankID:    fromRankID,
		ToRankID:      &toRankID,
		Source:        source,
		ActorMemberID: &actorID,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}

	newCallsign := callsign.Compose(toRank.Designator, dept.CallsignPrefix, m.IdentifierNumber, teamDesignator)
	if err := s.repo.CommitRankChange(ctx, m, toRank.ID, newCallsign, entry); err != nil {
		s.logger.Error("local rank commit failed, compensating external swap",
			"member_id", m.ID,
			"to_rank_id", toRank.ID,
			"error", err)
		if compErr := s.sync.Compensate(ctx, dept.GuildID, m.PlatformUserID, toRank.RoleID, fromRoleID); compErr != nil {
			s.logger.Error("compensation after failed commit also failed",
				"member_id", m.ID,
				"to_rank_id", toRank.ID,
				"error", compErr)
		}
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, internal.NewInternalError("could not commit rank change", err)
	}

	if demotion {
		s.events.Publish(ctx, events.NewMemberDemotedEvent(m.ID, m.DepartmentID, fromRankID, toRank.ID, actorID, dto.Reason))
	} else {
		s.events.Publish(ctx, events.NewMemberPromotedEvent(m.ID, m.DepartmentID, fromRankID, toRank.ID, actorID))
	}

	s.logger.Info("rank changed",
		"member_id", m.ID,
		"from_rank_id", fromRankID,
		"to_rank_id", toRank.ID,
		"callsign", m.Callsign,
		"actor_id", actorID,
		"demotion", demotion)
	return m, nil
}

// History lists a member's rank changes, newest first.
func (s *Service) History(memberID int64) ([]*memberDatamodel.PromotionHistoryEntry, error) {
	m, err := s.repo.GetMember(memberID)
	if err != nil {
		s.logger.Error("failed to load member", "member_id", memberID, "error", err)
		return nil, internal.NewInternalError("could not load member", err)
	}
	if m == nil {
		return nil, internal.ErrMemberNotFound
	}

	entries, err := s.repo.ListHistory(memberID)
	if err != nil {
		s.logger.Error("failed to list history", "member_id", memberID, "error", err)
		return nil, internal.NewInternalError("could not list history", err)
	}
	return entries, nil
}

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
