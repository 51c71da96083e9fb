package ranklimit

import (
	"fmt"
	"log/slog"

	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
)

// Decision is the outcome of one limit evaluation. EffectiveLimit is nil
// when the rank is unlimited.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason"`
	CurrentCount   int64  `json:"current_count"`
	EffectiveLimit *int64 `json:"effective_limit,omitempty"`
}

// Repository defines the data access methods for limit evaluation
type Repository interface {
	GetRank(rankID int64) (*departmentDatamodel.Rank, error)
	GetTeamLimit(teamID, rankID int64) (*departmentDatamodel.TeamRankLimit, error)
	CountTeamOccupancy(teamID, rankID int64) (int64, error)
	CountDepartmentOccupancy(departmentID, rankID int64) (int64, error)
}

// Service decides whether one more member may hold a rank. Team overrides
// and department-wide caps count over disjoint domains: a team-scoped limit
// only ever sees members whose primary team is that team, never holders of
// the rank elsewhere in the department.
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

// Evaluate applies the resolution order: a TeamRankLimit row for
// (team, rank) governs when present, otherwise the rank's own max_members
// governs with nil meaning unlimited. Comparison is strict less-than.
//
// Callers promoting into the last open position must not trust a prior
// Decision; the write path re-evaluates inside its own transaction.
func (s *Service) Evaluate(rankID, departmentID int64, teamID *int64) (*Decision, error) {
	if teamID != nil {
		override, err := s.repo.GetTeamLimit(*teamID, rankID)
		if err != nil {
			s.logger.Error("failed to look up team rank limit",
				"team_id", *teamID,
				"rank_id", rankID,
				"error", err)
			return nil, err
		}
		if override != nil {
			return s.evaluateTeamScope(rankID, *teamID, override.MaxMembers)
		}
	}

	rank, err := s.repo.GetRank(rankID)
	if err != nil {
		s.logger.Error("failed to load rank for limit evaluation",
			"rank_id", rankID,
			"error", err)
		return nil, err
	}

	if rank.MaxMembers == nil {
		return &Decision{Allowed: true, Reason: "rank is unlimited"}, nil
	}

	count, err := s.repo.CountDepartmentOccupancy(departmentID, rankID)
	if err != nil {
		s.logger.Error("failed to count department occupancy",
			"department_id", departmentID,
			"rank_id", rankID,
			"error", err)
		return nil, err
	}

	limit := *rank.MaxMembers
	decision := &Decision{
		Allowed:        count < limit,
		CurrentCount:   count,
		EffectiveLimit: &limit,
	}
	if !decision.Allowed {
		decision.Reason = fmt.Sprintf("department-wide limit reached: %d of %d positions filled", count, limit)
	}
	return decision, nil
}

func (s *Service) evaluateTeamScope(rankID, teamID, limit int64) (*Decision, error) {
	count, err := s.repo.CountTeamOccupancy(teamID, rankID)
	if err != nil {
		s.logger.Error("failed to count team occupancy",
			"team_id", teamID,
			"rank_id", rankID,
			"error", err)
		return nil, err
	}

	decision := &Decision{
		Allowed:        count < limit,
		CurrentCount:   count,
		EffectiveLimit: &limit,
	}
	if !decision.Allowed {
		decision.Reason = fmt.Sprintf("team limit reached: %d of %d positions filled", count, limit)
	}
	return decision, nil
}
