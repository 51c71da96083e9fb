package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/callsign"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	platformtypes "github.com/averhoeven/roster-management/internal/core/datamodel/platform"
	"github.com/averhoeven/roster-management/internal/core/events"
)

// Repository is the persistence surface of the reconciliation listener.
// ApplyRankChange CAS-updates the member's rank and callsign and appends
// the history entry in one transaction; a version miss returns
// internal.ErrStaleMember with nothing written.
type Repository interface {
	ListActiveByPlatformUser(platformUserID string, departmentID *int64) ([]*memberDatamodel.Member, error)
	GetMember(id int64) (*memberDatamodel.Member, error)
	GetDepartment(id int64) (*departmentDatamodel.Department, error)
	ListRanks(departmentID int64) ([]*departmentDatamodel.Rank, error)
	GetTeam(id int64) (*departmentDatamodel.Team, error)
	ApplyRankChange(ctx context.Context, m *memberDatamodel.Member, toRankID *int64, newCallsign string, entry *memberDatamodel.PromotionHistoryEntry) error
}

// RoleLister is the read slice of the platform client.
type RoleLister interface {
	ListRoles(ctx context.Context, guildID, userID string) ([]platformtypes.HeldRole, error)
}

// Delta describes one member whose local rank was converged toward the
// roles the platform reports, or could not be because a concurrent rank
// write kept winning the member row.
type Delta struct {
	MemberID     int64  `json:"member_id"`
	DepartmentID int64  `json:"department_id"`
	FromRankID   *int64 `json:"from_rank_id"`
	ToRankID     *int64 `json:"to_rank_id"`
	Callsign     string `json:"callsign,omitempty"`
	Conflicted   bool   `json:"conflicted,omitempty"`
}

// Result is the webhook response body.
type Result struct {
	UpdatedCount int     `json:"updated_count"`
	Deltas       []Delta `json:"deltas"`
}

type Service struct {
	repo   Repository
	roles  RoleLister
	events *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, roles RoleLister, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		roles:  roles,
		events: bus,
		logger: logger,
	}
}

// Reconcile converges the local rank of every active enrollment of the
// platform user toward the roles the platform currently reports. The
// highest-level rank whose role the user holds wins; holding no rank role
// clears the local rank. Members already in agreement are left untouched,
// so a repeated notification writes nothing.
func (s *Service) Reconcile(ctx context.Context, dto *RoleWebhookDTO) (*Result, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	members, err := s.repo.ListActiveByPlatformUser(dto.PlatformUserID, dto.DepartmentID)
	if err != nil {
		return nil, internal.NewInternalError("could not list members", err)
	}

	result := &Result{Deltas: []Delta{}}
	for _, m := range members {
		delta, err := s.reconcileMember(ctx, m)
		if err != nil {
			return nil, err
		}
		if delta == nil {
			continue
		}
		result.Deltas = append(result.Deltas, *delta)
		if !delta.Conflicted {
			result.UpdatedCount++
		}
	}
	return result, nil
}

func (s *Service) reconcileMember(ctx context.Context, m *memberDatamodel.Member) (*Delta, error) {
	dept, err := s.repo.GetDepartment(m.DepartmentID)
	if err != nil {
		return nil, internal.NewInternalError("could not load department", err)
	}
	if dept == nil {
		return nil, internal.ErrDepartmentNotFound
	}

	held, err := s.roles.ListRoles(ctx, dept.GuildID, m.PlatformUserID)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, internal.NewInternalError("could not list platform roles", err)
	}

	ranks, err := s.repo.ListRanks(m.DepartmentID)
	if err != nil {
		return nil, internal.NewInternalError("could not list ranks", err)
	}

	selected := highestHeldRank(ranks, held)
	if agrees(selected, m.RankID) {
		return nil, nil
	}

	fromRankID := copyID(m.RankID)
	err = s.apply(ctx, m, dept, selected)
	if err == internal.ErrStaleMember {
		// a concurrent rank write won the member row; re-read and try once
		fresh, freshErr := s.repo.GetMember(m.ID)
		if freshErr != nil {
			return nil, internal.NewInternalError("could not load member", freshErr)
		}
		if fresh == nil || !fresh.IsActive {
			return nil, nil
		}
		if agrees(selected, fresh.RankID) {
			return nil, nil
		}
		m = fresh
		fromRankID = copyID(m.RankID)
		err = s.apply(ctx, m, dept, selected)
		if err == internal.ErrStaleMember {
			s.logger.Warn("reconciliation lost the member row twice, reporting conflict",
				"member_id", m.ID,
				"department_id", m.DepartmentID)
			return &Delta{
				MemberID:     m.ID,
				DepartmentID: m.DepartmentID,
				FromRankID:   fromRankID,
				ToRankID:     rankIDRef(selected),
				Conflicted:   true,
			}, nil
		}
	}
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, internal.NewInternalError("could not apply rank change", err)
	}

	s.logger.Info("reconciled member rank from platform roles",
		"member_id", m.ID,
		"department_id", m.DepartmentID,
		"callsign", m.Callsign)
	s.events.Publish(ctx, events.NewRankReconciledEvent(m.ID, m.DepartmentID, fromRankID, m.RankID, "webhook"))

	return &Delta{
		MemberID:     m.ID,
		DepartmentID: m.DepartmentID,
		FromRankID:   fromRankID,
		ToRankID:     copyID(m.RankID),
		Callsign:     m.Callsign,
	}, nil
}

// apply recomputes the callsign for the selected rank and commits the
// member update together with its reconciliation history entry.
func (s *Service) apply(ctx context.Context, m *memberDatamodel.Member, dept *departmentDatamodel.Department, selected *departmentDatamodel.Rank) error {
	var teamDesignator *string
	if m.TeamID != nil {
		team, err := s.repo.GetTeam(*m.TeamID)
		if err != nil {
			return internal.NewInternalError("could not load team", err)
		}
		if team != nil {
			teamDesignator = team.Designator
		}
	}

	designator := ""
	if selected != nil {
		designator = selected.Designator
	}
	toRankID := rankIDRef(selected)
	newCallsign := callsign.Compose(designator, dept.CallsignPrefix, m.IdentifierNumber, teamDesignator)

	entry := &memberDatamodel.PromotionHistoryEntry{
		MemberID:     m.ID,
		DepartmentID: m.DepartmentID,
		FromRankID:   copyID(m.RankID),
		ToRankID:     toRankID,
		Source:       memberDatamodel.HistorySourceReconciliation,
		OccurredAt:   time.Now().UTC(),
	}
	return s.repo.ApplyRankChange(ctx, m, toRankID, newCallsign, entry)
}

// highestHeldRank picks the highest-level rank whose platform role the
// user currently carries. Nil means the user holds no rank role at all.
func highestHeldRank(ranks []*departmentDatamodel.Rank, held []platformtypes.HeldRole) *departmentDatamodel.Rank {
	heldSet := make(map[string]struct{}, len(held))
	for _, role := range held {
		heldSet[role.RoleID] = struct{}{}
	}

	var best *departmentDatamodel.Rank
	for _, rank := range ranks {
		if _, ok := heldSet[rank.RoleID]; !ok {
			continue
		}
		if best == nil || rank.Level > best.Level {
			best = rank
		}
	}
	return best
}

func agrees(selected *departmentDatamodel.Rank, current *int64) bool {
	if selected == nil {
		return current == nil
	}
	return current != nil && *current == selected.ID
}

func rankIDRef(rank *departmentDatamodel.Rank) *int64 {
	if rank == nil {
		return nil
	}
	id := rank.ID
	return &id
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
