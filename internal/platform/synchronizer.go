package platform

import (
	"context"
	"log/slog"
)

// Role task operations carried through the retry queue.
const (
	RoleOpGrant  = "grant"
	RoleOpRevoke = "revoke"
)

// RoleTask is one best-effort role mutation that failed and waits in the
// retry queue for the sync worker.
type RoleTask struct {
	Operation    string `json:"operation"`
	GuildID      string `json:"guild_id"`
	UserID       string `json:"user_id"`
	RoleID       string `json:"role_id"`
	MemberID     int64  `json:"member_id"`
	DepartmentID int64  `json:"department_id"`
}

// RetryQueue accepts failed best-effort role mutations for later replay.
type RetryQueue interface {
	Enqueue(ctx context.Context, task RoleTask) error
}

// SyncWarning reports one best-effort role mutation that did not land. The
// owning operation still succeeds; the task is already queued for retry.
type SyncWarning struct {
	Operation string `json:"operation"`
	RoleID    string `json:"role_id"`
	Detail    string `json:"detail"`
}

// Synchronizer mirrors roster state onto the identity platform under two
// protocols. Team-role decoration is best effort: failures become warnings
// and retry tasks, never operation failures. Rank roles treat the platform
// as the source of truth: the external write must land before any local
// commit, and a half-applied swap is compensated back out.
type Synchronizer struct {
	client RoleClient
	queue  RetryQueue
	logger *slog.Logger
}

func NewSynchronizer(client RoleClient, queue RetryQueue, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		client: client,
		queue:  queue,
		logger: logger,
	}
}

// SyncTeamRoles swaps team decoration roles best-effort: revoke the
// replaced team's role, grant the new one. Each failure is returned as a
// warning and enqueued for the retry worker.
func (s *Synchronizer) SyncTeamRoles(ctx context.Context, guildID, userID string, oldRoleID, newRoleID *string, memberID, departmentID int64) []SyncWarning {
	var warnings []SyncWarning

	if oldRoleID != nil && *oldRoleID != "" {
		if err := s.client.RevokeRole(ctx, guildID, userID, *oldRoleID); err != nil {
			warnings = append(warnings, s.deferTask(ctx, RoleTask{
				Operation:    RoleOpRevoke,
				GuildID:      guildID,
				UserID:       userID,
				RoleID:       *oldRoleID,
				MemberID:     memberID,
				DepartmentID: departmentID,
			}, err))
		}
	}

	if newRoleID != nil && *newRoleID != "" {
		if err := s.client.GrantRole(ctx, guildID, userID, *newRoleID); err != nil {
			warnings = append(warnings, s.deferTask(ctx, RoleTask{
				Operation:    RoleOpGrant,
				GuildID:      guildID,
				UserID:       userID,
				RoleID:       *newRoleID,
				MemberID:     memberID,
				DepartmentID: departmentID,
			}, err))
		}
	}

	return warnings
}

// BestEffortRevoke strips a set of roles without failing the caller, used
// when a member leaves the roster.
func (s *Synchronizer) BestEffortRevoke(ctx context.Context, guildID, userID string, roleIDs []string, memberID, departmentID int64) []SyncWarning {
	var warnings []SyncWarning

	for _, roleID := range roleIDs {
		if roleID == "" {
			continue
		}
		if err := s.client.RevokeRole(ctx, guildID, userID, roleID); err != nil {
			warnings = append(warnings, s.deferTask(ctx, RoleTask{
				Operation:    RoleOpRevoke,
				GuildID:      guildID,
				UserID:       userID,
				RoleID:       roleID,
				MemberID:     memberID,
				DepartmentID: departmentID,
			}, err))
		}
	}

	return warnings
}

// SwapRankRoles performs the external half of a rank change: grant the new
// rank's role, then revoke the old one. The grant goes first so a failure
// leaves the member with their previous role intact. If the revoke fails,
// the fresh grant is taken back and the whole swap fails; the caller must
// not commit any local rank state.
func (s *Synchronizer) SwapRankRoles(ctx context.Context, guildID, userID string, oldRoleID *string, newRoleID string) error {
	if newRoleID != "" {
		if err := s.client.GrantRole(ctx, guildID, userID, newRoleID); err != nil {
			s.logger.Error("rank role grant failed",
				"guild_id", guildID,
				"user_id", userID,
				"role_id", newRoleID,
				"error", err)
			return err
		}
	}

	if oldRoleID == nil || *oldRoleID == "" || *oldRoleID == newRoleID {
		return nil
	}

	if err := s.client.RevokeRole(ctx, guildID, userID, *oldRoleID); err != nil {
		s.logger.Error("rank role revoke failed, compensating fresh grant",
			"guild_id", guildID,
			"user_id", userID,
			"old_role_id", *oldRoleID,
			"new_role_id", newRoleID,
			"error", err)

		if newRoleID != "" {
			if compErr := s.client.RevokeRole(ctx, guildID, userID, newRoleID); compErr != nil {
				s.logger.Error("compensation revoke failed, member holds both rank roles",
					"guild_id", guildID,
					"user_id", userID,
					"role_id", newRoleID,
					"error", compErr)
			}
		}
		return err
	}

	return nil
}

// Compensate restores the previous external role state after a local commit
// failed behind a successful swap: the freshly granted role is revoked and
// the previously revoked role granted back. The returned error reports the
// first restore step that failed.
func (s *Synchronizer) Compensate(ctx context.Context, guildID, userID string, grantedRoleID string, revokedRoleID *string) error {
	var firstErr error

	if grantedRoleID != "" {
		if err := s.client.RevokeRole(ctx, guildID, userID, grantedRoleID); err != nil {
			s.logger.Error("failed to revoke role during compensation",
				"guild_id", guildID,
				"user_id", userID,
				"role_id", grantedRoleID,
				"error", err)
			firstErr = err
		}
	}

	if revokedRoleID != nil && *revokedRoleID != "" && *revokedRoleID != grantedRoleID {
		if err := s.client.GrantRole(ctx, guildID, userID, *revokedRoleID); err != nil {
			s.logger.Error("failed to restore role during compensation",
				"guild_id", guildID,
				"user_id", userID,
				"role_id", *revokedRoleID,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// deferTask queues the failed mutation for the retry worker and shapes the
// warning callers surface to the user.
func (s *Synchronizer) deferTask(ctx context.Context, task RoleTask, cause error) SyncWarning {
	s.logger.Warn("best-effort role sync failed, queueing retry",
		"operation", task.Operation,
		"role_id", task.RoleID,
		"member_id", task.MemberID,
		"error", cause)

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, task); err != nil {
			s.logger.Error("failed to enqueue role retry task",
				"operation", task.Operation,
				"role_id", task.RoleID,
				"member_id", task.MemberID,
				"error", err)
		}
	}

	return SyncWarning{
		Operation: task.Operation,
		RoleID:    task.RoleID,
		Detail:    cause.Error(),
	}
}
