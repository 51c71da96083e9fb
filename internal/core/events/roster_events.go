package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeMemberJoined   = "member.joined"
	EventTypeMemberPromoted = "member.promoted"
	EventTypeMemberDemoted  = "member.demoted"
	EventTypeMemberRemoved  = "member.removed"
	EventTypeMemberRestored = "member.restored"
	EventTypeRankReconciled = "member.rank_reconciled"
	EventTypeSyncWarning    = "roster.sync_warning"
)

type MemberJoinedEvent struct {
	BaseEvent
	MemberID       int64  `json:"member_id"`
	DepartmentID   int64  `json:"department_id"`
	PlatformUserID string `json:"platform_user_id"`
	Callsign       string `json:"callsign"`
}

func NewMemberJoinedEvent(memberID, departmentID int64, platformUserID, callsign string) *MemberJoinedEvent {
	return &MemberJoinedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMemberJoined,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"member_id":        memberID,
				"department_id":    departmentID,
				"platform_user_id": platformUserID,
				"callsign":         callsign,
			},
		},
		MemberID:       memberID,
		DepartmentID:   departmentID,
		PlatformUserID: platformUserID,
		Callsign:       callsign,
	}
}

type MemberPromotedEvent struct {
	BaseEvent
	MemberID      int64  `json:"member_id"`
	DepartmentID  int64  `json:"department_id"`
	FromRankID    *int64 `json:"from_rank_id,omitempty"`
	ToRankID      int64  `json:"to_rank_id"`
	ActorMemberID int64  `json:"actor_member_id"`
}

func NewMemberPromotedEvent(memberID, departmentID int64, fromRankID *int64, toRankID, actorMemberID int64) *MemberPromotedEvent {
	return &MemberPromotedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMemberPromoted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"member_id":       memberID,
				"department_id":   departmentID,
				"from_rank_id":    fromRankID,
				"to_rank_id":      toRankID,
				"actor_member_id": actorMemberID,
			},
		},
		MemberID:      memberID,
		DepartmentID:  departmentID,
		FromRankID:    fromRankID,
		ToRankID:      toRankID,
		ActorMemberID: actorMemberID,
	}
}

type MemberDemotedEvent struct {
	BaseEvent
	MemberID      int64  `json:"member_id"`
	DepartmentID  int64  `json:"department_id"`
	FromRankID    *int64 `json:"from_rank_id,omitempty"`
	ToRankID      int64  `json:"to_rank_id"`
	ActorMemberID int64  `json:"actor_member_id"`
	Reason        string `json:"reason"`
}

func NewMemberDemotedEvent(memberID, departmentID int64, fromRankID *int64, toRankID, actorMemberID int64, reason string) *MemberDemotedEvent {
	return &MemberDemotedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMemberDemoted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"member_id":       memberID,
				"department_id":   departmentID,
				"from_rank_id":    fromRankID,
				"to_rank_id":      toRankID,
				"actor_member_id": actorMemberID,
				"reason":          reason,
			},
		},
		MemberID:      memberID,
		DepartmentID:  departmentID,
		FromRankID:    fromRankID,
		ToRankID:      toRankID,
		ActorMemberID: actorMemberID,
		Reason:        reason,
	}
}

type MemberRemovedEvent struct {
	BaseEvent
	MemberID     int64  `json:"member_id"`
	DepartmentID int64  `json:"department_id"`
	Reason       string `json:"reason"`
}

func NewMemberRemovedEvent(memberID, departmentID int64, reason string) *MemberRemovedEvent {
	return &MemberRemovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMemberRemoved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"member_id":     memberID,
				"department_id": departmentID,
				"reason":        reason,
			},
		},
		MemberID:     memberID,
		DepartmentID: departmentID,
		Reason:       reason,
	}
}

type MemberRestoredEvent struct {
	BaseEvent
	MemberID     int64  `json:"member_id"`
	DepartmentID int64  `json:"department_id"`
	Callsign     string `json:"callsign"`
}

func NewMemberRestoredEvent(memberID, departmentID int64, callsign string) *MemberRestoredEvent {
	return &MemberRestoredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMemberRestored,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"member_id":     memberID,
				"department_id": departmentID,
				"callsign":      callsign,
			},
		},
		MemberID:     memberID,
		DepartmentID: departmentID,
		Callsign:     callsign,
	}
}

type RankReconciledEvent struct {
	BaseEvent
	MemberID     int64  `json:"member_id"`
	DepartmentID int64  `json:"department_id"`
	FromRankID   *int64 `json:"from_rank_id,omitempty"`
	ToRankID     *int64 `json:"to_rank_id,omitempty"`
	SourceEvent  string `json:"source_event"`
}

func NewRankReconciledEvent(memberID, departmentID int64, fromRankID, toRankID *int64, sourceEvent string) *RankReconciledEvent {
	return &RankReconciledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRankReconciled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"member_id":     memberID,
				"department_id": departmentID,
				"from_rank_id":  fromRankID,
				"to_rank_id":    toRankID,
				"source_event":  sourceEvent,
			},
		},
		MemberID:     memberID,
		DepartmentID: departmentID,
		FromRankID:   fromRankID,
		ToRankID:     toRankID,
		SourceEvent:  sourceEvent,
	}
}

type SyncWarningEvent struct {
	BaseEvent
	MemberID     int64  `json:"member_id"`
	DepartmentID int64  `json:"department_id"`
	Operation    string `json:"operation"`
	RoleID       string `json:"role_id"`
	Detail       string `json:"detail"`
}

func NewSyncWarningEvent(memberID, departmentID int64, operation, roleID, detail string) *SyncWarningEvent {
	return &SyncWarningEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSyncWarning,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"member_id":     memberID,
				"department_id": departmentID,
				"operation":     operation,
				"role_id":       roleID,
				"detail":        detail,
			},
		},
		MemberID:     memberID,
		DepartmentID: departmentID,
		Operation:    operation,
		RoleID:       roleID,
		Detail:       detail,
	}
}
