package member

import (
	"time"
)

type Status string

const (
	StatusInTraining     Status = "in_training"
	StatusPending        Status = "pending"
	StatusActive         Status = "active"
	StatusInactive       Status = "inactive"
	StatusLeaveOfAbsence Status = "leave_of_absence"
	StatusWarned1        Status = "warned_1"
	StatusWarned2        Status = "warned_2"
	StatusWarned3        Status = "warned_3"
	StatusSuspended      Status = "suspended"
	StatusBlacklisted    Status = "blacklisted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInTraining, StatusPending, StatusActive, StatusInactive,
		StatusLeaveOfAbsence, StatusWarned1, StatusWarned2, StatusWarned3,
		StatusSuspended, StatusBlacklisted:
		return true
	}
	return false
}

// Disciplinary reports whether the status belongs to the warning/suspension
// track, where every entry requires a recorded reason.
func (s Status) Disciplinary() bool {
	switch s {
	case StatusWarned1, StatusWarned2, StatusWarned3, StatusSuspended, StatusBlacklisted:
		return true
	}
	return false
}

// Member is one person's standing inside a department. Version is the
// optimistic concurrency token: every rank or identifier mutation must carry
// the version it read, and the update fails when another writer got there
// first. Uniqueness of (department, platform user) holds only across active
// rows; the migration adds the partial unique index, since a removed member
// keeps the row and the identity may enroll again.
type Member struct {
	ID               int64      `json:"id" gorm:"primaryKey"`
	DepartmentID     int64      `json:"department_id" gorm:"column:department_id;not null;index:idx_dept_platform_user"`
	PlatformUserID   string     `json:"platform_user_id" gorm:"column:platform_user_id;not null;index:idx_dept_platform_user"`
	DisplayName      string     `json:"display_name" gorm:"column:display_name;not null"`
	IdentifierNumber *int       `json:"identifier_number,omitempty" gorm:"column:identifier_number"`
	Callsign         string     `json:"callsign" gorm:"column:callsign;not null"`
	RankID           *int64     `json:"rank_id,omitempty" gorm:"column:rank_id;index"`
	TeamID           *int64     `json:"team_id,omitempty" gorm:"column:team_id;index"`
	Status           Status     `json:"status" gorm:"column:status;not null"`
	StatusReason     *string    `json:"status_reason,omitempty" gorm:"column:status_reason"`
	IsActive         bool       `json:"is_active" gorm:"column:is_active;default:true"`
	Version          int64      `json:"version" gorm:"column:version;not null;default:1"`
	HiredAt          time.Time  `json:"hired_at" gorm:"column:hired_at;not null"`
	LastSeenAt       *time.Time `json:"last_seen_at,omitempty" gorm:"column:last_seen_at"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Member) TableName() string {
	return "members"
}

// TeamMembership records secondary team attachments beyond the member's
// primary team column. The primary team still lives on Member.TeamID so the
// callsign composer and rank limit evaluator read one authoritative field.
type TeamMembership struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	MemberID  int64     `json:"member_id" gorm:"column:member_id;not null;uniqueIndex:idx_member_team"`
	TeamID    int64     `json:"team_id" gorm:"column:team_id;not null;uniqueIndex:idx_member_team"`
	JoinedAt  time.Time `json:"joined_at" gorm:"column:joined_at;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
}

func (TeamMembership) TableName() string {
	return "team_memberships"
}
