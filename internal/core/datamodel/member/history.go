package member

import (
	"time"
)

// Sources for history entries. Reconciliation entries carry no actor because
// the change originated outside the roster.
const (
	HistorySourcePromotion      = "promotion"
	HistorySourceDemotion       = "demotion"
	HistorySourceReconciliation = "reconciliation"
	HistorySourceRestore        = "restore"
)

// PromotionHistoryEntry is an append-only record of one rank change. Rows are
// never updated or deleted; a reversed change gets its own entry.
type PromotionHistoryEntry struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	MemberID      int64     `json:"member_id" gorm:"column:member_id;not null;index"`
	DepartmentID  int64     `json:"department_id" gorm:"column:department_id;not null;index"`
	FromRankID    *int64    `json:"from_rank_id,omitempty" gorm:"column:from_rank_id"`
	ToRankID      *int64    `json:"to_rank_id,omitempty" gorm:"column:to_rank_id"`
	Source        string    `json:"source" gorm:"column:source;not null"`
	ActorMemberID *int64    `json:"actor_member_id,omitempty" gorm:"column:actor_member_id"`
	Reason        *string   `json:"reason,omitempty" gorm:"column:reason"`
	OccurredAt    time.Time `json:"occurred_at" gorm:"column:occurred_at;not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
}

func (PromotionHistoryEntry) TableName() string {
	return "promotion_history"
}
