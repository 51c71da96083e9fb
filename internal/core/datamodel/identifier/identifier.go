package identifier

import (
	"time"
)

// Pool bounds. Slots outside this range are never created; allocation past
// the ceiling fails with a pool exhaustion error instead of growing.
const (
	PoolFloor   = 100
	PoolCeiling = 999
)

// Slot is one number in a department's identifier pool. A slot is either
// available or held by exactly one member; LastHolderMemberID survives
// release so audits can trace who carried a number last.
type Slot struct {
	ID                 int64     `json:"id" gorm:"primaryKey"`
	DepartmentID       int64     `json:"department_id" gorm:"column:department_id;not null;uniqueIndex:idx_dept_number"`
	Number             int       `json:"number" gorm:"column:number;not null;uniqueIndex:idx_dept_number"`
	Available          bool      `json:"available" gorm:"column:available;not null"`
	HolderMemberID     *int64    `json:"holder_member_id,omitempty" gorm:"column:holder_member_id"`
	LastHolderMemberID *int64    `json:"last_holder_member_id,omitempty" gorm:"column:last_holder_member_id"`
	CreatedAt          time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Slot) TableName() string {
	return "identifier_slots"
}
