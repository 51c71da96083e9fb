package credential

import (
	"time"
)

// APICredential authenticates automated callers such as the training bot.
// Keys are stored as bcrypt hashes; the prefix travels in clear so a lookup
// does not need to compare against every row.
type APICredential struct {
	ID           int64      `json:"id" gorm:"primaryKey"`
	DepartmentID int64      `json:"department_id" gorm:"column:department_id;not null;index"`
	Name         string     `json:"name" gorm:"column:name;not null"`
	KeyPrefix    string     `json:"key_prefix" gorm:"column:key_prefix;uniqueIndex;not null"`
	KeyHash      string     `json:"-" gorm:"column:key_hash;not null"`
	IsActive     bool       `json:"is_active" gorm:"column:is_active;default:true"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (APICredential) TableName() string {
	return "api_credentials"
}
