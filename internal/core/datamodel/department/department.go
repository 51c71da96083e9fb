package department

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Type string

const (
	TypeLawEnforcement Type = "law_enforcement"
	TypeFireRescue     Type = "fire_rescue"
	TypeMedical        Type = "medical"
	TypeDispatch       Type = "dispatch"
	TypeStaff          Type = "staff"
)

func (t Type) Valid() bool {
	switch t {
	case TypeLawEnforcement, TypeFireRescue, TypeMedical, TypeDispatch, TypeStaff:
		return true
	}
	return false
}

// Department is the top-level organization. It owns ranks, teams, members
// and one identifier pool, and maps onto a single external community.
type Department struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"column:name;uniqueIndex;not null"`
	DeptType       Type      `json:"dept_type" gorm:"column:dept_type;not null"`
	CallsignPrefix string    `json:"callsign_prefix" gorm:"column:callsign_prefix;uniqueIndex;not null"`
	GuildID        string    `json:"guild_id" gorm:"column:guild_id;not null"`
	IsActive       bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Department) TableName() string {
	return "departments"
}

// Rank is a leveled position inside one department. RoleID is the external
// role this rank mirrors onto; it is unique across the whole system so a
// held role resolves to at most one rank.
type Rank struct {
	ID           int64       `json:"id" gorm:"primaryKey"`
	DepartmentID int64       `json:"department_id" gorm:"column:department_id;not null;index"`
	Name         string      `json:"name" gorm:"column:name;not null"`
	Designator   string      `json:"designator" gorm:"column:designator;not null"`
	Level        int         `json:"level" gorm:"column:level;not null"`
	RoleID       string      `json:"role_id" gorm:"column:role_id;uniqueIndex;not null"`
	MaxMembers   *int64      `json:"max_members,omitempty" gorm:"column:max_members"`
	Permissions  Permissions `json:"permissions" gorm:"column:permissions;type:jsonb"`
	CreatedAt    time.Time   `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time   `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Rank) TableName() string {
	return "ranks"
}

// Team is a sub-group of a department, optionally decorated with its own
// external role and callsign designator token.
type Team struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	DepartmentID   int64     `json:"department_id" gorm:"column:department_id;not null;index"`
	Name           string    `json:"name" gorm:"column:name;not null"`
	Designator     *string   `json:"designator,omitempty" gorm:"column:designator"`
	RoleID         *string   `json:"role_id,omitempty" gorm:"column:role_id"`
	LeaderMemberID *int64    `json:"leader_member_id,omitempty" gorm:"column:leader_member_id"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Team) TableName() string {
	return "teams"
}

// TeamRankLimit caps how many members of one rank a team may carry. When a
// row exists it replaces the rank's department-wide cap inside that team's
// scope; it is never unlimited.
type TeamRankLimit struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	TeamID     int64     `json:"team_id" gorm:"column:team_id;not null;uniqueIndex:idx_team_rank"`
	RankID     int64     `json:"rank_id" gorm:"column:rank_id;not null;uniqueIndex:idx_team_rank"`
	MaxMembers int64     `json:"max_members" gorm:"column:max_members;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
}

func (TeamRankLimit) TableName() string {
	return "team_rank_limits"
}

// PermissionsVersion is bumped whenever a field is added so stored JSON can
// be migrated knowingly.
const PermissionsVersion = 2

// Permissions is the closed permission record attached to a rank. Keeping
// named fields instead of an open map means every key referenced by the
// orchestrators exists at compile time.
type Permissions struct {
	Version        int  `json:"version"`
	ManageMembers  bool `json:"manage_members"`
	Promote        bool `json:"promote"`
	Demote         bool `json:"demote"`
	AssignTeams    bool `json:"assign_teams"`
	ManageTeams    bool `json:"manage_teams"`
	ManageRanks    bool `json:"manage_ranks"`
	BypassTraining bool `json:"bypass_training"`
	Discipline     bool `json:"discipline"`
	RemoveMembers  bool `json:"remove_members"`
}

// legacyPermissionKeys maps free-form keys found in imported data onto the
// closed fields. Unknown keys are dropped on ingestion.
var legacyPermissionKeys = map[string]string{
	"can_promote":        "promote",
	"promote_members":    "promote",
	"can_demote":         "demote",
	"demote_members":     "demote",
	"can_assign_team":    "assign_teams",
	"team_assignment":    "assign_teams",
	"can_manage_teams":   "manage_teams",
	"can_manage_ranks":   "manage_ranks",
	"skip_training":      "bypass_training",
	"can_discipline":     "discipline",
	"can_warn":           "discipline",
	"can_remove":         "remove_members",
	"terminate_members":  "remove_members",
	"can_manage_members": "manage_members",
	"roster_admin":       "manage_members",
}

// UnmarshalJSON accepts both the closed record and legacy free-form maps of
// named booleans, folding legacy keys onto their modern fields.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	type plain Permissions
	var direct plain
	if err := json.Unmarshal(data, &direct); err != nil {
		return err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Permissions(direct)
	for key, value := range raw {
		field, ok := legacyPermissionKeys[key]
		if !ok {
			continue
		}
		enabled, ok := value.(bool)
		if !ok || !enabled {
			continue
		}
		switch field {
		case "manage_members":
			p.ManageMembers = true
		case "promote":
			p.Promote = true
		case "demote":
			p.Demote = true
		case "assign_teams":
			p.AssignTeams = true
		case "manage_teams":
			p.ManageTeams = true
		case "manage_ranks":
			p.ManageRanks = true
		case "bypass_training":
			p.BypassTraining = true
		case "discipline":
			p.Discipline = true
		case "remove_members":
			p.RemoveMembers = true
		}
	}

	if p.Version == 0 {
		p.Version = PermissionsVersion
	}
	return nil
}

// Value implements driver.Valuer so Permissions persists as a JSON column.
func (p Permissions) Value() (driver.Value, error) {
	if p.Version == 0 {
		p.Version = PermissionsVersion
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(value interface{}) error {
	if value == nil {
		*p = Permissions{Version: PermissionsVersion}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported permissions column type %T", value)
	}
}

// Validate rejects structurally impossible records before persistence.
func (r *Rank) Validate() error {
	if r.Name == "" {
		return errors.New("rank name is required")
	}
	if r.Designator == "" {
		return errors.New("rank designator is required")
	}
	if r.Level < 0 {
		return errors.New("rank level cannot be negative")
	}
	if r.RoleID == "" {
		return errors.New("rank role reference is required")
	}
	if r.MaxMembers != nil && *r.MaxMembers < 1 {
		return errors.New("rank max members must be at least 1 when set")
	}
	return nil
}

func (l *TeamRankLimit) Validate() error {
	if l.MaxMembers < 1 {
		return errors.New("team rank limit must be at least 1")
	}
	return nil
}
