package roster

import (
	"errors"
	"strings"

	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
)

// JoinDTO represents the request payload for enrolling a new member
type JoinDTO struct {
	PlatformUserID string `json:"platform_user_id" validate:"required"`
	DisplayName    string `json:"display_name" validate:"required"`
}

// Validate validates the JoinDTO
func (dto JoinDTO) Validate() error {
	if dto.PlatformUserID == "" {
		return errors.New("platform user id is required")
	}
	if strings.TrimSpace(dto.DisplayName) == "" {
		return errors.New("display name is required")
	}
	return nil
}

// AssignTeamDTO represents the request payload for a primary team change
type AssignTeamDTO struct {
	TeamID int64 `json:"team_id" validate:"required"`
}

// Validate validates the AssignTeamDTO
func (dto AssignTeamDTO) Validate() error {
	if dto.TeamID <= 0 {
		return errors.New("team id is required")
	}
	return nil
}

// ChangeStatusDTO represents the request payload for a status transition.
// Disciplinary targets always require a reason.
type ChangeStatusDTO struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason,omitempty"`
}

// Validate validates the ChangeStatusDTO
func (dto ChangeStatusDTO) Validate() error {
	if dto.Status == "" {
		return errors.New("status is required")
	}
	if !memberDatamodel.Status(dto.Status).Valid() {
		return errors.New("unknown status")
	}
	if memberDatamodel.Status(dto.Status).Disciplinary() {
		if dto.Reason == nil || strings.TrimSpace(*dto.Reason) == "" {
			return errors.New("a reason is required for disciplinary status changes")
		}
	}
	return nil
}

// RemoveDTO represents the request payload for soft removal
type RemoveDTO struct {
	Reason *string `json:"reason,omitempty"`
}
