package reconcile

import (
	"errors"
	"strings"
)

// RoleWebhookDTO is the inbound notification that a platform user's roles
// changed. DepartmentID narrows the convergence to one department; when
// omitted every enrollment of the user is reconciled.
type RoleWebhookDTO struct {
	PlatformUserID string `json:"platform_user_id" validate:"required"`
	DepartmentID   *int64 `json:"department_id,omitempty"`
}

func (d *RoleWebhookDTO) Validate() error {
	d.PlatformUserID = strings.TrimSpace(d.PlatformUserID)
	if d.PlatformUserID == "" {
		return errors.New("platform_user_id is required")
	}
	if d.DepartmentID != nil && *d.DepartmentID <= 0 {
		return errors.New("department_id must be positive")
	}
	return nil
}
