package promotion

import (
	"errors"
	"strings"
)

// ChangeRankDTO carries a promotion or demotion request. Reason is optional
// on promotion; the service insists on it for demotion.
type ChangeRankDTO struct {
	ToRankID int64  `json:"to_rank_id" validate:"required"`
	Reason   string `json:"reason,omitempty"`
}

func (dto *ChangeRankDTO) Validate() error {
	if dto.ToRankID <= 0 {
		return errors.New("to_rank_id is required")
	}
	dto.Reason = strings.TrimSpace(dto.Reason)
	return nil
}
