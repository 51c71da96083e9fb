package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/averhoeven/roster-management/internal"
	identifierDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/identifier"
	"github.com/averhoeven/roster-management/internal/identifier"
	"gorm.io/gorm"
)

// maxClaimScans bounds how often a claim rescans after losing the chosen
// slot to a concurrent transaction.
const maxClaimScans = 4

// IdentifierRepository implements the identifier.Repository interface using GORM
type IdentifierRepository struct {
	db *gorm.DB
}

// NewIdentifierRepository creates a new identifier repository
func NewIdentifierRepository(db *gorm.DB) identifier.Repository {
	return &IdentifierRepository{db: db}
}

// ClaimLowestAvailable picks the lowest free slot and flips it to held in
// the same transaction. The claim is a conditional update on
// available=true, so a transaction that loses the race sees zero affected
// rows and rescans. When the pool has no free slot it grows by one number,
// starting at 100 and refusing to pass 999.
func (r *IdentifierRepository) ClaimLowestAvailable(ctx context.Context, departmentID, holderMemberID int64) (*identifierDatamodel.Slot, error) {
	var claimed *identifierDatamodel.Slot

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for attempt := 0; attempt < maxClaimScans; attempt++ {
			var slot identifierDatamodel.Slot
			err := tx.Where("department_id = ? AND available = ?", departmentID, true).
				Order("number ASC").
				First(&slot).Error
			if err == gorm.ErrRecordNotFound {
				fresh, extendErr := r.extendPool(tx, departmentID, holderMemberID)
				if extendErr != nil {
					return extendErr
				}
				claimed = fresh
				return nil
			}
			if err != nil {
				return err
			}

			res := tx.Model(&identifierDatamodel.Slot{}).
				Where("id = ? AND available = ?", slot.ID, true).
				Updates(map[string]interface{}{
					"available":        false,
					"holder_member_id": holderMemberID,
					"updated_at":       time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				slot.Available = false
				slot.HolderMemberID = &holderMemberID
				claimed = &slot
				return nil
			}
			// lost the slot to a concurrent claim, scan again
		}
		return internal.NewInternalError("identifier pool claim kept losing to concurrent allocations", nil)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// extendPool inserts the next sequential number as an already-held slot.
// The unique index on (department_id, number) rejects a concurrent extend
// that computed the same number.
func (r *IdentifierRepository) extendPool(tx *gorm.DB, departmentID, holderMemberID int64) (*identifierDatamodel.Slot, error) {
	var max sql.NullInt64
	err := tx.Model(&identifierDatamodel.Slot{}).
		Where("department_id = ?", departmentID).
		Select("MAX(number)").
		Scan(&max).Error
	if err != nil {
		return nil, err
	}

	next := identifierDatamodel.PoolFloor
	if max.Valid {
		next = int(max.Int64) + 1
	}
	if next > identifierDatamodel.PoolCeiling {
		return nil, internal.ErrPoolExhausted
	}

	slot := &identifierDatamodel.Slot{
		DepartmentID:   departmentID,
		Number:         next,
		Available:      false,
		HolderMemberID: &holderMemberID,
	}
	if err := tx.Create(slot).Error; err != nil {
		return nil, err
	}
	return slot, nil
}

// Release marks a held slot available again, moving the holder reference
// into last_holder_member_id. Releasing a slot that is not held is a state
// mismatch, not a no-op.
func (r *IdentifierRepository) Release(ctx context.Context, departmentID int64, number int) error {
	res := r.db.WithContext(ctx).Model(&identifierDatamodel.Slot{}).
		Where("department_id = ? AND number = ? AND available = ?", departmentID, number, false).
		Updates(map[string]interface{}{
			"available":             true,
			"last_holder_member_id": gorm.Expr("holder_member_id"),
			"holder_member_id":      nil,
			"updated_at":            time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrSlotStateMismatch
	}
	return nil
}

// GetByNumber retrieves one slot by department and number
func (r *IdentifierRepository) GetByNumber(departmentID int64, number int) (*identifierDatamodel.Slot, error) {
	var slot identifierDatamodel.Slot
	err := r.db.Where("department_id = ? AND number = ?", departmentID, number).First(&slot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrSlotNotFound
		}
		return nil, err
	}
	return &slot, nil
}

// ListByDepartment returns the whole pool ordered by number
func (r *IdentifierRepository) ListByDepartment(departmentID int64) ([]*identifierDatamodel.Slot, error) {
	var slots []*identifierDatamodel.Slot
	err := r.db.Where("department_id = ?", departmentID).
		Order("number ASC").
		Find(&slots).Error
	return slots, err
}
