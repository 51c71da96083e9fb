package identifier

import (
	"context"
	"log/slog"

	identifierDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/identifier"
)

// Repository defines the data access methods for identifier slots
type Repository interface {
	ClaimLowestAvailable(ctx context.Context, departmentID, holderMemberID int64) (*identifierDatamodel.Slot, error)
	Release(ctx context.Context, departmentID int64, number int) error
	GetByNumber(departmentID int64, number int) (*identifierDatamodel.Slot, error)
	ListByDepartment(departmentID int64) ([]*identifierDatamodel.Slot, error)
}

// Service manages the per-department identifier pool. Numbers are scarce
// (100-999) and reused forever, so allocation always prefers the lowest
// released slot before extending the pool.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Allocate claims the lowest available identifier for the member. The claim
// happens inside one repository transaction so two concurrent joins can
// never end up holding the same number.
func (s *Service) Allocate(ctx context.Context, departmentID, memberID int64) (*identifierDatamodel.Slot, error) {
	slot, err := s.repo.ClaimLowestAvailable(ctx, departmentID, memberID)
	if err != nil {
		s.logger.Error("identifier allocation failed",
			"department_id", departmentID,
			"member_id", memberID,
			"error", err)
		return nil, err
	}

	s.logger.Info("identifier allocated",
		"department_id", departmentID,
		"member_id", memberID,
		"number", slot.Number)
	return slot, nil
}

// Release returns a held identifier to the pool. The number itself is never
// retired; the previous holder stays recorded for audits.
func (s *Service) Release(ctx context.Context, departmentID int64, number int) error {
	if err := s.repo.Release(ctx, departmentID, number); err != nil {
		s.logger.Error("identifier release failed",
			"department_id", departmentID,
			"number", number,
			"error", err)
		return err
	}

	s.logger.Info("identifier released",
		"department_id", departmentID,
		"number", number)
	return nil
}

// Pool returns every slot the department has ever created, held or free.
func (s *Service) Pool(departmentID int64) ([]*identifierDatamodel.Slot, error) {
	slots, err := s.repo.ListByDepartment(departmentID)
	if err != nil {
		s.logger.Error("failed to list identifier pool",
			"department_id", departmentID,
			"error", err)
		return nil, err
	}
	return slots, nil
}
