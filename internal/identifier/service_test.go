package identifier_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/averhoeven/roster-management/internal"
	identifierDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/identifier"
	"github.com/averhoeven/roster-management/internal/identifier"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIdentifierService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Identifier Service Suite")
}

// MockRepository implements identifier.Repository for testing
type MockRepository struct {
	slots      map[int]*identifierDatamodel.Slot
	next       int
	shouldFail bool
	failError  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		slots: make(map[int]*identifierDatamodel.Slot),
		next:  identifierDatamodel.PoolFloor,
	}
}

func (m *MockRepository) ClaimLowestAvailable(ctx context.Context, departmentID, holderMemberID int64) (*identifierDatamodel.Slot, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	for n := identifierDatamodel.PoolFloor; n < m.next; n++ {
		if slot, ok := m.slots[n]; ok && slot.Available {
			slot.Available = false
			slot.HolderMemberID = &holderMemberID
			return slot, nil
		}
	}
	if m.next > identifierDatamodel.PoolCeiling {
		return nil, internal.ErrPoolExhausted
	}
	slot := &identifierDatamodel.Slot{
		ID:             int64(m.next),
		DepartmentID:   departmentID,
		Number:         m.next,
		Available:      false,
		HolderMemberID: &holderMemberID,
	}
	m.slots[m.next] = slot
	m.next++
	return slot, nil
}

func (m *MockRepository) Release(ctx context.Context, departmentID int64, number int) error {
	if m.shouldFail {
		return m.failError
	}
	slot, ok := m.slots[number]
	if !ok || slot.Available {
		return internal.ErrSlotStateMismatch
	}
	slot.Available = true
	slot.LastHolderMemberID = slot.HolderMemberID
	slot.HolderMemberID = nil
	return nil
}

func (m *MockRepository) GetByNumber(departmentID int64, number int) (*identifierDatamodel.Slot, error) {
	slot, ok := m.slots[number]
	if !ok {
		return nil, internal.ErrSlotNotFound
	}
	return slot, nil
}

func (m *MockRepository) ListByDepartment(departmentID int64) ([]*identifierDatamodel.Slot, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var result []*identifierDatamodel.Slot
	for n := identifierDatamodel.PoolFloor; n < m.next; n++ {
		if slot, ok := m.slots[n]; ok {
			result = append(result, slot)
		}
	}
	return result, nil
}

func (m *MockRepository) SetShouldFail(shouldFail bool, err error) {
	m.shouldFail = shouldFail
	m.failError = err
}

var _ = Describe("Identifier Service", func() {
	var (
		mockRepo *MockRepository
		service  *identifier.Service
		ctx      context.Context
	)

	BeforeEach(func() {
		mockRepo = NewMockRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = identifier.NewService(mockRepo, logger)
		ctx = context.Background()
	})

	Describe("Allocate", func() {
		It("should hand out the claimed slot", func() {
			slot, err := service.Allocate(ctx, 1, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(slot.Number).To(Equal(100))
			Expect(*slot.HolderMemberID).To(Equal(int64(42)))
		})

		It("should reuse released numbers before extending", func() {
			first, err := service.Allocate(ctx, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Allocate(ctx, 1, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Release(ctx, 1, first.Number)).To(Succeed())

			slot, err := service.Allocate(ctx, 1, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(slot.Number).To(Equal(first.Number))
		})

		Context("when the repository fails", func() {
			BeforeEach(func() {
				mockRepo.SetShouldFail(true, errors.New("database error"))
			})

			It("should surface the error", func() {
				slot, err := service.Allocate(ctx, 1, 42)
				Expect(err).To(HaveOccurred())
				Expect(slot).To(BeNil())
			})
		})
	})

	Describe("Release", func() {
		It("should reject releasing an unheld number", func() {
			err := service.Release(ctx, 1, 100)
			Expect(err).To(Equal(internal.ErrSlotStateMismatch))
		})
	})

	Describe("Pool", func() {
		It("should list every slot the department created", func() {
			_, err := service.Allocate(ctx, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Allocate(ctx, 1, 2)
			Expect(err).NotTo(HaveOccurred())

			slots, err := service.Pool(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(slots).To(HaveLen(2))
		})
	})
})
