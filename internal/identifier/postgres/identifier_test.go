package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/averhoeven/roster-management/internal"
	identifierDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/identifier"
	"github.com/averhoeven/roster-management/internal/identifier"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestIdentifierRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "IdentifierRepository Suite")
}

type SQLiteIdentifierSlot struct {
	ID                 int64     `gorm:"primaryKey"`
	DepartmentID       int64     `gorm:"column:department_id;not null;uniqueIndex:idx_dept_number"`
	Number             int       `gorm:"column:number;not null;uniqueIndex:idx_dept_number"`
	Available          bool      `gorm:"column:available;not null"`
	HolderMemberID     *int64    `gorm:"column:holder_member_id"`
	LastHolderMemberID *int64    `gorm:"column:last_holder_member_id"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (SQLiteIdentifierSlot) TableName() string {
	return "identifier_slots"
}

var _ = Describe("IdentifierRepository", func() {
	var (
		db   *gorm.DB
		repo identifier.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		// a shared in-memory database lives per connection, so writers
		// must share one
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		err = db.AutoMigrate(&SQLiteIdentifierSlot{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewIdentifierRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		err = sqlDB.Close()
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("ClaimLowestAvailable", func() {
		Context("when the pool is empty", func() {
			It("should create slot 100 already held by the member", func() {
				slot, err := repo.ClaimLowestAvailable(ctx, 1, 42)
				Expect(err).NotTo(HaveOccurred())
				Expect(slot.Number).To(Equal(100))
				Expect(slot.Available).To(BeFalse())
				Expect(slot.HolderMemberID).NotTo(BeNil())
				Expect(*slot.HolderMemberID).To(Equal(int64(42)))
			})

			It("should extend sequentially for consecutive claims", func() {
				first, err := repo.ClaimLowestAvailable(ctx, 1, 10)
				Expect(err).NotTo(HaveOccurred())
				second, err := repo.ClaimLowestAvailable(ctx, 1, 11)
				Expect(err).NotTo(HaveOccurred())

				Expect(first.Number).To(Equal(100))
				Expect(second.Number).To(Equal(101))
			})
		})

		Context("when released slots exist", func() {
			BeforeEach(func() {
				for _, n := range []int{100, 101, 102} {
					_, err := repo.ClaimLowestAvailable(ctx, 1, int64(n))
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(repo.Release(ctx, 1, 101)).To(Succeed())
			})

			It("should reuse the lowest released number instead of extending", func() {
				slot, err := repo.ClaimLowestAvailable(ctx, 1, 77)
				Expect(err).NotTo(HaveOccurred())
				Expect(slot.Number).To(Equal(101))
				Expect(*slot.HolderMemberID).To(Equal(int64(77)))
			})
		})

		Context("when the pool has reached the ceiling", func() {
			BeforeEach(func() {
				holder := int64(1)
				seeded := &identifierDatamodel.Slot{
					DepartmentID:   1,
					Number:         identifierDatamodel.PoolCeiling,
					Available:      false,
					HolderMemberID: &holder,
				}
				Expect(db.Create(seeded).Error).NotTo(HaveOccurred())
			})

			It("should fail with the pool exhausted error", func() {
				slot, err := repo.ClaimLowestAvailable(ctx, 1, 2)
				Expect(err).To(Equal(internal.ErrPoolExhausted))
				Expect(slot).To(BeNil())
			})
		})

		Context("when two departments share numbers", func() {
			It("should keep the pools independent", func() {
				first, err := repo.ClaimLowestAvailable(ctx, 1, 10)
				Expect(err).NotTo(HaveOccurred())
				second, err := repo.ClaimLowestAvailable(ctx, 2, 20)
				Expect(err).NotTo(HaveOccurred())

				Expect(first.Number).To(Equal(100))
				Expect(second.Number).To(Equal(100))
			})
		})

		Context("when many members join concurrently", func() {
			It("should never hand out the same number twice", func() {
				const joiners = 12

				var wg sync.WaitGroup
				numbers := make(chan int, joiners)
				for i := 0; i < joiners; i++ {
					wg.Add(1)
					go func(memberID int64) {
						defer wg.Done()
						defer GinkgoRecover()
						slot, err := repo.ClaimLowestAvailable(ctx, 1, memberID)
						Expect(err).NotTo(HaveOccurred())
						numbers <- slot.Number
					}(int64(i + 1))
				}
				wg.Wait()
				close(numbers)

				seen := make(map[int]bool)
				for n := range numbers {
					Expect(seen[n]).To(BeFalse(), "number %d allocated twice", n)
					seen[n] = true
				}
				Expect(seen).To(HaveLen(joiners))
			})
		})
	})

	Describe("Release", func() {
		var slot *identifierDatamodel.Slot

		BeforeEach(func() {
			var err error
			slot, err = repo.ClaimLowestAvailable(ctx, 1, 42)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should free the slot and remember the last holder", func() {
			err := repo.Release(ctx, 1, slot.Number)
			Expect(err).NotTo(HaveOccurred())

			reloaded, err := repo.GetByNumber(1, slot.Number)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Available).To(BeTrue())
			Expect(reloaded.HolderMemberID).To(BeNil())
			Expect(reloaded.LastHolderMemberID).NotTo(BeNil())
			Expect(*reloaded.LastHolderMemberID).To(Equal(int64(42)))
		})

		It("should reject releasing a slot that is already available", func() {
			Expect(repo.Release(ctx, 1, slot.Number)).To(Succeed())

			err := repo.Release(ctx, 1, slot.Number)
			Expect(err).To(Equal(internal.ErrSlotStateMismatch))
		})

		It("should reject releasing a slot that does not exist", func() {
			err := repo.Release(ctx, 1, 500)
			Expect(err).To(Equal(internal.ErrSlotStateMismatch))
		})
	})

	Describe("ListByDepartment", func() {
		It("should return the pool ordered by number", func() {
			for i := 0; i < 3; i++ {
				_, err := repo.ClaimLowestAvailable(ctx, 1, int64(i+1))
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(repo.Release(ctx, 1, 100)).To(Succeed())

			slots, err := repo.ListByDepartment(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(slots).To(HaveLen(3))
			Expect(slots[0].Number).To(Equal(100))
			Expect(slots[0].Available).To(BeTrue())
			Expect(slots[1].Number).To(Equal(101))
			Expect(slots[2].Number).To(Equal(102))
		})
	})
})
