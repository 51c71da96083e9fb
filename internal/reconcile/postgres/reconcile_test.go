package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/averhoeven/roster-management/internal"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/reconcile"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestReconcileRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ReconcileRepository Suite")
}

type SQLiteDepartment struct {
	ID             int64     `gorm:"primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	DeptType       string    `gorm:"column:dept_type;not null"`
	CallsignPrefix string    `gorm:"column:callsign_prefix;not null"`
	GuildID        string    `gorm:"column:guild_id;not null"`
	IsActive       bool      `gorm:"column:is_active"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (SQLiteDepartment) TableName() string {
	return "departments"
}

type SQLiteRank struct {
	ID           int64     `gorm:"primaryKey"`
	DepartmentID int64     `gorm:"column:department_id;not null"`
	Name         string    `gorm:"column:name;not null"`
	Designator   string    `gorm:"column:designator;not null"`
	Level        int       `gorm:"column:level;not null"`
	RoleID       string    `gorm:"column:role_id;not null"`
	MaxMembers   *int64    `gorm:"column:max_members"`
	Permissions  string    `gorm:"column:permissions"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (SQLiteRank) TableName() string {
	return "ranks"
}

type SQLiteMember struct {
	ID               int64      `gorm:"primaryKey"`
	DepartmentID     int64      `gorm:"column:department_id;not null"`
	PlatformUserID   string     `gorm:"column:platform_user_id;not null"`
	DisplayName      string     `gorm:"column:display_name"`
	Callsign         string     `gorm:"column:callsign"`
	Status           string     `gorm:"column:status;not null"`
	StatusReason     *string    `gorm:"column:status_reason"`
	RankID           *int64     `gorm:"column:rank_id"`
	TeamID           *int64     `gorm:"column:team_id"`
	IdentifierNumber *int       `gorm:"column:identifier_number"`
	IsActive         bool       `gorm:"column:is_active"`
	Version          int64      `gorm:"column:version;not null"`
	HiredAt          time.Time  `gorm:"column:hired_at"`
	LastSeenAt       *time.Time `gorm:"column:last_seen_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (SQLiteMember) TableName() string {
	return "members"
}

type SQLitePromotionHistory struct {
	ID            int64     `gorm:"primaryKey"`
	MemberID      int64     `gorm:"column:member_id;not null"`
	DepartmentID  int64     `gorm:"column:department_id;not null"`
	FromRankID    *int64    `gorm:"column:from_rank_id"`
	ToRankID      *int64    `gorm:"column:to_rank_id"`
	Source        string    `gorm:"column:source;not null"`
	ActorMemberID *int64    `gorm:"column:actor_member_id"`
	Reason        *string   `gorm:"column:reason"`
	OccurredAt    time.Time `gorm:"column:occurred_at"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (SQLitePromotionHistory) TableName() string {
	return "promotion_history"
}

var _ = Describe("ReconcileRepository", func() {
	var (
		db   *gorm.DB
		repo reconcile.Repository
		ctx  context.Context
	)

	seedMember := func(departmentID int64, platformUserID string, rankID *int64, active bool) *memberDatamodel.Member {
		m := &memberDatamodel.Member{
			DepartmentID:   departmentID,
			PlatformUserID: platformUserID,
			Callsign:       "4PD-100",
			Status:         memberDatamodel.StatusActive,
			RankID:         rankID,
			IsActive:       active,
			Version:        1,
			HiredAt:        time.Now().UTC(),
		}
		Expect(db.Create(m).Error).To(Succeed())
		return m
	}

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		// a shared in-memory database lives per connection, so writers
		// must share one
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		err = db.AutoMigrate(
			&SQLiteDepartment{},
			&SQLiteRank{},
			&SQLiteMember{},
			&SQLitePromotionHistory{},
		)
		Expect(err).NotTo(HaveOccurred())

		repo = NewReconcileRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("ListActiveByPlatformUser", func() {
		It("finds every active enrollment of the user", func() {
			seedMember(1, "user-9", nil, true)
			seedMember(2, "user-9", nil, true)
			seedMember(1, "user-9", nil, false)
			seedMember(1, "user-other", nil, true)

			members, err := repo.ListActiveByPlatformUser("user-9", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(HaveLen(2))
		})

		It("narrows to one department when asked", func() {
			seedMember(1, "user-9", nil, true)
			seedMember(2, "user-9", nil, true)

			departmentID := int64(2)
			members, err := repo.ListActiveByPlatformUser("user-9", &departmentID)

			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(HaveLen(1))
			Expect(members[0].DepartmentID).To(Equal(int64(2)))
		})
	})

	Describe("ListRanks", func() {
		It("returns the department ladder highest level first", func() {
			Expect(db.Create(&SQLiteRank{DepartmentID: 1, Name: "Officer", Designator: "4", Level: 10, RoleID: "role-ofc", Permissions: "{}"}).Error).To(Succeed())
			Expect(db.Create(&SQLiteRank{DepartmentID: 1, Name: "Chief", Designator: "1", Level: 100, RoleID: "role-chief", Permissions: "{}"}).Error).To(Succeed())
			Expect(db.Create(&SQLiteRank{DepartmentID: 2, Name: "Captain", Designator: "2", Level: 80, RoleID: "role-cpt", Permissions: "{}"}).Error).To(Succeed())

			ranks, err := repo.ListRanks(1)

			Expect(err).NotTo(HaveOccurred())
			Expect(ranks).To(HaveLen(2))
			Expect(ranks[0].Name).To(Equal("Chief"))
			Expect(ranks[1].Name).To(Equal("Officer"))
		})
	})

	Describe("ApplyRankChange", func() {
		It("updates the member and appends the history entry together", func() {
			m := seedMember(1, "user-9", nil, true)
			toRankID := int64(3)
			entry := &memberDatamodel.PromotionHistoryEntry{
				MemberID:     m.ID,
				DepartmentID: 1,
				ToRankID:     &toRankID,
				Source:       memberDatamodel.HistorySourceReconciliation,
				OccurredAt:   time.Now().UTC(),
			}

			err := repo.ApplyRankChange(ctx, m, &toRankID, "3PD-100", entry)

			Expect(err).NotTo(HaveOccurred())
			Expect(*m.RankID).To(Equal(toRankID))
			Expect(m.Callsign).To(Equal("3PD-100"))
			Expect(m.Version).To(Equal(int64(2)))

			var stored memberDatamodel.Member
			Expect(db.First(&stored, m.ID).Error).To(Succeed())
			Expect(*stored.RankID).To(Equal(toRankID))
			Expect(stored.Version).To(Equal(int64(2)))

			var count int64
			Expect(db.Model(&memberDatamodel.PromotionHistoryEntry{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("clears the rank column when converging to unranked", func() {
			rankID := int64(3)
			m := seedMember(1, "user-9", &rankID, true)
			entry := &memberDatamodel.PromotionHistoryEntry{
				MemberID:     m.ID,
				DepartmentID: 1,
				FromRankID:   &rankID,
				Source:       memberDatamodel.HistorySourceReconciliation,
				OccurredAt:   time.Now().UTC(),
			}

			err := repo.ApplyRankChange(ctx, m, nil, "0PD-100", entry)

			Expect(err).NotTo(HaveOccurred())
			Expect(m.RankID).To(BeNil())

			var stored memberDatamodel.Member
			Expect(db.First(&stored, m.ID).Error).To(Succeed())
			Expect(stored.RankID).To(BeNil())
			Expect(stored.Callsign).To(Equal("0PD-100"))
		})

		It("rolls the history back on a version conflict", func() {
			m := seedMember(1, "user-9", nil, true)
			toRankID := int64(3)
			entry := &memberDatamodel.PromotionHistoryEntry{
				MemberID:     m.ID,
				DepartmentID: 1,
				ToRankID:     &toRankID,
				Source:       memberDatamodel.HistorySourceReconciliation,
				OccurredAt:   time.Now().UTC(),
			}

			Expect(db.Model(&memberDatamodel.Member{}).
				Where("id = ?", m.ID).
				Update("version", m.Version+1).Error).To(Succeed())

			err := repo.ApplyRankChange(ctx, m, &toRankID, "3PD-100", entry)

			Expect(err).To(Equal(internal.ErrStaleMember))

			var count int64
			Expect(db.Model(&memberDatamodel.PromotionHistoryEntry{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})
	})
})
