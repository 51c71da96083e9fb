package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/averhoeven/roster-management/internal"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/roster"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMemberRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MemberRepository Suite")
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

type SQLiteTeam struct {
	ID             int64     `gorm:"primaryKey"`
	DepartmentID   int64     `gorm:"column:department_id;not null"`
	Name           string    `gorm:"column:name;not null"`
	Designator     *string   `gorm:"column:designator"`
	RoleID         *string   `gorm:"column:role_id"`
	LeaderMemberID *int64    `gorm:"column:leader_member_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (SQLiteTeam) TableName() string {
	return "teams"
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

type SQLiteTeamMembership struct {
	ID        int64     `gorm:"primaryKey"`
	MemberID  int64     `gorm:"column:member_id;not null"`
	TeamID    int64     `gorm:"column:team_id;not null"`
	JoinedAt  time.Time `gorm:"column:joined_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (SQLiteTeamMembership) TableName() string {
	return "team_memberships"
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

var _ = Describe("MemberRepository", func() {
	var (
		db   *gorm.DB
		repo roster.Repository
		ctx  context.Context
	)

	newMember := func(platformUserID string) *memberDatamodel.Member {
		return &memberDatamodel.Member{
			DepartmentID:   1,
			PlatformUserID: platformUserID,
			DisplayName:    "Test Member",
			Callsign:       "0PD-100",
			Status:         memberDatamodel.StatusInTraining,
			IsActive:       true,
			Version:        1,
			HiredAt:        time.Now().UTC(),
		}
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
			&SQLiteTeam{},
			&SQLiteMember{},
			&SQLiteTeamMembership{},
			&SQLitePromotionHistory{},
		)
		Expect(err).NotTo(HaveOccurred())

		repo = NewMemberRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("member rows", func() {
		It("creates and reads a member back", func() {
			m := newMember("user-1")
			Expect(repo.CreateMember(m)).To(Succeed())
			Expect(m.ID).NotTo(BeZero())

			got, err := repo.GetMember(m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PlatformUserID).To(Equal("user-1"))
			Expect(got.Status).To(Equal(memberDatamodel.StatusInTraining))
			Expect(got.Version).To(Equal(int64(1)))
		})

		It("returns nil for an unknown member", func() {
			got, err := repo.GetMember(9999)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("hard-deletes a member row", func() {
			m := newMember("user-1")
			Expect(repo.CreateMember(m)).To(Succeed())

			Expect(repo.DeleteMember(m.ID)).To(Succeed())

			got, err := repo.GetMember(m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("lists members of one department in insertion order", func() {
			first := newMember("user-1")
			second := newMember("user-2")
			other := newMember("user-3")
			other.DepartmentID = 2
			Expect(repo.CreateMember(first)).To(Succeed())
			Expect(repo.CreateMember(second)).To(Succeed())
			Expect(repo.CreateMember(other)).To(Succeed())

			members, err := repo.ListMembers(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(HaveLen(2))
			Expect(members[0].ID).To(Equal(first.ID))
			Expect(members[1].ID).To(Equal(second.ID))
		})
	})

	Describe("GetActiveByPlatformUser", func() {
		It("finds only the active membership", func() {
			removed := newMember("user-1")
			removed.IsActive = false
			Expect(repo.CreateMember(removed)).To(Succeed())

			got, err := repo.GetActiveByPlatformUser(1, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())

			active := newMember("user-1")
			Expect(repo.CreateMember(active)).To(Succeed())

			got, err = repo.GetActiveByPlatformUser(1, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ID).To(Equal(active.ID))
		})

		It("scopes the lookup to the department", func() {
			m := newMember("user-1")
			Expect(repo.CreateMember(m)).To(Succeed())

			got, err := repo.GetActiveByPlatformUser(2, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("UpdateMemberCAS", func() {
		It("applies the fields and advances the version", func() {
			m := newMember("user-1")
			Expect(repo.CreateMember(m)).To(Succeed())

			err := repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
				"status":   memberDatamodel.StatusPending,
				"callsign": "0PD-101",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Version).To(Equal(int64(2)))

			got, err := repo.GetMember(m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(memberDatamodel.StatusPending))
			Expect(got.Callsign).To(Equal("0PD-101"))
			Expect(got.Version).To(Equal(int64(2)))
		})

		It("clears nullable columns", func() {
			m := newMember("user-1")
			number := 150
			m.IdentifierNumber = &number
			Expect(repo.CreateMember(m)).To(Succeed())

			err := repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
				"identifier_number": nil,
				"is_active":         false,
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.GetMember(m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IdentifierNumber).To(BeNil())
			Expect(got.IsActive).To(BeFalse())
		})

		It("rejects a write against a moved version", func() {
			m := newMember("user-1")
			Expect(repo.CreateMember(m)).To(Succeed())

			err := db.Model(&memberDatamodel.Member{}).
				Where("id = ?", m.ID).
				Update("version", m.Version+1).Error
			Expect(err).NotTo(HaveOccurred())

			err = repo.UpdateMemberCAS(ctx, m, map[string]interface{}{
				"status": memberDatamodel.StatusPending,
			})
			Expect(err).To(Equal(internal.ErrStaleMember))

			got, getErr := repo.GetMember(m.ID)
			Expect(getErr).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(memberDatamodel.StatusInTraining))
		})
	})

	Describe("EnsureTeamMembership", func() {
		It("records the association once", func() {
			Expect(repo.EnsureTeamMembership(ctx, 10, 20)).To(Succeed())

			var first memberDatamodel.TeamMembership
			Expect(db.Where("member_id = ? AND team_id = ?", 10, 20).First(&first).Error).To(Succeed())

			Expect(repo.EnsureTeamMembership(ctx, 10, 20)).To(Succeed())

			var count int64
			Expect(db.Model(&memberDatamodel.TeamMembership{}).
				Where("member_id = ? AND team_id = ?", 10, 20).
				Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))

			var kept memberDatamodel.TeamMembership
			Expect(db.Where("member_id = ? AND team_id = ?", 10, 20).First(&kept).Error).To(Succeed())
			Expect(kept.JoinedAt.Unix()).To(Equal(first.JoinedAt.Unix()))
		})

		It("keeps one row per member and team pair", func() {
			Expect(repo.EnsureTeamMembership(ctx, 10, 20)).To(Succeed())
			Expect(repo.EnsureTeamMembership(ctx, 10, 21)).To(Succeed())

			var count int64
			Expect(db.Model(&memberDatamodel.TeamMembership{}).
				Where("member_id = ?", 10).
				Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(2)))
		})
	})

	Describe("supporting lookups", func() {
		It("reads rank permissions from stored JSON", func() {
			seed := SQLiteRank{
				DepartmentID: 1,
				Name:         "Sergeant",
				Designator:   "3",
				Level:        50,
				RoleID:       "role-sgt",
				Permissions:  `{"version":2,"manage_members":true,"discipline":true}`,
			}
			Expect(db.Create(&seed).Error).To(Succeed())

			rank, err := repo.GetRank(seed.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rank.Permissions.ManageMembers).To(BeTrue())
			Expect(rank.Permissions.Discipline).To(BeTrue())
			Expect(rank.Permissions.Promote).To(BeFalse())
		})

		It("returns nil for unknown departments, ranks and teams", func() {
			dept, err := repo.GetDepartment(9999)
			Expect(err).NotTo(HaveOccurred())
			Expect(dept).To(BeNil())

			rank, err := repo.GetRank(9999)
			Expect(err).NotTo(HaveOccurred())
			Expect(rank).To(BeNil())

			team, err := repo.GetTeam(9999)
			Expect(err).NotTo(HaveOccurred())
			Expect(team).To(BeNil())
		})
	})

	Describe("AppendHistory", func() {
		It("appends an audit row", func() {
			rankID := int64(5)
			actorID := int64(7)
			entry := &memberDatamodel.PromotionHistoryEntry{
				MemberID:      3,
				DepartmentID:  1,
				FromRankID:    &rankID,
				ToRankID:      &rankID,
				Source:        memberDatamodel.HistorySourceRestore,
				ActorMemberID: &actorID,
				OccurredAt:    time.Now().UTC(),
			}
			Expect(repo.AppendHistory(entry)).To(Succeed())
			Expect(entry.ID).NotTo(BeZero())

			var count int64
			Expect(db.Model(&memberDatamodel.PromotionHistoryEntry{}).
				Where("member_id = ?", 3).
				Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})
})
