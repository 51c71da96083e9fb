package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/averhoeven/roster-management/internal/auth"
	authPostgres "github.com/averhoeven/roster-management/internal/auth/postgres"
	"github.com/averhoeven/roster-management/internal/callsign"
	credentialDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/credential"
	departmentDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/department"
	identifierDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/identifier"
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with a development department",
	Long: `Seed the database with one department, its rank ladder, two teams and a
bootstrap chief so the API is usable immediately. Also issues the relay
credential for the training bot and prints the clear key once.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		gormDB, err := openGorm(db)
		if err != nil {
			log.Fatalf("failed to open orm layer: %v", err)
		}

		if seedClear {
			clearRosterData(gormDB)
		}

		guildID := seedGuildID
		if guildID == "" {
			guildID = "1000000000000000001"
		}

		dept := seedDepartment(gormDB, guildID)
		ranks := seedRanks(gormDB, dept.ID)
		teams := seedTeams(gormDB, dept.ID)
		seedTeamLimits(gormDB, teams, ranks)
		seedChief(gormDB, dept, ranks["1"])
		seedRelayCredential(gormDB, dept.ID, cfg.Security.BCryptCost)

		fmt.Println("Roster seed complete for department:", dept.Name)
	},
}

// clearRosterData empties the roster tables in dependency order so the seed
// starts from a blank slate.
func clearRosterData(db *gorm.DB) {
	tables := []string{
		"promotion_history",
		"team_memberships",
		"identifier_slots",
		"members",
		"team_rank_limits",
		"teams",
		"ranks",
		"api_credentials",
		"departments",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("failed to clear table %s: %v", table, err)
		}
	}
	fmt.Println("Cleared existing roster data")
}

func seedDepartment(db *gorm.DB, guildID string) *departmentDatamodel.Department {
	dept := &departmentDatamodel.Department{}
	err := db.Where("callsign_prefix = ?", "PD").First(dept).Error
	if err == nil {
		fmt.Println("department already exists:", dept.Name)
		return dept
	}
	if err != gorm.ErrRecordNotFound {
		log.Fatalf("failed to look up department: %v", err)
	}

	dept = &departmentDatamodel.Department{
		Name:           "Police Department",
		DeptType:       departmentDatamodel.TypeLawEnforcement,
		CallsignPrefix: "PD",
		GuildID:        guildID,
		IsActive:       true,
	}
	if err := db.Create(dept).Error; err != nil {
		log.Fatalf("failed to seed department: %v", err)
	}
	fmt.Println("Seeded department:", dept.Name)
	return dept
}

// seedRanks builds the ladder top-down and returns the rows keyed by
// designator so later seed steps can reference them.
func seedRanks(db *gorm.DB, departmentID int64) map[string]*departmentDatamodel.Rank {
	one := int64(1)
	ladder := []*departmentDatamodel.Rank{
		{
			DepartmentID: departmentID,
			Name:         "Chief of Police",
			Designator:   "1",
			Level:        100,
			RoleID:       "2000000000000000001",
			MaxMembers:   &one,
			Permissions: departmentDatamodel.Permissions{
				ManageMembers:  true,
				Promote:        true,
				Demote:         true,
				AssignTeams:    true,
				ManageTeams:    true,
				ManageRanks:    true,
				BypassTraining: true,
				Discipline:     true,
				RemoveMembers:  true,
			},
		},
		{
			DepartmentID: departmentID,
			Name:         "Captain",
			Designator:   "2",
			Level:        80,
			RoleID:       "2000000000000000002",
			Permissions: departmentDatamodel.Permissions{
				ManageMembers:  true,
				Promote:        true,
				Demote:         true,
				AssignTeams:    true,
				ManageTeams:    true,
				BypassTraining: true,
				Discipline:     true,
				RemoveMembers:  true,
			},
		},
		{
			DepartmentID: departmentID,
			Name:         "Sergeant",
			Designator:   "3",
			Level:        50,
			RoleID:       "2000000000000000003",
			Permissions: departmentDatamodel.Permissions{
				Promote:     true,
				Demote:      true,
				AssignTeams: true,
				Discipline:  true,
			},
		},
		{
			DepartmentID: departmentID,
			Name:         "Officer",
			Designator:   "4",
			Level:        10,
			RoleID:       "2000000000000000004",
			Permissions:  departmentDatamodel.Permissions{},
		},
	}

	ranks := make(map[string]*departmentDatamodel.Rank, len(ladder))
	for _, rank := range ladder {
		existing := &departmentDatamodel.Rank{}
		err := db.Where("department_id = ? AND designator = ?", departmentID, rank.Designator).First(existing).Error
		if err == nil {
			ranks[rank.Designator] = existing
			continue
		}
		if err != gorm.ErrRecordNotFound {
			log.Fatalf("failed to look up rank %s: %v", rank.Name, err)
		}
		if err := db.Create(rank).Error; err != nil {
			log.Fatalf("failed to seed rank %s: %v", rank.Name, err)
		}
		fmt.Println("Seeded rank:", rank.Name)
		ranks[rank.Designator] = rank
	}
	return ranks
}

func seedTeams(db *gorm.DB, departmentID int64) map[string]*departmentDatamodel.Team {
	detective := "D"
	detectiveRole := "2000000000000000011"
	k9 := "K9"
	k9Role := "2000000000000000012"

	wanted := []*departmentDatamodel.Team{
		{DepartmentID: departmentID, Name: "Detective Bureau", Designator: &detective, RoleID: &detectiveRole},
		{DepartmentID: departmentID, Name: "K9 Unit", Designator: &k9, RoleID: &k9Role},
	}

	teams := make(map[string]*departmentDatamodel.Team, len(wanted))
	for _, team := range wanted {
		existing := &departmentDatamodel.Team{}
		err := db.Where("department_id = ? AND name = ?", departmentID, team.Name).First(existing).Error
		if err == nil {
			teams[team.Name] = existing
			continue
		}
		if err != gorm.ErrRecordNotFound {
			log.Fatalf("failed to look up team %s: %v", team.Name, err)
		}
		if err := db.Create(team).Error; err != nil {
			log.Fatalf("failed to seed team %s: %v", team.Name, err)
		}
		fmt.Println("Seeded team:", team.Name)
		teams[team.Name] = team
	}
	return teams
}

// seedTeamLimits caps the K9 unit at two sergeants, overriding the rank's
// department-wide cap inside that team.
func seedTeamLimits(db *gorm.DB, teams map[string]*departmentDatamodel.Team, ranks map[string]*departmentDatamodel.Rank) {
	k9 := teams["K9 Unit"]
	sergeant := ranks["3"]
	if k9 == nil || sergeant == nil {
		return
	}

	existing := &departmentDatamodel.TeamRankLimit{}
	err := db.Where("team_id = ? AND rank_id = ?", k9.ID, sergeant.ID).First(existing).Error
	if err == nil {
		return
	}
	if err != gorm.ErrRecordNotFound {
		log.Fatalf("failed to look up team limit: %v", err)
	}

	limit := &departmentDatamodel.TeamRankLimit{TeamID: k9.ID, RankID: sergeant.ID, MaxMembers: 2}
	if err := db.Create(limit).Error; err != nil {
		log.Fatalf("failed to seed team limit: %v", err)
	}
	fmt.Println("Seeded team rank limit: K9 Unit / Sergeant =", limit.MaxMembers)
}

// seedChief enrolls the bootstrap chief directly as active, holding the
// first identifier. Without an initial permission holder no actor could
// pass the route guards.
func seedChief(db *gorm.DB, dept *departmentDatamodel.Department, chiefRank *departmentDatamodel.Rank) {
	existing := &memberDatamodel.Member{}
	err := db.Where("department_id = ? AND rank_id = ? AND is_active = ?", dept.ID, chiefRank.ID, true).First(existing).Error
	if err == nil {
		fmt.Println("chief already enrolled:", existing.Callsign)
		return
	}
	if err != gorm.ErrRecordNotFound {
		log.Fatalf("failed to look up chief: %v", err)
	}

	number := identifierDatamodel.PoolFloor
	chief := &memberDatamodel.Member{
		DepartmentID:     dept.ID,
		PlatformUserID:   "3000000000000000001",
		DisplayName:      "Bootstrap Chief",
		IdentifierNumber: &number,
		Callsign:         callsign.Compose(chiefRank.Designator, dept.CallsignPrefix, &number, nil),
		RankID:           &chiefRank.ID,
		Status:           memberDatamodel.StatusActive,
		IsActive:         true,
		Version:          1,
		HiredAt:          time.Now().UTC(),
	}
	if err := db.Create(chief).Error; err != nil {
		log.Fatalf("failed to seed chief: %v", err)
	}

	slot := &identifierDatamodel.Slot{
		DepartmentID:   dept.ID,
		Number:         number,
		Available:      false,
		HolderMemberID: &chief.ID,
	}
	if err := db.Create(slot).Error; err != nil {
		log.Fatalf("failed to seed chief identifier slot: %v", err)
	}

	fmt.Println("Seeded chief:", chief.Callsign, "(member id", chief.ID, ")")
}

// seedRelayCredential issues the training bot's API key. The clear key is
// printed exactly once; afterwards only the hash exists.
func seedRelayCredential(db *gorm.DB, departmentID int64, bcryptCost int) {
	existing := &credentialDatamodel.APICredential{}
	err := db.Where("department_id = ? AND name = ?", departmentID, "training relay").First(existing).Error
	if err == nil {
		fmt.Println("relay credential already issued; keys are only shown at issue time")
		return
	}
	if err != gorm.ErrRecordNotFound {
		log.Fatalf("failed to look up relay credential: %v", err)
	}

	service := auth.NewService(authPostgres.NewCredentialRepository(db), bcryptCost, logger.LoggerWrapper())
	_, key, err := service.IssueCredential(departmentID, "training relay")
	if err != nil {
		log.Fatalf("failed to issue relay credential: %v", err)
	}

	fmt.Println("Issued relay credential (save this key, it is not shown again):")
	fmt.Println(" ", key)
}
