package cmd

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/averhoeven/roster-management/internal/auth"
	authPostgres "github.com/averhoeven/roster-management/internal/auth/postgres"
	credentialDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/credential"
	"github.com/averhoeven/roster-management/pkg/logger"

	"github.com/spf13/cobra"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage API credentials for relay services",
	Long: `Issue and list the API credentials that relay services (training
bots, webhook forwarders) use to call the credential-scoped endpoints.`,
}

var credentialIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a new API credential",
	Long: `Issue a new API credential bound to one department. The clear key is
printed exactly once; only its hash is stored.`,
	Run: func(cmd *cobra.Command, args []string) {
		issueCredential()
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued API credentials",
	Run: func(cmd *cobra.Command, args []string) {
		listCredentials()
	},
}

var (
	credentialDepartmentID int64
	credentialName         string
)

func newCredentialService() *auth.Service {
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
	return auth.NewService(authPostgres.NewCredentialRepository(gormDB), cfg.Security.BCryptCost, logger.LoggerWrapper())
}

func issueCredential() {
	if credentialDepartmentID <= 0 || credentialName == "" {
		log.Fatal("both --department and --name are required")
	}

	service := newCredentialService()
	credential, key, err := service.IssueCredential(credentialDepartmentID, credentialName)
	if err != nil {
		log.Fatalf("failed to issue credential: %v", err)
	}

	fmt.Println("Issued credential", credential.Name, "for department", credential.DepartmentID)
	fmt.Println("API key (save this now, it is not shown again):")
	fmt.Println(" ", key)
}

func listCredentials() {
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

	var credentials []credentialDatamodel.APICredential
	if err := gormDB.Order("department_id, name").Find(&credentials).Error; err != nil {
		log.Fatalf("failed to list credentials: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEPARTMENT\tNAME\tPREFIX\tACTIVE\tLAST USED")
	for _, c := range credentials {
		lastUsed := "never"
		if c.LastUsedAt != nil {
			lastUsed = c.LastUsedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%t\t%s\n", c.ID, c.DepartmentID, c.Name, c.KeyPrefix, c.IsActive, lastUsed)
	}
	w.Flush()
}

func init() {
	credentialIssueCmd.Flags().Int64Var(&credentialDepartmentID, "department", 0, "Department id the credential is bound to")
	credentialIssueCmd.Flags().StringVar(&credentialName, "name", "", "Human readable credential name")

	credentialCmd.AddCommand(credentialIssueCmd)
	credentialCmd.AddCommand(credentialListCmd)
}
