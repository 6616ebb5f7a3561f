package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/cpq/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply local state database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "show migration status without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.StateDBURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if status, _ := cmd.Flags().GetBool("status"); !status {
		if err := db.MigrateUp(database); err != nil {
			return err
		}
	}

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		state, at := "pending", "-"
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = *s.AppliedAt
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, state, at)
	}
	return w.Flush()
}
