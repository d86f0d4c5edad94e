package cli

import (
	"github.com/spf13/cobra"

	"github.com/BartekS5/salesimport/internal/config"
	"github.com/BartekS5/salesimport/pkg/database"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Relational schema migrations",
	}

	for _, c := range []struct {
		command string
		short   string
	}{
		{database.MigrateUp, "Apply all pending migrations"},
		{database.MigrateDown, "Roll back the latest migration"},
		{database.MigrateStatus, "Print the migration status"},
	} {
		command := c.command
		cmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, args []string) error {
				return runSchemaMigration(c, command)
			},
		})
	}
	return cmd
}

func runSchemaMigration(cmd *cobra.Command, command string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	sqlDB, err := database.ConnectSQL(cfg.SQLConnString)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.Migrate(cmd.Context(), sqlDB.DB, command)
}
