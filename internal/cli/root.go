package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions are the flags shared by every command.
type RootOptions struct {
	BatchSize int
	User      string
}

func NewRootCmd() *cobra.Command {
	opts := &RootOptions{}

	rootCmd := &cobra.Command{
		Use:   "salesimport",
		Short: "salesimport - bulk import of sales contracts and users",
		Long: `salesimport loads CSV/XLSX exports of contracts and users into the sales database.
Files are uploaded into an import session, mapped onto the internal schema,
executed in batches and can be undone as a whole.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().IntVarP(&opts.BatchSize, "batch-size", "b", 0, "Rows per batch (default IMPORT_BATCH_SIZE)")
	rootCmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "Id of the user running the import")

	rootCmd.AddCommand(
		newUploadCmd(opts),
		newUsersTemplateCmd(opts),
		newImportUsersCmd(opts),
		newExportCmd(opts),
		newRunCmd(opts),
		newUndoCmd(opts),
		newHistoryCmd(opts),
		newDetectCmd(),
		newTemplatesCmd(),
		NewMigrateCmd(),
	)

	return rootCmd
}
