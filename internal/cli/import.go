package cli

import (
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/BartekS5/salesimport/internal/config"
	"github.com/BartekS5/salesimport/internal/detect"
	"github.com/BartekS5/salesimport/internal/importer"
	"github.com/BartekS5/salesimport/internal/templates"
)

func newUploadCmd(root *RootOptions) *cobra.Command {
	var template, delimiter, mappingOut string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Store a CSV/XLSX file in a new import session and suggest a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			in, closeIn, err := openInput(args[0], delimiter, a.user)
			if err != nil {
				return err
			}
			defer closeIn()
			in.Template = template

			p, err := a.wizard.Upload(cmd.Context(), in)
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), p)
			if mappingOut != "" {
				return writeJSON(mappingOut, p.SuggestedMappings)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", templates.ContractDashboard, "Import template name")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "CSV delimiter: ',', ';' or tab (detected when empty)")
	cmd.Flags().StringVarP(&mappingOut, "mapping-out", "m", "", "Write the suggested mapping as JSON to this file")
	return cmd
}

func newUsersTemplateCmd(root *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "users-template <uploadId>",
		Short: "Write the users found in an upload as a CSV to be completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			w, closeOut, err := createOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeOut()

			n, err := a.wizard.UsersTemplate(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d users written\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	return cmd
}

func newImportUsersCmd(root *RootOptions) *cobra.Command {
	var delimiter string

	cmd := &cobra.Command{
		Use:   "import-users <uploadId> <file>",
		Short: "Import the completed users file for an upload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			in, closeIn, err := openInput(args[1], delimiter, a.user)
			if err != nil {
				return err
			}
			defer closeIn()

			res, err := a.wizard.ImportUsers(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "CSV delimiter: ',', ';' or tab (detected when empty)")
	return cmd
}

func newExportCmd(root *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <uploadId>",
		Short: "Export the uploaded rows enriched with user emails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			w, closeOut, err := createOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeOut()

			n, err := a.wizard.ExportEnriched(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d rows exported\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	return cmd
}

func newRunCmd(root *RootOptions) *cobra.Command {
	var mappingFile string
	var opts importer.Options

	cmd := &cobra.Command{
		Use:   "run <uploadId>",
		Short: "Confirm the mapping and execute the import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := config.LoadMapping(mappingFile)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.wizard.Execute(cmd.Context(), args[0], mapping, opts)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "Path to the JSON mapping (source column -> target field)")
	cmd.Flags().StringVar(&opts.DateFormat, "date-format", "", "Preferred date format, e.g. DD/MM/YYYY")
	cmd.Flags().BoolVar(&opts.SkipMissingContractNumber, "skip-missing-contract-number", false, "Skip dashboard rows without a contract number")
	cmd.Flags().BoolVar(&opts.AllowAutoCreateGroups, "auto-create-groups", false, "Create unknown groups")
	cmd.Flags().BoolVar(&opts.AllowAutoCreatePVs, "auto-create-pvs", false, "Create unknown points of sale")
	cmd.MarkFlagRequired("mapping")
	return cmd
}

func newUndoCmd(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <sessionId|uploadId>",
		Short: "Remove everything an import session created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := sessionID(cmd.Context(), a.wizard, args[0])
			if err != nil {
				return err
			}
			res, err := a.wizard.Undo(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d contracts, %d matriculas, %d users, %d points of sale, %d groups\n",
				res.Contracts, res.Matriculas, res.Users, res.PVs, res.Groups)
			return nil
		},
	}
}

func newHistoryCmd(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List finished and undone import sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.wizard.History(cmd.Context())
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>",
		Short: "Print the delimiter of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open input file")
			}
			defer f.Close()

			d, err := detect.Delimiter(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q\n", d)
			return nil
		},
	}
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in import templates",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			for _, t := range templates.All() {
				fmt.Fprintf(w, "%d %s (%s)\n", t.ID, t.Name, t.EntityType)
				fmt.Fprintf(w, "  required: %v\n", t.RequiredFields)
				fmt.Fprintf(w, "  optional: %v\n", t.OptionalFields)
			}
		},
	}
}
