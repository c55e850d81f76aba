package commands

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"review-tracker-go/db"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:       "export TABLE",
		Short:     "Export students or reviews as CSV or XLSX",
		Args:      cobra.ExactArgs(1),
		ValidArgs: db.ExportTables,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			if format != "csv" && format != "xlsx" {
				return errors.Errorf("unsupported format %q", format)
			}
			if format == "xlsx" && out == "" {
				out = table + "_export.xlsx"
			}

			store, closeStore, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			var data []byte
			if format == "csv" {
				text, err := store.ExportTable(cmd.Context(), table)
				if err != nil {
					return err
				}
				data = []byte(text)
			} else {
				data, err = store.ExportTableXLSX(cmd.Context(), table)
				if err != nil {
					return err
				}
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", out)
			}
			cmd.PrintErrf("exported %s to %s\n", table, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (csv defaults to stdout)")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import CLASS FILE.xlsx",
		Short: "Import students into an existing class from a spreadsheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			className, path := args[0], args[1]

			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "open spreadsheet")
			}
			defer f.Close()

			store, closeStore, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			exists, err := store.ClassExists(cmd.Context(), className)
			if err != nil {
				return err
			}
			if !exists {
				return errors.Errorf("class %q does not exist, add it first", className)
			}

			result, err := store.ImportStudentsFromExcel(cmd.Context(), f, className)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d students into %s (%d rows skipped)\n", result.Imported, className, result.Skipped)
			return nil
		},
	}
}
