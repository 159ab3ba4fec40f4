package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"examprep/internal/models"
	"examprep/internal/services"

	"github.com/spf13/cobra"
)

// ExportCommand returns the export command
func ExportCommand(svc *Services) *cobra.Command {
	var userID, format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's records, mistakes and statistics",
		Long:  `Export a user's records, mistakes and statistics as JSON or as an xlsx workbook. Writes to stdout unless --out is set.`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if format != services.ExportFormatJSON && format != services.ExportFormatXLSX {
				return fmt.Errorf("unsupported format %q, expected json or xlsx", format)
			}

			export, err := svc.Export.ExportUserData(cmd.Context(), userID)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, createErr := os.Create(out)
				if createErr != nil {
					return createErr
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = cerr
					}
				}()
				w = f
			}

			if format == services.ExportFormatXLSX {
				return svc.Export.WriteXLSX(export, w)
			}
			return printJSON(w, export)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user to export")
	cmd.Flags().StringVar(&format, "format", services.ExportFormatJSON, "json or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ImportCommand returns the import command
func ImportCommand(svc *Services) *cobra.Command {
	var file, userID string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import records from an export file",
		Long: `Import records from a JSON export (or any object with a "records" array).

Records are assigned to --user, or to the userId stored in the file when --user
is not given. Records whose id already exists are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			var req models.ImportRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if userID != "" {
				req.UserID = userID
			}

			result, err := svc.Export.ImportUserData(cmd.Context(), &req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, skipped %d, failed %d\n", result.Imported, result.Skipped, result.Failed)
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file to import")
	cmd.Flags().StringVar(&userID, "user", "", "owner of the imported records")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
