package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// RecordCommands returns the record management commands
func RecordCommands(svc *Services) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Attempt record commands",
		Long: `Attempt record commands.

Available commands:
  list    - List a user's attempt records, newest first
  delete  - Delete one record by id`,
	}

	recordsCmd.AddCommand(listRecordsCmd(svc))
	recordsCmd.AddCommand(deleteRecordCmd(svc))
	return recordsCmd
}

func listRecordsCmd(svc *Services) *cobra.Command {
	var userID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attempt records",
		Long:  `List attempt records, newest first. Without --user every user's records are listed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records := svc.Records.List(cmd.Context(), userID)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No records found")
				return nil
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tUSER\tTYPE\tEXERCISE\tSCORE\tQUESTIONS\tTIMESTAMP")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s/%s\t%d\t%s\n",
					r.ID, r.UserID, r.Type, truncate(r.ExerciseTitle, 30),
					strconv.FormatFloat(r.Results.TotalScore, 'f', -1, 64),
					strconv.FormatFloat(r.Results.MaxScore, 'f', -1, 64),
					len(r.Questions), r.Timestamp.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only list records of this user")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func deleteRecordCmd(svc *Services) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an attempt record",
		Long:  `Delete an attempt record by id. Deleting an unknown id is not an error.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := svc.Records.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Record %s not found, nothing deleted\n", args[0])
			}
			return nil
		},
	}
}
