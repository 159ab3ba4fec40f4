package commands

import (
	"fmt"
	"strings"

	"examprep/internal/models"

	"github.com/spf13/cobra"
)

// MistakeCommands returns the mistake review commands
func MistakeCommands(svc *Services) *cobra.Command {
	mistakesCmd := &cobra.Command{
		Use:   "mistakes",
		Short: "Mistake review commands",
	}
	mistakesCmd.AddCommand(listMistakesCmd(svc))
	return mistakesCmd
}

func listMistakesCmd(svc *Services) *cobra.Command {
	var userID, tag string
	var hideResolved, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's mistakes, most recent miss first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := models.MistakeFilter{IncludeResolved: !hideResolved, Tag: tag}
			mistakes, err := svc.Mistakes.GetMistakes(cmd.Context(), userID, filter)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), mistakes)
			}

			if len(mistakes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No mistakes found")
				return nil
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "QUESTION\tTITLE\tCOUNT\tLAST ANSWER\tLAST WRONG\tTOPICS\tRESOLVED")
			for _, m := range mistakes {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%t\n",
					m.Question.ID, truncate(m.Question.Title, 40), m.Count,
					truncate(m.UserAnswer.String(), 20), m.LastWrongTime.Format("2006-01-02 15:04"),
					strings.Join(m.Topics, ","), m.Resolved)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user whose mistakes to list")
	cmd.Flags().StringVar(&tag, "tag", "", "only list questions carrying this tag")
	cmd.Flags().BoolVar(&hideResolved, "hide-resolved", false, "leave out mistakes marked as resolved")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print mistakes as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
