package commands

import (
	"fmt"
	"io"
	"sort"

	"examprep/internal/models"

	"github.com/spf13/cobra"
)

// StatisticsCommands returns the statistics commands
func StatisticsCommands(svc *Services) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Statistics commands",
		Long: `Statistics commands.

Available commands:
  show     - Show a user's statistics (cached when available)
  refresh  - Recompute statistics from the record log, for one user or all`,
	}
	statsCmd.AddCommand(showStatsCmd(svc))
	statsCmd.AddCommand(refreshStatsCmd(svc))
	return statsCmd
}

func showStatsCmd(svc *Services) *cobra.Command {
	var userID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := svc.Statistics.GetStatistics(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			return printStatistics(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user whose statistics to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func refreshStatsCmd(svc *Services) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute statistics from the record log",
		Long:  `Recompute statistics from the record log. Without --user every known user is refreshed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID != "" {
				stats, err := svc.Statistics.Recompute(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Refreshed statistics for %s (%d exercises)\n", userID, stats.TotalExercises)
				return nil
			}

			n, err := svc.Statistics.RefreshAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed statistics for %d users\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only refresh this user")
	return cmd
}

func printStatistics(w io.Writer, s *models.UserStatistics) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "User:\t%s\n", s.UserID)
	fmt.Fprintf(tw, "Exercises:\t%d\n", s.TotalExercises)
	fmt.Fprintf(tw, "Questions:\t%g (%d correct)\n", s.TotalQuestions, s.CorrectQuestions)
	fmt.Fprintf(tw, "Average score:\t%.1f%%\n", s.AverageScore)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.ExercisesByCategory) > 0 {
		fmt.Fprintln(w, "\nBy category:")
		tags := make([]string, 0, len(s.ExercisesByCategory))
		for tag := range s.ExercisesByCategory {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		tw = newTable(w)
		for _, tag := range tags {
			c := s.ExercisesByCategory[tag]
			fmt.Fprintf(tw, "  %s\t%d exercises\t%.1f%%\n", tag, c.Count, c.AverageScore)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	printTopics(w, "Strong topics", s.StrongTopics)
	printTopics(w, "Weak topics", s.WeakTopics)
	return nil
}

func printTopics(w io.Writer, title string, topics []models.TopicAccuracy) {
	if len(topics) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, t := range topics {
		fmt.Fprintf(w, "  %s  %.1f%% (%d/%d)\n", t.Topic, t.Accuracy, t.Correct, t.Total)
	}
}
