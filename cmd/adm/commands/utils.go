// Package commands implements the subcommands of the adm CLI.
package commands

import (
	"encoding/json"
	"io"
	"text/tabwriter"

	"examprep/internal/di"
	"examprep/internal/services"
	contextutils "examprep/internal/utils"

	"github.com/spf13/cobra"
)

// Services are the domain services the commands operate on
type Services struct {
	Records    services.RecordServiceInterface
	Mistakes   services.MistakeServiceInterface
	Statistics services.StatisticsServiceInterface
	Export     services.ExportServiceInterface
}

// ServicesFromContainer resolves the command services from an initialized container
func ServicesFromContainer(container di.ServiceContainerInterface) (*Services, error) {
	records, err := container.GetRecordService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get record service")
	}
	mistakes, err := container.GetMistakeService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get mistake service")
	}
	stats, err := container.GetStatisticsService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get statistics service")
	}
	export, err := container.GetExportService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get export service")
	}
	return &Services{Records: records, Mistakes: mistakes, Statistics: stats, Export: export}, nil
}

// Register adds every subcommand to root
func Register(root *cobra.Command, svc *Services) {
	root.AddCommand(RecordCommands(svc))
	root.AddCommand(MistakeCommands(svc))
	root.AddCommand(StatisticsCommands(svc))
	root.AddCommand(ExportCommand(svc))
	root.AddCommand(ImportCommand(svc))
	root.AddCommand(VersionCommand())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
