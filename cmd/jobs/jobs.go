// Package jobs implements the jobs listing command.
package jobs

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/north-cloud/leakscan/cmd/common"
	"github.com/north-cloud/leakscan/internal/database"
)

const defaultListLimit = 50

// Command returns the jobs command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect scan jobs",
	}
	cmd.AddCommand(listCommand())
	return cmd
}

func listCommand() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scan jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, status, limit)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by job status")
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum jobs to list")
	return cmd
}

func runList(cmd *cobra.Command, status string, limit int) error {
	ctx := cmd.Context()

	deps, err := cmdcommon.NewCommandDeps()
	if err != nil {
		return err
	}

	db, err := cmdcommon.OpenDatabase(ctx, deps.Config)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := database.NewScanJobRepository(db)
	jobs, err := repo.List(ctx, status, limit, 0)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		deps.Logger.Info("No jobs found", "status", status)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Type", "Status", "Query", "Parsed", "New", "Dupes", "Created"})

	for _, job := range jobs {
		t.AppendRow(table.Row{
			job.ID,
			job.JobType,
			job.Status,
			job.Query,
			job.TotalParsed,
			job.TotalNew,
			job.TotalDuplicates,
			job.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	return nil
}
