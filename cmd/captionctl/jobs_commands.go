package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"captiondesk/internal/bootstrap"
	"captiondesk/internal/captions"
	"captiondesk/internal/domain"
	"captiondesk/internal/persistence"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "List and inspect transcription jobs",
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsRemoveCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs from the local history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			items, err := svc.Mirror.ListSummaries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Status", "Language", "Captions", "Updated"},
				summaryRows(items),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func summaryRows(items []persistence.Summary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.DisplayName
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			item.ID,
			name,
			string(item.Status),
			languageCell(item.Language),
			strconv.Itoa(item.SegmentCount),
			humanize.Time(item.UpdatedAt),
		})
	}
	return rows
}

func languageCell(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "-"
	}
	return lang
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print the captions of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			job, err := loadJob(cmd, svc, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n\n", job.ID, job.Status, languageCell(job.Language))
			fmt.Fprint(cmd.OutOrStdout(), captions.Format(job.Segments))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <job-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a job from the worker and the local history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			if _, err := loadJob(cmd, svc, args[0]); err != nil {
				return err
			}
			done, err := svc.Jobs.RemoveJob(args[0])
			if err != nil {
				return err
			}
			if err := <-done; err != nil {
				log := ctx.logger()
				log.Warn().Err(err).Str("job", args[0]).Msg("remove job records")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

// loadJob restores the job history and returns one job.
func loadJob(cmd *cobra.Command, svc *bootstrap.Services, jobID string) (domain.Job, error) {
	if _, err := svc.Hydrate(cmd.Context()); err != nil {
		svc.Log.Debug().Err(err).Msg("partial job history")
	}
	job, ok := svc.Jobs.Get(jobID)
	if !ok {
		return domain.Job{}, fmt.Errorf("job %s not found", jobID)
	}
	return job, nil
}
