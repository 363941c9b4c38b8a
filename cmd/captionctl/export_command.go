package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Save a job's captions as SRT or a plain transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, err := parseExportFormat(format, false)
			if err != nil {
				return err
			}
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			job, err := loadJob(cmd, svc, args[0])
			if err != nil {
				return err
			}
			path, err := svc.Exporter.Export(cmd.Context(), job, exportFormat, job.Language)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "srt", "srt or txt")
	return cmd
}
