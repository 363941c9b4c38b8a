package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captions",
		Short: "Load or clear captions without transcribing",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <media-file> <captions.srt>",
		Short: "Attach an SRT file to a media file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			if _, err := svc.Media.AddPath(cmd.Context(), args[0]); err != nil {
				return err
			}
			job, err := svc.Captions.ImportFile(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d captions (%s)\n", job.ID, len(job.Segments), languageOrUnknown(job.Language))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear <job-id>",
		Short: "Remove every caption of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			if _, err := loadJob(cmd, svc, args[0]); err != nil {
				return err
			}
			if err := svc.Jobs.SelectJob(args[0]); err != nil {
				return err
			}
			if err := svc.Captions.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared captions of %s\n", args[0])
			return nil
		},
	})
	return cmd
}
