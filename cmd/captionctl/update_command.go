package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check whether a newer release is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			if svc.Config.Updates.CheckURL == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Update checks are not configured")
				return nil
			}
			info, err := svc.Updates.Check(cmd.Context())
			if err != nil && info == nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, info)
			}
			if info == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "You are up to date")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Version %s is available (current %s)\n", info.LatestVersion, info.CurrentVersion)
			if info.ForceUpdate {
				fmt.Fprintln(cmd.OutOrStdout(), "This update is required.")
			}
			if info.DownloadURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Download: %s\n", info.DownloadURL)
			}
			if info.ReleaseNotes != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", info.ReleaseNotes)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
