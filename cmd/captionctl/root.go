package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// execute runs the command tree and always releases the services it built.
func execute(ctx context.Context, args []string) error {
	cmd, cc := newRootCommand()
	if args != nil {
		cmd.SetArgs(args)
	}
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, cc.close())
}

func newRootCommand() (*cobra.Command, *commandContext) {
	var configFlag string
	var envFlag string
	var verbose bool

	ctx := newCommandContext(&configFlag, &envFlag, &verbose)

	rootCmd := &cobra.Command{
		Use:           "captionctl",
		Short:         "Download media, transcribe it and manage captions from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env-file", ".env", "Environment file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newYoutubeCommand(ctx))
	rootCmd.AddCommand(newModelCommand(ctx))
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newCaptionsCommand(ctx))
	rootCmd.AddCommand(newDiagnoseCommand(ctx))
	rootCmd.AddCommand(newUpdateCommand(ctx))

	return rootCmd, ctx
}
