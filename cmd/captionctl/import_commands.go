package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captiondesk/internal/domain"
	"captiondesk/internal/operations"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a media file from a direct URL into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, ctx, domain.ImportKindURLDownload, args[0], dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Folder to save into (defaults to the worker's download folder)")
	return cmd
}

func newYoutubeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "youtube <url>",
		Short: "Import the audio of a YouTube video into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, ctx, domain.ImportKindYoutube, args[0], "")
		},
	}
}

// runImport starts an import and follows the shared state until the region
// leaves its importing phase. Interrupting cancels the import.
func runImport(cmd *cobra.Command, ctx *commandContext, kind domain.ImportKind, rawURL, dir string) error {
	svc, err := ctx.services()
	if err != nil {
		return err
	}
	controller := svc.URLDownloads
	if kind == domain.ImportKindYoutube {
		controller = svc.Youtube
	}

	svc.LoadDefaults(cmd.Context())
	if strings.TrimSpace(dir) != "" {
		controller.SetSavePath(dir)
	}

	wake := watchBus(svc.Bus)
	if err := controller.Start(cmd.Context(), rawURL); err != nil {
		return err
	}

	progress := newReporter(cmd.ErrOrStderr(), "Downloading")
	err = wake.until(cmd.Context(), func() bool {
		region := svc.State.Snapshot().Import(kind)
		if region.Importing {
			line := strings.TrimSpace(region.Title + " " + byteCounter(region.DownloadedBytes, totalBytes(region)))
			if !region.Indeterminate {
				percent := region.ProgressValue
				progress.update(&percent, line)
			} else {
				progress.update(nil, line)
			}
		}
		return !region.Importing
	})
	progress.finish()
	if err != nil {
		controller.Cancel()
		controller.Wait()
		return err
	}

	region := svc.State.Snapshot().Import(kind)
	if region.Error != "" {
		return errors.New(region.Error)
	}
	item, ok := svc.Media.Selected()
	if !ok {
		return operations.ErrNoMedia
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", item.Path)
	return nil
}

// totalBytes prefers the exact size over the estimate.
func totalBytes(region domain.ImportState) *int64 {
	if region.TotalBytes != nil {
		return region.TotalBytes
	}
	return region.TotalBytesEstimate
}
