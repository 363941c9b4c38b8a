package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captiondesk/internal/bootstrap"
	"captiondesk/internal/domain"
)

func newModelCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect or download the speech model",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the speech model is present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			status, err := svc.Worker.ModelStatus(cmd.Context())
			if err != nil {
				return err
			}
			state := "missing"
			if status.Ready {
				state = "ready"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model: %s\nPath: %s\n", state, status.ExpectedPath)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Download the speech model if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			if !ensureModel(cmd, svc) {
				detail := svc.State.Snapshot().Model.Detail
				if detail == "" {
					detail = "model is not ready"
				}
				return errors.New(detail)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Model ready")
			return nil
		},
	})
	return cmd
}

// ensureModel runs the readiness gate while rendering its progress.
func ensureModel(cmd *cobra.Command, svc *bootstrap.Services) bool {
	wake := watchBus(svc.Bus)
	result := make(chan bool, 1)
	go func() {
		result <- svc.Model.EnsureReady(cmd.Context())
		wake.poke()
	}()

	var ok bool
	_ = followModel(cmd.Context(), wake, svc, cmd, func() bool {
		select {
		case ok = <-result:
			return true
		default:
			return false
		}
	})
	return ok
}

// followModel renders the model region until done reports true. Callers
// poke wake when done changes outside the bus.
func followModel(ctx context.Context, wake *wakeup, svc *bootstrap.Services, cmd *cobra.Command, done func() bool) error {
	var progress *reporter
	defer func() {
		if progress != nil {
			progress.finish()
		}
	}()
	return wake.until(ctx, func() bool {
		model := svc.State.Snapshot().Model
		if model.Status == domain.ModelStatusDownloading {
			if progress == nil {
				progress = newReporter(cmd.ErrOrStderr(), "Downloading model")
			}
			line := strings.TrimSpace(model.Message + " " + byteCounter(model.DownloadedBytes, model.TotalBytes))
			if model.Indeterminate {
				progress.update(nil, line)
			} else {
				percent := model.ProgressValue
				progress.update(&percent, line)
			}
		}
		return done()
	})
}
