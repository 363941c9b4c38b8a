package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"captiondesk/internal/domain"
)

func newDiagnoseCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var fix []string
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check the worker, the model and the configured folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			report := svc.Diagnostics(cmd.Context())
			for _, id := range fix {
				fixed, err := svc.FixDiagnostic(cmd.Context(), id)
				if err != nil {
					log := ctx.logger()
					log.Warn().Err(err).Str("item", id).Msg("fix diagnostic")
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not fix %s: %v\n", id, err)
				}
				if len(fixed.Items) > 0 {
					report = fixed
				}
			}
			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Check", "Status", "Details"},
					diagnosticRows(report),
					nil,
				))
			}
			if report.HasFailures {
				return errors.New("some checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().StringSliceVar(&fix, "fix", nil, "Repair items before reporting (download_dir, export_dir, model)")
	return cmd
}

func diagnosticRows(report domain.DiagnosticReport) [][]string {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		detail := item.Message
		if item.Hint != "" {
			detail += "\n" + item.Hint
		}
		rows = append(rows, []string{item.Name, string(item.Status), detail})
	}
	return rows
}
