package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-optimizer/internal/logging"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/pii"
	"github.com/jonathan/resume-optimizer/internal/types"
)

func newScanCmd(state *appState) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "Mask personal data in a text file and report the findings",
		Long:  `Reads a file (or stdin when no file or "-" is given) and prints the masked text and finding spans. No external service is called.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			text, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			masked, findings := pii.NewScanner().Scan(text)
			if findings == nil {
				findings = []types.PIIFinding{}
			}
			state.logger.Debug("text scanned", logging.FindingFields(findings)...)

			resp := types.ScanResponse{
				MaskedText: masked,
				Findings:   findings,
				Summary:    pii.Summary(findings),
			}
			if format == formatText {
				observability.NewPrinter(cmd.OutOrStdout()).PrintScan(&resp)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatJSON, "Output format: json or text")
	return cmd
}
