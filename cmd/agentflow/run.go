package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentflow/engine"
	"github.com/hupe1980/agentflow/internal/app"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run the workflow once and print the transcript and the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := flags.load()
			if err != nil {
				return err
			}
			defer closer.Close()

			a, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Runner.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if report != nil && len(report.Events) > 0 {
					fmt.Fprint(cmd.ErrOrStderr(), engine.FormatTranscript(report.Events))
				}
				return err
			}

			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprint(out, engine.FormatTranscript(report.Events))
			fmt.Fprintf(out, "\n## Result (%s, %d steps)\n%s\n", report.Result.Agent, report.Result.Steps, report.Result.FinalAnswer)

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")

	return cmd
}
