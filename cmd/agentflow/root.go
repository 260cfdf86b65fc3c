package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentflow/internal/config"
	"github.com/hupe1980/agentflow/logging"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "agentflow",
		Short:         "Multi-agent workflow orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to agentflow.yaml")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(flags),
		newRunCmd(flags),
		newVersionCmd(),
	)

	return cmd
}

// load reads the configuration and builds the logger. The closer releases
// the log file.
func (f *globalFlags) load() (*config.Config, logging.Logger, io.Closer, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, logger, closer, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentflow %s\n", version)
		},
	}
}
