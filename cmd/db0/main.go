// Command db0 is the CLI entry point for bootstrapping a db0 data
// directory: today, just `initdb`.
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ryogrid/db0/catalog"
)

func main() {
	configureLogging()

	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configureLogging() {
	level, err := logrus.ParseLevel(os.Getenv("DB0_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
		if os.Getenv("DB0_LOG_LEVEL") != "" {
			logrus.Warnf("invalid DB0_LOG_LEVEL %q, falling back to info", os.Getenv("DB0_LOG_LEVEL"))
		}
	}
	logrus.SetLevel(level)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db0",
		Short: "db0 data directory tooling",
	}
	cmd.AddCommand(newInitdbCmd())
	return cmd
}

func newInitdbCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Create a data directory and bootstrap its catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDir == "" {
				dataDir = os.Getenv("DB0_DATADIR")
			}
			if dataDir == "" {
				cmd.PrintErrln("initdb: -d/--data_dir or DB0_DATADIR must be set")
				os.Exit(2)
			}

			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				logrus.Errorf("%+v", errors.Wrapf(err, "create data directory %s", dataDir))
				os.Exit(1)
			}
			if err := catalog.CreateMetaTables(dataDir); err != nil {
				logrus.Errorf("%+v", err)
				os.Exit(1)
			}

			logrus.Infof("initialized db0 data directory at %s", dataDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data_dir", "d", "", "data directory to initialize")
	return cmd
}
