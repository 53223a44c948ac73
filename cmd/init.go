package cmd

import (
	"log"

	"github.com/josephlewis42/subsh/core/config"
	"github.com/spf13/cobra"
)

// initCmd writes the default configuration and host key.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration in the config directory.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		logger := log.New(cmd.ErrOrStderr(), "", 0)

		_, err := config.Initialize(cfgPath, logger)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
