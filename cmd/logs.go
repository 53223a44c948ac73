package cmd

import (
	"io"

	"github.com/spf13/cobra"
)

// logsCmd streams the JSON-lines interaction log to stdout so it can be
// piped into jq or collected by a log shipper.
var logsCmd = &cobra.Command{
	Use:     "logs",
	Aliases: []string{"log"},
	Short:   "Print the recorded interaction log.",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		fd, err := configuration.ReadAppLog()
		if err != nil {
			return err
		}
		defer fd.Close()

		_, err = io.Copy(cmd.OutOrStdout(), fd)
		return err
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
}
