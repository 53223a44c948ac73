package cmd

import (
	"github.com/josephlewis42/subsh/core"
	"github.com/josephlewis42/subsh/core/logger"
	"github.com/josephlewis42/subsh/core/session"
	"github.com/spf13/cobra"
)

// shellCmd runs the interactive shell on the local terminal.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run an interactive shell against a fresh session.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		sess, err := session.NewSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		appLog, err := configuration.OpenAppLog()
		if err != nil {
			return err
		}
		defer appLog.Close()
		slog := logger.NewJsonLinesLogRecorder(appLog).NewSession()

		shell, err := core.NewShell(configuration, sess, core.StdShellIO(), slog)
		if err != nil {
			return err
		}
		defer shell.Close()

		return shell.Run()
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
