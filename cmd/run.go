package cmd

import (
	"fmt"
	"os"

	"github.com/josephlewis42/subsh/core"
	"github.com/josephlewis42/subsh/core/session"
	"github.com/spf13/cobra"
)

var runPolicy string

// runCmd executes a single pre-split command through the engine.
var runCmd = &cobra.Command{
	Use:   "run -- PROG [ARG...]",
	Short: "Run a single command and exit with its status.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		policyName := configuration.Shell.SourcingPolicy
		if runPolicy != "" {
			policyName = runPolicy
		}
		policy, err := core.PolicyFromName(policyName)
		if err != nil {
			return err
		}

		sess, err := session.NewSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		runner := &core.Runner{
			Policy:       policy,
			Shell:        configuration.Shell.DefaultShell,
			CaptureLimit: configuration.Shell.CaptureLimit,
		}

		code := runner.Run(sess, args)
		if code != 0 {
			if msg, ok := sess.LastError(); ok {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
		}
		os.Exit(exitStatus(code))
		return nil
	},
}

// exitStatus maps the engine's -1 sentinel onto a representable process
// exit code.
func exitStatus(code int) int {
	if code < 0 || code > 255 {
		return 1
	}
	return code
}

func init() {
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "sourcing policy override (exec or shell)")
	rootCmd.AddCommand(runCmd)
}
