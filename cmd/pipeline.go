package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/josephlewis42/subsh/core"
	"github.com/josephlewis42/subsh/core/session"
	"github.com/spf13/cobra"
)

// pipelineCmd runs a pipe-separated command line through the pipeline
// executor. The line is tokenized here; the engine only ever sees argument
// vectors.
var pipelineCmd = &cobra.Command{
	Use:   `pipeline "PROG ARG... | PROG ARG... | ..."`,
	Short: "Run a pipeline and exit with the terminal stage's status.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		policy, err := core.PolicyFromName(configuration.Shell.SourcingPolicy)
		if err != nil {
			return err
		}

		tokens, err := shlex.Split(strings.Join(args, " "), true)
		if err != nil {
			return fmt.Errorf("syntax error: %v", err)
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
		pipe := &core.Pipeline{Runner: runner}

		code := pipe.Run(sess, core.SplitPipeline(tokens))
		if code != 0 {
			if msg, ok := sess.LastError(); ok {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
		}
		os.Exit(exitStatus(code))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}
