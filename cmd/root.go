package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/josephlewis42/subsh/core/config"
	"github.com/spf13/cobra"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "subsh",
	Short: "Process-execution engine with a shell and SSH front end.",
	Long: `subsh runs single commands and multi-stage pipelines on behalf of an
embedding host, tracking working directory, environment, exit status and
captured error text per session.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
}
