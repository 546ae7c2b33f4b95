package cmd

import (
	"os"

	"github.com/bmeg/datacheck/cmd/check"
	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/cmd/extract"
	"github.com/bmeg/datacheck/cmd/fetch"
	"github.com/bmeg/datacheck/cmd/index_lint"
	"github.com/bmeg/datacheck/cmd/prep_index"
	"github.com/bmeg/datacheck/cmd/prep_upload"
	"github.com/bmeg/datacheck/cmd/purge"
	"github.com/bmeg/datacheck/cmd/status"
	"github.com/bmeg/datacheck/cmd/validate"

	"github.com/spf13/cobra"
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:           "datacheck",
	Short:         "Fetch datasets and verify local copies against their index",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&cmdutil.ConfigPath, "config", "c", cmdutil.ConfigPath, "Config file (YAML)")
	flags.StringVar(&cmdutil.EnvFile, "env-file", cmdutil.EnvFile, "Env file to load (default .env)")
	flags.StringVar(&cmdutil.MetricsFile, "metrics-file", cmdutil.MetricsFile, "Write Prometheus text metrics to this file")
	flags.BoolVarP(&cmdutil.Verbose, "verbose", "v", cmdutil.Verbose, "Verbose logging")
	flags.BoolVar(&cmdutil.JSONLog, "json-log", cmdutil.JSONLog, "Log in JSON")

	RootCmd.AddCommand(validate.Cmd)
	RootCmd.AddCommand(check.Cmd)
	RootCmd.AddCommand(fetch.Cmd)
	RootCmd.AddCommand(extract.Cmd)
	RootCmd.AddCommand(purge.Cmd)
	RootCmd.AddCommand(status.Cmd)
	RootCmd.AddCommand(prep_index.Cmd)
	RootCmd.AddCommand(index_lint.Cmd)
	RootCmd.AddCommand(prep_upload.Cmd)
	RootCmd.AddCommand(genBashCompletionCmd)
}

var genBashCompletionCmd = &cobra.Command{
	Use:   "bash",
	Short: "Generate bash completions file",
	Run: func(cmd *cobra.Command, args []string) {
		RootCmd.GenBashCompletion(os.Stdout)
	},
}
