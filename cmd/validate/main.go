package validate

import (
	"fmt"
	"os"

	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/dataset"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/validate"
	"github.com/spf13/cobra"
)

var dataHome = ""
var digestCache = ""
var silent = false
var rescan = false

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "validate <dataset file>",
	Short: "Check a local dataset copy against its index",
	Long: `Check every file listed in the dataset index and record the result in
the dataset directory. A dataset that has been validated once is not
scanned again until its markers are cleared (--rescan, purge).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := cmdutil.Setup()
		if err != nil {
			return err
		}
		ds, err := dataset.Load(args[0], conf, dataHome)
		if err != nil {
			return err
		}
		hasher, closeHasher, err := cmdutil.Hasher(conf, ds.Algorithm, digestCache)
		if err != nil {
			return err
		}
		defer closeHasher()

		if rescan {
			if err := ds.Store(cmdutil.FS).Clear(); err != nil {
				return err
			}
		}

		v := validate.New(cmdutil.FS, hasher)
		if !silent {
			v.Out = os.Stdout
		}
		logger.Info("Validating", "dataset", ds.Name, "home", ds.Home, "records", ds.Index.Len())
		report, err := ds.Validate(v)
		if err != nil {
			logger.Error("Validation failed", "dataset", ds.Name, "error", err)
			return err
		}
		if !report.Clean() {
			logger.AddSummaryError("Dataset invalid", "dataset", ds.Name,
				"missing", report.MissingCount(), "invalid", report.InvalidCount(),
				"report", ds.Store(cmdutil.FS).ReportPath())
			return fmt.Errorf("dataset %s is invalid: %d missing, %d invalid checksums",
				ds.Name, report.MissingCount(), report.InvalidCount())
		}
		logger.Info("Dataset valid", "dataset", ds.Name)
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&dataHome, "data-home", "d", dataHome, "Dataset directory (default <data_home>/<name>)")
	flags.StringVar(&digestCache, "digest-cache", digestCache, "Pebble directory caching file digests")
	flags.BoolVarP(&silent, "silent", "s", silent, "Do not list offending files")
	flags.BoolVar(&rescan, "rescan", rescan, "Clear stored validation markers before checking")
}
