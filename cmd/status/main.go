package status

import (
	"fmt"
	"os"

	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/dataset"
	"github.com/bmeg/datacheck/util"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var dataHome = ""

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "status <dataset file>",
	Short: "Show the stored validation result of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := cmdutil.Setup()
		if err != nil {
			return err
		}
		ds, err := dataset.Load(args[0], conf, dataHome)
		if err != nil {
			return err
		}
		fmt.Printf("dataset: %s %s\n", ds.Name, ds.Version)
		fmt.Printf("home: %s\n", ds.Home)
		fmt.Printf("index: %d records, %d files\n", ds.Index.Len(), ds.Index.FileCount())
		for _, r := range ds.Remotes {
			art, err := ds.Artifact(r)
			if err != nil {
				return err
			}
			p := art.LocalPath(ds.Home)
			if util.Exists(cmdutil.FS, p) {
				fmt.Printf("remote %s: %s (%s)\n", r.Name, p, humanize.Bytes(util.FileSize(cmdutil.FS, p)))
			} else {
				fmt.Printf("remote %s: not downloaded\n", r.Name)
			}
		}

		store := ds.Store(cmdutil.FS)
		if store.IsValidated() {
			fmt.Printf("status: validated\n")
			return nil
		}
		report, err := store.ReadInvalid()
		if err != nil {
			return err
		}
		if report == nil {
			fmt.Printf("status: not validated\n")
			return nil
		}
		fmt.Printf("status: invalid (%d missing, %d invalid checksums), see %s\n",
			report.MissingCount(), report.InvalidCount(), store.ReportPath())
		report.Print(os.Stdout, ds.Index)
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&dataHome, "data-home", "d", dataHome, "Dataset directory (default <data_home>/<name>)")
}
