package purge

import (
	"fmt"

	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/dataset"
	"github.com/spf13/cobra"
)

var dataHome = ""
var archives = false
var data = true

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "purge <dataset file>",
	Short: "Remove downloaded archives and the local dataset copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !archives && !data {
			return fmt.Errorf("nothing to purge: both --archives and --data are off")
		}
		conf, err := cmdutil.Setup()
		if err != nil {
			return err
		}
		ds, err := dataset.Load(args[0], conf, dataHome)
		if err != nil {
			return err
		}
		return ds.Reset(cmdutil.FS, archives, data)
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&dataHome, "data-home", "d", dataHome, "Dataset directory (default <data_home>/<name>)")
	flags.BoolVar(&archives, "archives", archives, "Remove downloaded archives")
	flags.BoolVar(&data, "data", data, "Remove the dataset directory and its validation markers")
}
