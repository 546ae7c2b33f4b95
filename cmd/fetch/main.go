package fetch

import (
	"fmt"
	"os"

	"github.com/bmeg/datacheck/archive"
	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/dataset"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/remote"
	"github.com/bmeg/datacheck/validate"
	"github.com/spf13/cobra"
)

var dataHome = ""
var remotes = []string{}
var force = false
var cleanup = false
var runValidate = true
var quiet = false

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "fetch <dataset file>",
	Short: "Download and unpack the remote artifacts of a dataset",
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

		fetcher := remote.NewFetcher(cmdutil.FS, ds.Algorithm)
		if conf.ChunkSize > 0 {
			fetcher.ChunkSize = conf.ChunkSize
		}
		if !quiet {
			events, stop := cmdutil.ProgressPrinter(os.Stderr)
			fetcher.Progress = events
			defer stop()
		}
		extractor := archive.NewExtractor(cmdutil.FS)

		opts := dataset.DownloadOptions{Remotes: remotes, Force: force, Cleanup: cleanup}
		logger.Info("Fetching", "dataset", ds.Name, "home", ds.Home)
		if err := ds.Download(cmd.Context(), fetcher, extractor, opts); err != nil {
			logger.Error("Download failed", "dataset", ds.Name, "error", err)
			return err
		}
		if !runValidate || ds.Index.Len() == 0 {
			return nil
		}

		hasher, closeHasher, err := cmdutil.Hasher(conf, ds.Algorithm, "")
		if err != nil {
			return err
		}
		defer closeHasher()
		v := validate.New(cmdutil.FS, hasher)
		v.Out = os.Stdout
		report, err := ds.Validate(v)
		if err != nil {
			return err
		}
		if !report.Clean() {
			return fmt.Errorf("dataset %s is invalid after download: %d missing, %d invalid checksums",
				ds.Name, report.MissingCount(), report.InvalidCount())
		}
		logger.Info("Dataset valid", "dataset", ds.Name)
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&dataHome, "data-home", "d", dataHome, "Dataset directory (default <data_home>/<name>)")
	flags.StringArrayVarP(&remotes, "remote", "r", remotes, "Only fetch the named remote (repeatable)")
	flags.BoolVarP(&force, "force", "f", force, "Download even when the artifact is already present")
	flags.BoolVar(&cleanup, "cleanup", cleanup, "Remove archives after they are unpacked")
	flags.BoolVar(&runValidate, "validate", runValidate, "Validate the dataset after download")
	flags.BoolVarP(&quiet, "quiet", "q", quiet, "Do not show transfer progress")
}
