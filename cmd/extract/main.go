package extract

import (
	"github.com/bmeg/datacheck/archive"
	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/logger"
	"github.com/spf13/cobra"
)

var formatName = ""
var cleanup = false

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "extract <archive> <target dir>",
	Short: "Unpack a zip, tar, tar.gz, tar.zst or tar.lz4 archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cmdutil.Setup(); err != nil {
			return err
		}
		archivePath, target := args[0], args[1]
		var format archive.Format
		var err error
		if formatName != "" {
			format, err = archive.ParseFormat(formatName)
		} else {
			format, err = archive.Detect(cmdutil.FS, archivePath)
		}
		if err != nil {
			return err
		}
		logger.Info("Unpacking", "archive", archivePath, "target", target, "format", format)
		if err := archive.NewExtractor(cmdutil.FS).Extract(archivePath, target, format, cleanup); err != nil {
			logger.Error("Extraction failed", "archive", archivePath, "error", err)
			return err
		}
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVar(&formatName, "format", formatName, "Archive format (zip, tar, tar.gz, tar.zst, tar.lz4); detected when empty")
	flags.BoolVar(&cleanup, "cleanup", cleanup, "Remove the archive after a successful unpack")
}
