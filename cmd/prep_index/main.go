package prep_index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/manifest"
	"github.com/bmeg/datacheck/util"
	"github.com/bmeg/datacheck/validate"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var exclude = []string{}
var algorithm = ""
var output = ""

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "prep-index <root dir>",
	Short: "Build an index of all files under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := cmdutil.Setup()
		if err != nil {
			return err
		}
		algName := algorithm
		if algName == "" {
			algName = conf.Algorithm
		}
		alg, err := checksum.ParseAlgorithm(algName)
		if err != nil {
			return err
		}
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if len(exclude) > 0 {
			logger.Info("Excluding", "patterns", exclude)
		}

		b := manifest.Builder{
			Fs:        cmdutil.FS,
			Algorithm: alg,
			Exclude:   append([]string{validate.ValidatedFile, validate.InvalidFile}, exclude...),
		}
		idx, err := b.Build(root)
		if err != nil {
			return err
		}

		totalSize := uint64(0)
		for _, rec := range idx.Records() {
			for _, f := range rec.Files {
				if p, ok := fileOf(root, f); ok {
					totalSize += util.FileSize(cmdutil.FS, p)
				}
			}
		}
		logger.Info("Index built", "records", idx.Len(), "files", idx.FileCount(), "size", humanize.Bytes(totalSize))

		out, err := json.MarshalIndent(idx, "", "  ")
		if err != nil {
			return err
		}
		if output == "" {
			fmt.Printf("%s\n", out)
			return nil
		}
		return os.WriteFile(output, append(out, '\n'), 0644)
	},
}

func fileOf(root string, f manifest.FileEntry) (string, bool) {
	if f.Path == nil {
		return "", false
	}
	return filepath.Join(root, *f.Path), true
}

func init() {
	flags := Cmd.Flags()
	flags.StringArrayVarP(&exclude, "exclude", "e", exclude, "Patterns to exclude (matched against names and relative paths)")
	flags.StringVarP(&algorithm, "algorithm", "a", algorithm, "Checksum algorithm (md5, sha1, sha256, blake3)")
	flags.StringVarP(&output, "output", "o", output, "Write the index to this file instead of stdout")
}
