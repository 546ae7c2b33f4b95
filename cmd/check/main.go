package check

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/manifest"
	"github.com/bmeg/datacheck/validate"
	"github.com/spf13/cobra"
)

var algorithm = ""
var digestCache = ""

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "check <index file> <root dir>",
	Short: "Scan a directory against an index and print the report as JSON",
	Long: `Scan a directory against an index without reading or writing any
validation markers. The report is printed as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := cmdutil.Setup()
		if err != nil {
			return err
		}
		idx, err := manifest.LoadFile(args[0])
		if err != nil {
			return err
		}
		root, err := filepath.Abs(args[1])
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
		hasher, closeHasher, err := cmdutil.Hasher(conf, alg, digestCache)
		if err != nil {
			return err
		}
		defer closeHasher()

		report, err := validate.New(cmdutil.FS, hasher).Check(idx, root)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", out)
		if !report.Clean() {
			return fmt.Errorf("%d missing, %d invalid checksums", report.MissingCount(), report.InvalidCount())
		}
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&algorithm, "algorithm", "a", algorithm, "Checksum algorithm (md5, sha1, sha256, blake3)")
	flags.StringVar(&digestCache, "digest-cache", digestCache, "Pebble directory caching file digests")
}
