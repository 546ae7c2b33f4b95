package index_lint

import (
	"fmt"

	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/manifest"
	"github.com/spf13/cobra"
)

var printSchema = false

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "index-lint <index file>...",
	Short: "Check index files against the index schema",
	Long: `Check index files (json, yaml, jsonl, jsonl.gz) against the index
schema and report their record and file counts.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if printSchema {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if printSchema {
			fmt.Printf("%s\n", manifest.IndexSchema)
			return nil
		}
		if _, err := cmdutil.Setup(); err != nil {
			return err
		}
		errorCount := 0
		for _, path := range args {
			idx, err := manifest.LoadFile(path)
			if err != nil {
				errorCount++
				logger.AddSummaryError("Index error", "path", path, "error", err)
				fmt.Printf("Error: %s\n", err)
				continue
			}
			fmt.Printf("OK: %s (%s) %d records %d files\n", path, manifest.DetectFormat(path), idx.Len(), idx.FileCount())
		}
		if errorCount > 0 {
			return fmt.Errorf("%d of %d index files invalid", errorCount, len(args))
		}
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.BoolVar(&printSchema, "print-schema", printSchema, "Print the index JSON schema and exit")
}
