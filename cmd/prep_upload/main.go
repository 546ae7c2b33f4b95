package prep_upload

import (
	"fmt"
	"path"

	"github.com/bmeg/datacheck/cmd/cmdutil"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/manifest"
	"github.com/bmeg/datacheck/util"
	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
)

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "prep-upload <index file> <s3+http(s)://host/bucket/prefix>",
	Short: "Check which indexed files are missing from an object store mirror",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cmdutil.Setup(); err != nil {
			return err
		}
		idx, err := manifest.LoadFile(args[0])
		if err != nil {
			return err
		}

		dstURL := util.GetS3URL(args[1])
		if dstURL == nil {
			return fmt.Errorf("not an s3+http(s) URL: %s", args[1])
		}
		mc, err := util.GetS3Client(dstURL)
		if err != nil {
			return err
		}
		bucketName, prefix, err := util.SplitBucket(dstURL)
		if err != nil {
			return err
		}
		logger.Debug("Checking mirror", "bucket", bucketName, "prefix", prefix)

		missing := 0
		present := 0
		totalSize := uint64(0)
		for _, rec := range idx.Records() {
			for _, file := range rec.Files {
				if !file.Applies() {
					continue
				}
				key := path.Join(prefix, *file.Path)
				stats, err := mc.StatObject(cmd.Context(), bucketName, key, minio.StatObjectOptions{})
				if err != nil {
					if minio.ToErrorResponse(err).Code != "NoSuchKey" {
						return fmt.Errorf("stat %s: %w", key, err)
					}
					missing++
					fmt.Printf("File not found: %s\n", key)
					continue
				}
				present++
				totalSize += uint64(stats.Size)
				logger.Debug("Found", "key", key, "size", stats.Size)
			}
		}
		fmt.Printf("%d present (%s), %d missing\n", present, humanize.Bytes(totalSize), missing)
		if missing > 0 {
			return fmt.Errorf("%d files missing from %s", missing, args[1])
		}
		return nil
	},
}
