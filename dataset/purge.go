package dataset

import (
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/remote"
	"github.com/bmeg/datacheck/util"
	"github.com/spf13/afero"
)

// Purge deletes a downloaded artifact and/or a whole dataset tree. The
// artifact must exist; its absence is returned as an fs.ErrNotExist
// error. Removing the dataset tree also removes its validation markers.
func Purge(fsys afero.Fs, artifact *remote.Artifact, root string, datasetPath string) error {
	if artifact != nil {
		p := artifact.LocalPath(root)
		logger.Info("Removing artifact", "path", p)
		if err := fsys.Remove(p); err != nil {
			return err
		}
	}
	if datasetPath != "" {
		logger.Info("Removing dataset", "path", datasetPath)
		if err := fsys.RemoveAll(datasetPath); err != nil {
			return err
		}
	}
	return nil
}

// Reset purges the downloaded archives that are present and, when data
// is set, the dataset tree, so the next Download starts from scratch.
func (d *Dataset) Reset(fsys afero.Fs, archives bool, data bool) error {
	if archives {
		for _, r := range d.Remotes {
			art, err := d.Artifact(r)
			if err != nil {
				return err
			}
			if !util.Exists(fsys, art.LocalPath(d.Home)) {
				continue
			}
			if err := Purge(fsys, &art, d.Home, ""); err != nil {
				return err
			}
		}
	}
	if data {
		return Purge(fsys, nil, "", d.Home)
	}
	return nil
}
