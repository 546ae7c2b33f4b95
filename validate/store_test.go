package validate

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := NewStore(fsys, "/ds")
	require.False(t, store.IsValidated())
	require.Equal(t, "/ds/_INVALID.json", store.ReportPath())

	r, err := store.ReadInvalid()
	require.NoError(t, err)
	require.Nil(t, r)

	report := NewReport()
	report.addMissing("t1", "/ds/a.wav")
	require.NoError(t, store.MarkInvalid(report))
	stored, err := store.ReadInvalid()
	require.NoError(t, err)
	require.Equal(t, report, stored)

	// overwrite
	second := NewReport()
	second.addInvalid("t2", "/ds/b.wav")
	require.NoError(t, store.MarkInvalid(second))
	stored, err = store.ReadInvalid()
	require.NoError(t, err)
	require.Equal(t, second, stored)

	require.NoError(t, store.MarkValidated())
	require.NoError(t, store.MarkValidated())
	require.True(t, store.IsValidated())
	stored, err = store.ReadInvalid()
	require.NoError(t, err)
	require.Nil(t, stored, "a clean pass drops the old report")

	require.NoError(t, store.Clear())
	require.False(t, store.IsValidated())
	require.NoError(t, store.Clear())
}

func TestEmptyReportJSON(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := NewStore(fsys, "/ds")
	require.NoError(t, store.MarkInvalid(&Report{}))
	data, err := afero.ReadFile(fsys, "/ds/_INVALID.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"missing_files": {}, "invalid_checksums": {}}`, string(data))
}
