package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bmeg/datacheck/validate"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestCommandLines(t *testing.T) {
	base := t.TempDir()
	data := filepath.Join(base, "data")
	writeTree(t, data, map[string]string{
		"readme.txt":          "hello\n",
		"patients/p1.tsv":     "id\tage\n1\t40\n",
		"patients/p2.tsv":     "id\tage\n2\t51\n",
		"samples/s1/reads.fq": "@r1\nACGT\n+\nIIII\n",
	})
	index := filepath.Join(base, "index.json")
	descriptor := filepath.Join(base, "demo.yaml")
	require.NoError(t, os.WriteFile(descriptor, []byte("name: demo\nversion: \"1\"\nindex: index.json\n"), 0644))

	require.NoError(t, run(t, "prep-index", data, "-o", index))
	require.FileExists(t, index)
	require.NoError(t, run(t, "index-lint", index))

	require.NoError(t, run(t, "check", index, data))
	require.NoError(t, run(t, "validate", "--silent", "-d", data, descriptor))
	require.FileExists(t, filepath.Join(data, validate.ValidatedFile))
	require.NoError(t, run(t, "status", "-d", data, descriptor))

	// the marker short-circuits until it is cleared
	require.NoError(t, os.WriteFile(filepath.Join(data, "patients", "p2.tsv"), []byte("corrupt"), 0644))
	require.NoError(t, run(t, "validate", "--silent", "-d", data, descriptor))
	require.Error(t, run(t, "check", index, data))

	require.Error(t, run(t, "validate", "--silent", "--rescan", "-d", data, descriptor))
	require.NoFileExists(t, filepath.Join(data, validate.ValidatedFile))
	require.FileExists(t, filepath.Join(data, validate.InvalidFile))
	require.NoError(t, run(t, "status", "-d", data, descriptor))

	require.NoError(t, run(t, "purge", "-d", data, descriptor))
	require.NoDirExists(t, data)
}

func TestConfigAlgorithmDoesNotStick(t *testing.T) {
	base := t.TempDir()
	data := filepath.Join(base, "data")
	writeTree(t, data, map[string]string{"a.txt": "alpha\n", "b/c.txt": "gamma\n"})
	conf := filepath.Join(base, "sha256.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("algorithm: sha256\n"), 0644))
	sha := filepath.Join(base, "sha256.json")
	md5 := filepath.Join(base, "md5.json")

	require.NoError(t, run(t, "--config", conf, "prep-index", data, "-o", sha))
	require.NoError(t, run(t, "--config", conf, "check", sha, data))

	// without the config both commands fall back to md5
	require.NoError(t, run(t, "--config=", "prep-index", data, "-o", md5))
	require.NoError(t, run(t, "--config=", "check", md5, data))
	require.Error(t, run(t, "--config=", "check", sha, data))
}

func TestIndexLintRejectsBadIndex(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"r1": {"k": ["a.txt"]}}`), 0644))
	require.Error(t, run(t, "index-lint", bad))
}

func TestExtractUnknownFormat(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("plain text"), 0644))
	require.Error(t, run(t, "extract", src, filepath.Join(base, "out")))
}
