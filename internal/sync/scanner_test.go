package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectKeys(candidates []*UploadCandidate) []string {
	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, c.Key)
	}
	return keys
}

func TestScanner_CollectWithExcludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.db", "database")
	writeFile(t, dir, "nested/deep/b.json", "{}")
	writeFile(t, dir, ".git/config", "gitstuff")
	writeFile(t, dir, "__pycache__/mod.cpython-311.pyc", "bytecode")
	writeFile(t, dir, "lib.pyc", "bytecode")
	writeFile(t, dir, "native.so", "elf")
	writeFile(t, dir, ".DS_Store", "junk")
	writeFile(t, dir, DefaultManifestName, "{}")

	scanner := NewScanner(dir, "backup")
	candidates, skipped, err := scanner.Collect()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"backup/a.db", "backup/nested/deep/b.json"}, collectKeys(candidates))
	assert.Greater(t, skipped, 0)
}

func TestScanner_NoPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x/y.txt", "data")

	scanner := NewScanner(dir, "")
	candidates, _, err := scanner.Collect()
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "x/y.txt", candidates[0].Key)
	assert.Equal(t, int64(4), candidates[0].Size)
}

func TestScanner_IgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", "keep")
	writeFile(t, dir, "drop.log.gz", "drop")
	writeFile(t, dir, IgnoreFileName, "*.log.gz\n")

	scanner := NewScanner(dir, "")
	candidates, _, err := scanner.Collect()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"keep.txt"}, collectKeys(candidates))
}
