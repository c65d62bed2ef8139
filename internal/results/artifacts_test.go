package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFindArtifacts(t *testing.T) {
	key := filepath.Join(t.TempDir(), "run")
	touchFile(t, key+"_output_2.csv")
	touchFile(t, key+"_output_0.5.csv")
	touchFile(t, key+"_output_1.0.csv")

	artifacts, err := FindArtifacts(key)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	// Ordered by rate, QPS text preserved verbatim
	assert.Equal(t, "0.5", artifacts[0].QPS)
	assert.Equal(t, "1.0", artifacts[1].QPS)
	assert.Equal(t, "2", artifacts[2].QPS)
	assert.Equal(t, key+"_output_1.0.csv", artifacts[1].Path)
}

func TestFindArtifacts_IgnoresNonArtifacts(t *testing.T) {
	key := filepath.Join(t.TempDir(), "run")
	touchFile(t, key+"_output_4.0.csv")
	touchFile(t, key+"_output_notes.csv")
	touchFile(t, key+"_summary.csv")

	artifacts, err := FindArtifacts(key)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "4.0", artifacts[0].QPS)
}

func TestFindArtifacts_Empty(t *testing.T) {
	key := filepath.Join(t.TempDir(), "run")
	artifacts, err := FindArtifacts(key)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}
