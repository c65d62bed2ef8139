package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run_output_1.0.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSV(t *testing.T) {
	path := writeArtifact(t, `prompt_tokens,generation_tokens,ttft,generation_time,launch_time,finish_time
120,256,0.42,3.1,1000.0,1004.0
80,128,0.35,1.8,1001.0,1003.5
`)

	records, err := ParseCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 120, records[0].PromptTokens)
	assert.Equal(t, 256, records[0].GenerationTokens)
	assert.InDelta(t, 0.42, records[0].TTFT, 1e-9)
	assert.InDelta(t, 1004.0, records[0].FinishTime, 1e-9)
}

func TestParseCSV_ColumnOrderIndependent(t *testing.T) {
	path := writeArtifact(t, `ttft,finish_time,launch_time,prompt_tokens,generation_tokens,generation_time
0.5,1002.0,1000.0,10,20,1.5
`)

	records, err := ParseCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 0.5, records[0].TTFT, 1e-9)
	assert.Equal(t, 20, records[0].GenerationTokens)
}

func TestParseCSV_MissingColumn(t *testing.T) {
	path := writeArtifact(t, `prompt_tokens,generation_tokens
1,2
`)

	_, err := ParseCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttft")
}

func TestParseCSV_Empty(t *testing.T) {
	path := writeArtifact(t, "")
	_, err := ParseCSV(path)
	assert.Error(t, err)
}

func TestParseCSV_NoFile(t *testing.T) {
	_, err := ParseCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
