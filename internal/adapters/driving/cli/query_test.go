package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestQueryCmd_Use(t *testing.T) {
	assert.Equal(t, "query [question]", queryCmd.Use)
}

func TestQueryCmd_RequiresQuestion(t *testing.T) {
	_, err := runCmd(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestQueryCmd_HasFlags(t *testing.T) {
	flag := queryCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag, "top-k flag should exist")
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)

	flag = queryCmd.Flags().Lookup("json")
	require.NotNil(t, flag, "json flag should exist")
	assert.Equal(t, "false", flag.DefValue)
}

func TestQueryCmd_EmptyIndex(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	out, err := runCmd(t, "query", "where", "is", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "No results.")
}

func TestQueryCmd_AfterIndex(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	_, err := runCmd(t, "index", writeRepo(t))
	require.NoError(t, err)

	out, err := runCmd(t, "query", "-k", "2", "which port does the server listen on")
	require.NoError(t, err)
	assert.Contains(t, out, "1. ")
	assert.Contains(t, out, "score")
	assert.NotContains(t, out, "3. ")
}

func TestQueryCmd_JSON(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	_, err := runCmd(t, "index", writeRepo(t))
	require.NoError(t, err)

	out, err := runCmd(t, "query", "--json", "-k", "3", "Friday rollbacks")
	require.NoError(t, err)

	var results []queryResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)
	for i, r := range results {
		assert.NotEmpty(t, r.ID)
		assert.NotEmpty(t, r.SourcePath)
		assert.NotEmpty(t, r.Text)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
}

func TestTopK(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Retrieval.TopK = 5

	assert.Equal(t, 5, topK(0, cfg))
	assert.Equal(t, 2, topK(2, cfg))
}
