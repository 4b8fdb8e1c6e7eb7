package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "env: test\n" +
		"log_level: error\n" +
		"database:\n  path: " + filepath.Join(dir, "catalog.db") + "\n" +
		"index:\n  backend: " + backend + "\n" +
		"embedding:\n  provider: local\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (map[string]interface{}, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	if err := app.Run(append([]string{"skillcourse"}, args...)); err != nil {
		return nil, err
	}
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result), out.String())
	return result, nil
}

func TestImportSyncRecommend(t *testing.T) {
	cfg := writeConfig(t, "sqlite")

	out, err := run(t, "--config", cfg, "import", "testdata/courses.json")
	require.NoError(t, err)
	assert.Equal(t, float64(4), out["records"])
	assert.Equal(t, float64(3), out["imported"])
	assert.Equal(t, float64(1), out["invalid"])
	assert.Equal(t, float64(0), out["indexed"])

	out, err = run(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Equal(t, true, out["sync_needed"])

	out, err = run(t, "--config", cfg, "sync")
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["added"])

	out, err = run(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Equal(t, false, out["sync_needed"])
	assert.Equal(t, float64(3), out["indexed_courses"])

	out, err = run(t, "--config", cfg, "recommend", "--skill", "Docker", "--top-n", "1")
	require.NoError(t, err)
	assert.Equal(t, "index", out["backend"])
	recs := out["recommendations"].([]interface{})
	require.Len(t, recs, 1)
	assert.Equal(t, "docker-101", recs[0].(map[string]interface{})["course_id"])

	out, err = run(t, "--config", cfg, "recommend", "-s", "Docker", "-s", "SQL", "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Docker", "SQL"}, out["skills"])
	assert.Equal(t, float64(2), out["count"])
}

func TestNoIndexBackend(t *testing.T) {
	cfg := writeConfig(t, "none")

	_, err := run(t, "--config", cfg, "import", "--index", "testdata/courses.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index backend")

	_, err = run(t, "--config", cfg, "import", "testdata/courses.json")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "recommend", "--skill", "SQL")
	require.NoError(t, err)
	assert.Equal(t, "bruteforce", out["backend"])

	_, err = run(t, "--config", cfg, "sync")
	require.Error(t, err)
}

func TestCommandErrors(t *testing.T) {
	cfg := writeConfig(t, "sqlite")

	t.Run("missing config file", func(t *testing.T) {
		_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "status")
		require.Error(t, err)
	})

	t.Run("import needs a file", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "import")
		require.Error(t, err)
	})

	t.Run("recommend needs a skill", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "recommend")
		require.Error(t, err)
	})

	t.Run("invalid top-n", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "recommend", "--skill", "Go", "--top-n=-1")
		require.Error(t, err)
	})
}
