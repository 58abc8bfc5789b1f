package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management-api/internal/report/export"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_DSN", filepath.Join(dir, "ctl.db"))
	t.Setenv("LIBRARY_CONFIG", "")

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "schema version "), out)

	out, err = run(t, "create-admin", "--email", "Boss@Example.com", "--name", "Boss", "--password", "hunter22")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin boss@example.com")

	_, err = run(t, "create-admin", "--email", "boss@example.com", "--name", "Again", "--password", "hunter22")
	assert.Error(t, err, "duplicate email")

	_, err = run(t, "create-admin", "--email", "s@example.com", "--name", "S", "--password", "hunter22", "--role", "student")
	assert.ErrorContains(t, err, "role")

	out, err = run(t, "seed-books")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped 0")

	out, err = run(t, "seed-books")
	require.NoError(t, err)
	assert.Contains(t, out, "added 0")

	out, err = run(t, "report", "--range", "year")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalBooks": 10`)

	csvPath := filepath.Join(dir, "report.csv")
	_, err = run(t, "report", "--format", "csv", "--out", csvPath)
	require.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(export.CSVHeader, ",")))

	_, err = run(t, "report", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}
