package migration

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add reversals index", "add_reversals_index"},
		{"Add-Reversals-Index", "add_reversals_index"},
		{"ADD_REVERSALS_INDEX", "add_reversals_index"},
		{"add__reversals__index", "add_reversals_index"},
		{"Snapshots 2", "snapshots_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	mf, err := createMigration(dir, "add snapshot index", "Speeds up sync status queries", now)
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_snapshot_index.up.sql"), mf.UpPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add snapshot index")
	assert.Contains(t, string(up), "-- Speeds up sync status queries")
	assert.Contains(t, string(up), "2026-10-17T09:00:00Z")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Rollback: add snapshot index")

	second, err := createMigration(dir, "drop snapshot index", "", now)
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		migrations, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("sorted base names", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"000002_b.up.sql", "000002_b.down.sql",
			"000001_a.up.sql", "000001_a.down.sql",
			"README.md",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_a", "000002_b"}, migrations)
	})

	t.Run("repository migrations", func(t *testing.T) {
		_, file, _, ok := runtime.Caller(0)
		require.True(t, ok)
		dir := filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		require.NotEmpty(t, migrations)
		assert.Equal(t, "000001_create_collection_snapshots", migrations[0])
		for _, m := range migrations {
			assert.FileExists(t, filepath.Join(dir, m+".down.sql"))
		}
	})
}
