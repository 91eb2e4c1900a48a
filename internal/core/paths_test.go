package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robottwo/fabcomplete/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	t.Run("uses configured cache dir", func(t *testing.T) {
		root := t.TempDir()
		cfg := config.Default()
		cfg.CacheDir = root

		paths, err := ResolvePaths(cfg)
		require.NoError(t, err)

		assert.Equal(t, root, paths.CacheRoot)
		assert.Equal(t, filepath.Join(root, config.DefaultNamespace, LogFileName), paths.LogFile)
		assert.True(t, filepath.IsAbs(paths.WorkDir))

		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, wd, paths.WorkDir)
	})

	t.Run("explicit log file", func(t *testing.T) {
		cfg := config.Default()
		cfg.CacheDir = t.TempDir()
		cfg.LogFile = filepath.Join(t.TempDir(), "custom.zst")

		paths, err := ResolvePaths(cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg.LogFile, paths.LogFile)
	})

	t.Run("relative settings resolve against the working directory", func(t *testing.T) {
		testChdir(t, t.TempDir())
		wd, err := os.Getwd()
		require.NoError(t, err)

		cfg := config.Default()
		cfg.CacheDir = "cache"
		cfg.LogFile = filepath.Join("logs", "fab.zst")

		paths, err := ResolvePaths(cfg)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(wd, "cache"), paths.CacheRoot)
		assert.Equal(t, filepath.Join(wd, "logs", "fab.zst"), paths.LogFile)
	})
}

func TestPrepareLogFile(t *testing.T) {
	t.Run("creates the log directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", LogFileName)

		removed, err := PrepareLogFile(path, 1024)
		require.NoError(t, err)
		assert.False(t, removed)

		info, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("keeps a small log", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), LogFileName)
		require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

		removed, err := PrepareLogFile(path, 1024)
		require.NoError(t, err)
		assert.False(t, removed)
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("removes an oversized log", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), LogFileName)
		require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0644))

		removed, err := PrepareLogFile(path, 1024)
		require.NoError(t, err)
		assert.True(t, removed)
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("zero disables trimming", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), LogFileName)
		require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0644))

		removed, err := PrepareLogFile(path, 0)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
