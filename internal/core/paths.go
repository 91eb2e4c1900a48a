package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robottwo/fabcomplete/internal/cache"
	"github.com/robottwo/fabcomplete/internal/config"
)

// LogFileName is the default name of the compressed log inside the
// namespace directory of the cache root.
const LogFileName = "fab-complete.zst"

type Paths struct {
	CacheRoot string
	LogFile   string
	WorkDir   string
}

// ResolvePaths fills in every location from cfg, falling back to the
// per-user cache directory and the process working directory.
func ResolvePaths(cfg config.Config) (Paths, error) {
	root := cfg.CacheDir
	if root == "" {
		var err error
		root, err = cache.DefaultRoot()
		if err != nil {
			return Paths{}, err
		}
	}

	workDir, err := os.Getwd()
	if err != nil {
		return Paths{}, fmt.Errorf("failed to get working directory: %w", err)
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	root, err = filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = filepath.Join(root, cfg.Namespace, LogFileName)
	}
	// Relative settings are taken from the directory fab-complete runs in.
	logFile, err = filepath.Abs(logFile)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve log file: %w", err)
	}

	return Paths{
		CacheRoot: root,
		LogFile:   logFile,
		WorkDir:   workDir,
	}, nil
}

// PrepareLogFile makes sure the directory of path exists and removes the log
// once it has grown beyond maxBytes, so the log never grows without bound
// across keystrokes. A maxBytes of 0 disables trimming. It reports whether
// the file was removed.
func PrepareLogFile(path string, maxBytes int64) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxBytes == 0 {
		return false, nil
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Size() <= maxBytes {
		return false, nil
	}

	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}
