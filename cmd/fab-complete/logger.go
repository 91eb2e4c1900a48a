package main

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/robottwo/fabcomplete/internal/config"
	"github.com/robottwo/fabcomplete/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initializeLogger builds the file logger. Standard output carries the
// completion protocol, so log entries only ever go to the compressed file.
// The returned func closes the sink, which ends the zstd frame.
func initializeLogger(cfg config.Config, paths core.Paths) (*zap.Logger, func(), error) {
	if !cfg.LoggingEnabled() {
		return zap.NewNop(), func() {}, nil
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}

	if _, err := core.PrepareLogFile(paths.LogFile, cfg.LogMaxBytes); err != nil {
		return nil, nil, err
	}

	sink, closeSink, err := zap.Open(logSinkURL(paths.LogFile))
	if err != nil {
		return nil, nil, err
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	logger := zap.New(
		zapcore.NewCore(encoder, sink, level),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
	return logger, closeSink, nil
}

// logSinkURL turns an absolute log path into a URL for the zstd sink.
func logSinkURL(path string) string {
	return (&url.URL{Scheme: "zstd", Path: filepath.ToSlash(path)}).String()
}

// zstdMagic opens every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// newCompressedSink opens the log named by u.Path. One completion request is
// one process, so each process writes one frame: appended after earlier
// frames, or replacing the file when it holds anything else.
func newCompressedSink(u *url.URL) (zap.Sink, error) {
	file, err := os.OpenFile(u.Path, logOpenFlags(u.Path), 0644)
	if err != nil {
		return nil, err
	}

	encoder, err := zstd.NewWriter(file,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &compressedSink{file: file, encoder: encoder}, nil
}

func logOpenFlags(path string) int {
	flags := os.O_CREATE | os.O_WRONLY
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		return flags
	}
	if hasZstdMagic(path) {
		return flags | os.O_APPEND
	}
	return flags | os.O_TRUNC
}

func hasZstdMagic(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	header := make([]byte, len(zstdMagic))
	if _, err := io.ReadFull(file, header); err != nil {
		return false
	}
	return bytes.Equal(header, zstdMagic)
}

type compressedSink struct {
	file    *os.File
	encoder *zstd.Encoder
}

// Write reports len(p), not the compressed size, so zap sees a full write.
func (s *compressedSink) Write(p []byte) (int, error) {
	if _, err := s.encoder.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *compressedSink) Sync() error {
	if err := s.encoder.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close ends the frame and releases the file.
func (s *compressedSink) Close() error {
	return errors.Join(s.encoder.Close(), s.file.Close())
}
