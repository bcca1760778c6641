package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeStub creates an executable shell script standing in for yt-dlp or
// ffmpeg. Script bodies receive the real argument list, so stubs can mimic
// the tools' CLI contracts (stream to stdout, write to -o path, etc).
func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

// ffmpegCopyStub copies stdin to the last argument, which is where the real
// ffmpeg invocation puts the destination path.
const ffmpegCopyStub = `for arg in "$@"; do out="$arg"; done
cat - > "$out"`

// ytdlpWriteStub writes fixed bytes to the path following -o, mimicking the
// video download invocation.
const ytdlpWriteStub = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
printf 'VIDEODATA' > "$out"`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, ytdlpPath, ffmpegPath string) *Config {
	t.Helper()
	return &Config{
		Port:             "0",
		WorkDir:          filepath.Join(t.TempDir(), "work"),
		YtDlpPath:        ytdlpPath,
		FFmpegPath:       ffmpegPath,
		MaxConversions:   DefaultMaxConversions,
		RequestsPerSec:   DefaultRequestsPerSec,
		BurstSize:        DefaultBurstSize,
		MetadataTimeout:  10 * time.Second,
		PipelineTimeout:  30 * time.Second,
		MetadataCacheTTL: time.Minute,
	}
}

// workDirEmpty reports whether the store's directory holds no files.
func workDirEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) == 0
}
