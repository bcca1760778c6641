package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ytdlpInfo mirrors the fields we consume from `yt-dlp -J` output.
type ytdlpInfo struct {
	Title       string            `json:"title"`
	Uploader    string            `json:"uploader"`
	Duration    float64           `json:"duration"`
	ViewCount   int64             `json:"view_count"`
	LikeCount   int64             `json:"like_count"`
	UploadDate  string            `json:"upload_date"`
	Description string            `json:"description"`
	Thumbnails  []json.RawMessage `json:"thumbnails"`
}

// metadataFetcher invokes the downloader in metadata-only mode. Strictly
// request/response: the process never outlives the call.
type metadataFetcher struct {
	ytdlpPath string
	timeout   time.Duration
	cache     *metadataCache
	log       *slog.Logger
}

func newMetadataFetcher(cfg *Config, cache *metadataCache, log *slog.Logger) *metadataFetcher {
	return &metadataFetcher{
		ytdlpPath: cfg.YtDlpPath,
		timeout:   cfg.MetadataTimeout,
		cache:     cache,
		log:       log,
	}
}

func (f *metadataFetcher) Fetch(ctx context.Context, url string) (*VideoMetadata, error) {
	if meta, ok := f.cache.Get(ctx, url); ok {
		return meta, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ytdlpPath,
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--skip-download",
		url,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return nil, &FetchError{Reason: "metadata extraction failed", Diagnostic: diag}
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, &FetchError{Reason: "unparseable metadata output", Diagnostic: err.Error()}
	}

	// Title, author, duration and upload date are required; the remaining
	// fields default to zero values when the provider omits them.
	switch {
	case info.Title == "":
		return nil, &FetchError{Reason: "metadata missing required field: title"}
	case info.Uploader == "":
		return nil, &FetchError{Reason: "metadata missing required field: uploader"}
	case info.Duration <= 0:
		return nil, &FetchError{Reason: "metadata missing required field: duration"}
	case info.UploadDate == "":
		return nil, &FetchError{Reason: "metadata missing required field: upload_date"}
	}

	meta := &VideoMetadata{
		Title:           info.Title,
		Author:          info.Uploader,
		DurationSeconds: int64(info.Duration),
		ViewCount:       info.ViewCount,
		LikeCount:       info.LikeCount,
		UploadDate:      info.UploadDate,
		Description:     info.Description,
		Thumbnails:      info.Thumbnails,
	}

	f.cache.Put(ctx, url, meta)
	return meta, nil
}
