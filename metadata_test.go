package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullMetadataJSON = `{
  "title": "Never Gonna Give You Up",
  "uploader": "Rick Astley",
  "duration": 213.0,
  "view_count": 1400000000,
  "like_count": 16000000,
  "upload_date": "20091025",
  "description": "The official video.",
  "thumbnails": [{"url": "https://i.example.com/hq.jpg", "width": 480}]
}`

func newTestFetcher(t *testing.T, ytdlpScript string) *metadataFetcher {
	t.Helper()
	ytdlp := writeStub(t, t.TempDir(), "yt-dlp", ytdlpScript)
	cfg := testConfig(t, ytdlp, "ffmpeg")
	cache := newMetadataCache(cfg, testLogger())
	return newMetadataFetcher(cfg, cache, testLogger())
}

func TestFetchMetadataAllFields(t *testing.T) {
	fetcher := newTestFetcher(t, `cat <<'EOF'
`+fullMetadataJSON+`
EOF`)

	meta, err := fetcher.Fetch(context.Background(), "https://example.com/v")
	require.NoError(t, err)

	assert.Equal(t, "Never Gonna Give You Up", meta.Title)
	assert.Equal(t, "Rick Astley", meta.Author)
	assert.Equal(t, int64(213), meta.DurationSeconds)
	assert.Equal(t, int64(1400000000), meta.ViewCount)
	assert.Equal(t, int64(16000000), meta.LikeCount)
	assert.Equal(t, "20091025", meta.UploadDate)
	assert.Equal(t, "The official video.", meta.Description)
	require.Len(t, meta.Thumbnails, 1)
	assert.JSONEq(t, `{"url": "https://i.example.com/hq.jpg", "width": 480}`, string(meta.Thumbnails[0]))
}

func TestFetchMetadataOptionalDefaults(t *testing.T) {
	fetcher := newTestFetcher(t, `cat <<'EOF'
{"title": "t", "uploader": "u", "duration": 10, "upload_date": "20240101"}
EOF`)

	meta, err := fetcher.Fetch(context.Background(), "https://example.com/v")
	require.NoError(t, err)

	assert.Zero(t, meta.ViewCount)
	assert.Zero(t, meta.LikeCount)
	assert.Empty(t, meta.Description)
	assert.Empty(t, meta.Thumbnails)
}

func TestFetchMetadataMissingRequiredField(t *testing.T) {
	fetcher := newTestFetcher(t, `cat <<'EOF'
{"uploader": "u", "duration": 10, "upload_date": "20240101"}
EOF`)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/v")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "title")
}

func TestFetchMetadataToolFailure(t *testing.T) {
	fetcher := newTestFetcher(t, `echo 'ERROR: unsupported URL' >&2
exit 1`)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/v")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Diagnostic, "unsupported URL")
}

func TestFetchMetadataUnparseableOutput(t *testing.T) {
	fetcher := newTestFetcher(t, `echo 'not json'`)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/v")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "unparseable")
}
