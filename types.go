package main

import (
	"encoding/json"
	"fmt"
)

// MediaRequest is the body accepted by all three API endpoints.
type MediaRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// VideoMetadata is the response shape of /api/video-details. Thumbnails are
// passed through untouched as the downloader reports them.
type VideoMetadata struct {
	Title           string            `json:"title"`
	Author          string            `json:"author"`
	DurationSeconds int64             `json:"duration_seconds"`
	ViewCount       int64             `json:"view_count"`
	LikeCount       int64             `json:"like_count"`
	UploadDate      string            `json:"upload_date"`
	Description     string            `json:"description"`
	Thumbnails      []json.RawMessage `json:"thumbnails"`
}

// mediaKind selects between the two conversion pipelines.
type mediaKind int

const (
	kindAudio mediaKind = iota
	kindVideo
)

func (k mediaKind) ext() string {
	if k == kindAudio {
		return ".mp3"
	}
	return ".mp4"
}

func (k mediaKind) contentType() string {
	if k == kindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

func (k mediaKind) filename() string {
	if k == kindAudio {
		return "audio.mp3"
	}
	return "video.mp4"
}

func (k mediaKind) String() string {
	if k == kindAudio {
		return "audio"
	}
	return "video"
}

// FetchError reports a failed or unusable metadata lookup.
type FetchError struct {
	Reason     string
	Diagnostic string // captured stderr, if any
}

func (e *FetchError) Error() string {
	if e.Diagnostic == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Diagnostic)
}

// PipelineError reports a conversion pipeline failure: a stage exited
// non-zero, a stage could not be started, or the destination file was
// missing or empty after both stages terminated.
type PipelineError struct {
	Stage      string // name of the failing stage, or "output" for a bad destination file
	ExitCode   int
	Diagnostic string
}

func (e *PipelineError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s failed (exit %d)", e.Stage, e.ExitCode)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Stage, e.ExitCode, e.Diagnostic)
}

// StageExit records the outcome of one pipeline stage.
type StageExit struct {
	Name     string
	ExitCode int
	Stderr   string
}

// PipelineResult is the synthesized outcome of a pipeline run. OutputFile is
// set only when Succeeded is true.
type PipelineResult struct {
	Succeeded  bool
	Stages     []StageExit
	Diagnostic string
	OutputFile string

	failure *PipelineError
}

// Err returns the typed failure, or nil when the run succeeded.
func (r *PipelineResult) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

// apiError is the JSON body of every non-2xx response.
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
