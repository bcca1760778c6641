package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	stageYtDlp  = "yt-dlp"
	stageFFmpeg = "ffmpeg"
)

// pipelineRunner launches the downloader and, for audio conversions, chains
// its stdout into a transcoder process. It is a pure orchestration boundary:
// it never inspects the media bytes flowing between the stages.
type pipelineRunner struct {
	ytdlpPath  string
	ffmpegPath string
	timeout    time.Duration
	log        *slog.Logger
}

func newPipelineRunner(cfg *Config, log *slog.Logger) *pipelineRunner {
	return &pipelineRunner{
		ytdlpPath:  cfg.YtDlpPath,
		ffmpegPath: cfg.FFmpegPath,
		timeout:    cfg.PipelineTimeout,
		log:        log,
	}
}

// Run executes the conversion pipeline for the given kind and reports a
// synthesized result. The caller's context cancels both stages, so a client
// disconnect never leaves orphaned child processes.
func (p *pipelineRunner) Run(ctx context.Context, url, format, dest string, kind mediaKind) *PipelineResult {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	var res *PipelineResult
	if kind == kindAudio {
		res = p.runAudio(ctx, url, format, dest)
	} else {
		res = p.runVideo(ctx, url, format, dest)
	}
	for _, stage := range res.Stages {
		p.log.Debug("pipeline stage finished", "stage", stage.Name, "exit_code", stage.ExitCode)
	}
	return res
}

// runAudio chains yt-dlp into ffmpeg over an io.Pipe. The pipe is synchronous,
// so back-pressure flows naturally: yt-dlp blocks whenever ffmpeg falls
// behind, and nothing is buffered in memory beyond the copy windows.
func (p *pipelineRunner) runAudio(ctx context.Context, url, format, dest string) *PipelineResult {
	ytdlp := exec.CommandContext(ctx, p.ytdlpPath,
		url,
		"--format", format,
		"--no-playlist",
		"--no-warnings",
		"-o", "-",
	)
	ffmpeg := exec.CommandContext(ctx, p.ffmpegPath,
		"-y",
		"-loglevel", "error",
		"-nostdin",
		"-i", "pipe:0",
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "44100",
		"-ab", "192k",
		"-f", "mp3",
		dest,
	)

	// Both stages must be fully wired before either starts.
	pr, pw := io.Pipe()
	ytdlp.Stdout = pw
	ffmpeg.Stdin = pr

	// If a stage dies, don't let its pipe-copy goroutines hold Wait hostage.
	ytdlp.WaitDelay = 10 * time.Second
	ffmpeg.WaitDelay = 10 * time.Second

	// os/exec drains these writers on dedicated goroutines, so a stage
	// spewing more stderr than an OS pipe buffer holds cannot deadlock us.
	var ytdlpStderr, ffmpegStderr bytes.Buffer
	ytdlp.Stderr = &ytdlpStderr
	ffmpeg.Stderr = &ffmpegStderr

	if err := ytdlp.Start(); err != nil {
		return startFailure(stageYtDlp, err)
	}
	if err := ffmpeg.Start(); err != nil {
		_ = ytdlp.Process.Kill()
		_ = ytdlp.Wait()
		return startFailure(stageFFmpeg, err)
	}

	// Closing pw with yt-dlp's exit status propagates EOF (or the failure)
	// to ffmpeg's stdin so it can flush and exit instead of hanging.
	ytdlpDone := make(chan error, 1)
	go func() {
		err := ytdlp.Wait()
		pw.CloseWithError(err)
		ytdlpDone <- err
	}()

	ffmpegErr := ffmpeg.Wait()
	if ffmpegErr != nil {
		// ffmpeg quit early: unblock the upstream writer and take yt-dlp
		// down with it, otherwise its Wait never returns.
		pr.CloseWithError(ffmpegErr)
		_ = ytdlp.Process.Kill()
	}
	ytdlpErr := <-ytdlpDone

	stages := []StageExit{
		{Name: stageYtDlp, ExitCode: exitCode(ytdlp), Stderr: strings.TrimSpace(ytdlpStderr.String())},
		{Name: stageFFmpeg, ExitCode: exitCode(ffmpeg), Stderr: strings.TrimSpace(ffmpegStderr.String())},
	}
	return p.finish(stages, []error{ytdlpErr, ffmpegErr}, dest)
}

// runVideo has no transcode stage: yt-dlp writes the requested container
// straight to the destination path.
func (p *pipelineRunner) runVideo(ctx context.Context, url, format, dest string) *PipelineResult {
	ytdlp := exec.CommandContext(ctx, p.ytdlpPath,
		url,
		"--format", format,
		"--no-playlist",
		"--no-warnings",
		"-o", dest,
	)

	var stderr bytes.Buffer
	ytdlp.Stderr = &stderr
	ytdlp.Stdout = io.Discard

	if err := ytdlp.Start(); err != nil {
		return startFailure(stageYtDlp, err)
	}
	ytdlpErr := ytdlp.Wait()

	stages := []StageExit{
		{Name: stageYtDlp, ExitCode: exitCode(ytdlp), Stderr: strings.TrimSpace(stderr.String())},
	}
	return p.finish(stages, []error{ytdlpErr}, dest)
}

// finish synthesizes the success/failure result: every stage must have
// exited zero and the destination file must exist with non-zero size.
func (p *pipelineRunner) finish(stages []StageExit, waitErrs []error, dest string) *PipelineResult {
	res := &PipelineResult{Stages: stages}

	fail := func(i int) *PipelineResult {
		diag := stages[i].Stderr
		if diag == "" && waitErrs[i] != nil {
			diag = waitErrs[i].Error()
		}
		res.Diagnostic = diag
		res.failure = &PipelineError{Stage: stages[i].Name, ExitCode: stages[i].ExitCode, Diagnostic: diag}
		return res
	}

	// Blame the stage that actually exited non-zero. A clean stage can still
	// report a pipe copy error from Wait when its peer died mid-stream; that
	// is collateral, not the root cause.
	for i, stage := range stages {
		if stage.ExitCode != 0 {
			return fail(i)
		}
	}
	for i := range stages {
		if waitErrs[i] != nil {
			return fail(i)
		}
	}

	fi, err := os.Stat(dest)
	if err != nil || fi.Size() == 0 {
		res.Diagnostic = "pipeline exited cleanly but produced no output"
		res.failure = &PipelineError{Stage: "output", ExitCode: 0, Diagnostic: res.Diagnostic}
		return res
	}

	res.Succeeded = true
	res.OutputFile = dest
	return res
}

func startFailure(stage string, err error) *PipelineResult {
	pe := &PipelineError{Stage: stage, ExitCode: -1, Diagnostic: err.Error()}
	return &PipelineResult{
		Stages:     []StageExit{{Name: stage, ExitCode: -1, Stderr: err.Error()}},
		Diagnostic: err.Error(),
		failure:    pe,
	}
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
