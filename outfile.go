package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// fileStore owns the working directory for transient output files. The
// directory is the only resource shared between in-flight requests, which is
// why every scope gets a unique, request-scoped filename.
type fileStore struct {
	dir string
	log *slog.Logger
}

func newFileStore(dir string, log *slog.Logger) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir %s: %w", dir, err)
	}
	s := &fileStore{dir: dir, log: log}
	s.sweep()
	return s, nil
}

// sweep removes files left behind by a previous crash. Runs once at startup,
// before any request can allocate a scope.
func (s *fileStore) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("work dir sweep failed", "error", err)
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.log.Warn("could not remove stale output file", "name", e.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("swept stale output files", "count", removed)
	}
}

// NewScope allocates a destination path unique to one request. The caller
// owns the scope for the lifetime of the request and must Close it on every
// exit path.
func (s *fileStore) NewScope(kind mediaKind) *outputScope {
	id := uuid.New().String()
	return &outputScope{
		ID:   id,
		Path: filepath.Join(s.dir, id+kind.ext()),
		log:  s.log,
	}
}

// outputScope ties a temporary output file to the lifetime of a single
// request: allocated before the pipeline starts, removed exactly once when
// the request ends, regardless of outcome.
type outputScope struct {
	ID   string
	Path string
	log  *slog.Logger
	once sync.Once
}

// Close removes the output file. Safe to call more than once; removal
// failures are logged, never propagated, so they cannot mask the primary
// result of the request.
func (sc *outputScope) Close() {
	sc.once.Do(func() {
		if err := os.Remove(sc.Path); err != nil && !os.IsNotExist(err) {
			sc.log.Warn("could not remove output file", "path", sc.Path, "error", err)
		}
	})
}

// ServeFile streams the finished file to the client with the correct media
// content type and length, reporting how many bytes were written. Zero bytes
// with an error means no response was started and the caller may still send
// an error status. The file handle is closed before the caller's deferred
// Close removes the path, which makes the deletion point deterministic:
// always after streaming has finished.
func (sc *outputScope) ServeFile(w http.ResponseWriter, kind mediaKind) (int64, error) {
	f, err := os.Open(sc.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", kind.contentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", kind.filename()))
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))

	return io.Copy(w, f)
}
