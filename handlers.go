package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

type server struct {
	cfg      *Config
	log      *slog.Logger
	store    *fileStore
	pipeline *pipelineRunner
	metadata *metadataFetcher
	limiter  *rate.Limiter
	sem      chan struct{} // bounds simultaneous conversion pipelines
	stats    *serverStats
}

func newServer(cfg *Config, log *slog.Logger) (*server, error) {
	store, err := newFileStore(cfg.WorkDir, log)
	if err != nil {
		return nil, err
	}
	cache := newMetadataCache(cfg, log)
	return &server{
		cfg:      cfg,
		log:      log,
		store:    store,
		pipeline: newPipelineRunner(cfg, log),
		metadata: newMetadataFetcher(cfg, cache, log),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.BurstSize),
		sem:      make(chan struct{}, cfg.MaxConversions),
		stats:    newServerStats(),
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/video-details", s.handleVideoDetails)
	mux.HandleFunc("/api/to-audio", func(w http.ResponseWriter, r *http.Request) {
		s.handleConvert(w, r, kindAudio)
	})
	mux.HandleFunc("/api/to-video", func(w http.ResponseWriter, r *http.Request) {
		s.handleConvert(w, r, kindVideo)
	})
	mux.HandleFunc("/healthz", s.handleHealth)
	return s.logRequests(s.rateLimit(s.cors(mux)))
}

// parseMediaRequest validates the one required field before any external
// process is launched. GET requests may carry the URL in query parameters.
func parseMediaRequest(r *http.Request) (*MediaRequest, error) {
	var req MediaRequest
	if r.Method == http.MethodGet {
		req.URL = r.URL.Query().Get("url")
		req.Format = r.URL.Query().Get("format")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("url is required")
	}
	if req.Format == "" {
		req.Format = DefaultFormatSelector
	}
	return &req, nil
}

func (s *server) handleVideoDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	req, err := parseMediaRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	meta, err := s.metadata.Fetch(r.Context(), req.URL)
	if err != nil {
		s.log.Error("metadata fetch failed", "url", req.URL, "error", err)
		var fe *FetchError
		if errors.As(err, &fe) {
			writeError(w, http.StatusInternalServerError, fe.Reason, fe.Diagnostic)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch video details", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// handleConvert drives one conversion request end to end: allocate a scoped
// output file, run the pipeline against it, stream the result, clean up.
func (s *server) handleConvert(w http.ResponseWriter, r *http.Request, kind mediaKind) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	req, err := parseMediaRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		writeError(w, http.StatusServiceUnavailable, "server busy, please try again later", "")
		return
	}

	s.stats.markStarted()
	scope := s.store.NewScope(kind)
	defer scope.Close()

	log := s.log.With("request_id", scope.ID, "kind", kind.String(), "url", req.URL)
	log.Info("conversion started", "format", req.Format)

	res := s.pipeline.Run(r.Context(), req.URL, req.Format, scope.Path, kind)
	if err := res.Err(); err != nil {
		s.stats.markFailed()
		log.Error("pipeline failed", "error", err)
		writeError(w, http.StatusInternalServerError, "conversion failed", res.Diagnostic)
		return
	}

	if written, err := scope.ServeFile(w, kind); err != nil {
		s.stats.markFailed()
		if written == 0 {
			log.Error("could not open output file for streaming", "error", err)
			writeError(w, http.StatusInternalServerError, "conversion failed", err.Error())
			return
		}
		// The client went away or the write failed mid-stream. Nothing
		// more can be sent; cleanup still runs via the deferred Close.
		log.Warn("streaming interrupted", "error", err)
		return
	}

	s.stats.markCompleted()
	log.Info("conversion completed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, apiError{Error: msg, Detail: detail})
}
