package proxy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/chatpsy/internal/analysis"
	"github.com/raaihank/chatpsy/internal/cache"
	"github.com/raaihank/chatpsy/internal/chatstats"
	"github.com/raaihank/chatpsy/internal/ingest"
	"github.com/raaihank/chatpsy/internal/privacy"
	"github.com/raaihank/chatpsy/internal/store"
	"github.com/raaihank/chatpsy/internal/websocket"
	"go.uber.org/zap"
)

const (
	multipartMemory = 32 << 20
	jsonBodyLimit   = 64 << 20
	defaultHistory  = 20
	maxHistory      = 200
)

// chatRequest is the JSON alternative to a multipart upload.
type chatRequest struct {
	Text      string `json:"text"`
	RangeFrom string `json:"range_from,omitempty"`
	RangeTo   string `json:"range_to,omitempty"`
}

type anonymizeResponse struct {
	Anonymized  string             `json:"anonymized"`
	Mapping     map[string]string  `json:"mapping"`
	RawPreview  string             `json:"raw_preview"`
	AnonPreview string             `json:"anon_preview"`
	FileNames   []string           `json:"file_names"`
	TotalSize   int64              `json:"total_size"`
	Rejected    []ingest.Rejection `json:"rejected,omitempty"`
	Findings    []privacy.Finding  `json:"findings"`
}

type chatMetaResponse struct {
	chatstats.ChatMeta
	Source           string `json:"source"` // remote or local
	UploadLabel      string `json:"upload_label"`
	RecommendedLabel string `json:"recommended_label"`
	RangeBytes       *int64 `json:"range_bytes,omitempty"`
}

// analyzeResponse adds the alias mapping so the caller can show real
// names locally. The mapping is never sent upstream, cached or stored.
type analyzeResponse struct {
	*analysis.AnalyzeResponse
	Mapping map[string]string `json:"mapping"`
	Cached  bool              `json:"cached"`
}

type analysisDetail struct {
	Record   store.AnalysisRecord `json:"record"`
	Response json.RawMessage      `json:"response"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":              "chatpsy",
		"version":           Version,
		"passes":            s.anonymizer.Passes(),
		"whole_word_sweep":  s.config.Privacy.WholeWordSweep,
		"history_enabled":   s.history != nil,
		"websocket_enabled": s.wsHub.Enabled(),
		"status":            s.Status(r.Context()),
	})
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	upload, _, err := s.readChat(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res := s.anonymize(r, upload, "upload")
	n := s.config.Ingest.PreviewLength

	writeJSON(w, http.StatusOK, anonymizeResponse{
		Anonymized:  res.Anonymized,
		Mapping:     res.Mapping,
		RawPreview:  ingest.Preview(upload.Combined, n),
		AnonPreview: ingest.Preview(res.Anonymized, n),
		FileNames:   upload.FileNames,
		TotalSize:   upload.TotalSize,
		Rejected:    upload.Rejected,
		Findings:    res.Findings,
	})
}

func (s *Server) handleChatMeta(w http.ResponseWriter, r *http.Request) {
	upload, req, err := s.readChat(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := s.anonymize(r, upload, "meta")
	log := s.logger.WithRequestID(getRequestID(r.Context()))

	resp := chatMetaResponse{Source: "remote"}
	meta, err := s.analyzer.FetchMeta(r.Context(), res.Anonymized)
	if err != nil {
		log.Warn("Remote chat meta failed, computing locally", zap.Error(err))
		recommended, _ := s.config.Ingest.RecommendedBytes()
		resp.ChatMeta = chatstats.NewMeta(res.Anonymized, recommended)
		resp.Source = "local"
	} else {
		resp.ChatMeta = *meta
	}

	resp.UploadLabel = chatstats.FormatBytes(resp.UploadBytes)
	resp.RecommendedLabel = chatstats.FormatBytes(resp.RecommendedBytes)
	if req.RangeFrom != "" || req.RangeTo != "" {
		if n, ok := chatstats.EstimateRangeBytes(resp.ChatMeta, req.RangeFrom, req.RangeTo); ok {
			resp.RangeBytes = &n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	upload, req, err := s.readChat(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := s.anonymize(r, upload, "analyze")

	areq := analysis.AnalyzeRequest{ChatText: res.Anonymized, RangeFrom: req.RangeFrom, RangeTo: req.RangeTo}
	if err := analysis.Validate(areq); err != nil {
		s.fail(w, r, err)
		return
	}

	event := websocket.AnalysisEvent{Participants: len(res.Mapping), InputBytes: upload.TotalSize}
	broadcast := func(status string) {
		event.Status = status
		event.DurationMS = float64(time.Since(start).Microseconds()) / 1000
		s.wsHub.BroadcastEvent(websocket.NewEvent(websocket.EventTypeAnalysis, requestID, event))
	}

	key := cache.AnalysisKey(s.config.Cache.KeyPrefix, res.Anonymized, req.RangeFrom, req.RangeTo)
	if data, ok, err := s.cache.Get(r.Context(), key); err != nil {
		log.Warn("Cache lookup failed", zap.Error(err))
	} else if ok {
		var cached analysis.AnalyzeResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			log.Info("Analysis served from cache")
			broadcast("cached")
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, analyzeResponse{AnalyzeResponse: &cached, Mapping: res.Mapping, Cached: true})
			return
		}
		log.Warn("Discarding unreadable cache entry")
	}

	out, err := s.analyzer.Analyze(r.Context(), areq)
	if err != nil {
		broadcast(analysisStatus(err))
		s.fail(w, r, &upstreamError{err: err})
		return
	}
	s.totalAnalyses.Add(1)

	data, err := json.Marshal(out)
	if err != nil {
		s.fail(w, r, fmt.Errorf("failed to encode analysis: %w", err))
		return
	}
	if err := s.cache.Set(r.Context(), key, data); err != nil {
		log.Warn("Failed to cache analysis", zap.Error(err))
	}

	if s.history != nil {
		rec := &store.AnalysisRecord{
			TextHash:     hashText(res.Anonymized),
			UploadBytes:  upload.TotalSize,
			Participants: len(res.Mapping),
			RangeFrom:    req.RangeFrom,
			RangeTo:      req.RangeTo,
			Response:     string(data),
		}
		if err := s.history.Save(r.Context(), rec); err != nil {
			log.Warn("Failed to store analysis", zap.Error(err))
		} else {
			event.AnalysisID = rec.ID
			w.Header().Set("X-Record-ID", rec.ID)
		}
	}

	broadcast("ok")
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, analyzeResponse{AnalyzeResponse: out, Mapping: res.Mapping})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.fail(w, r, errHistoryDisabled)
		return
	}

	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, &badRequest{msg: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistory)
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []store.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": recs})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.fail(w, r, errHistoryDisabled)
		return
	}

	rec, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisDetail{Record: *rec, Response: json.RawMessage(rec.Response)})
}

// readChat accepts either a multipart upload ("files" plus optional
// range_from/range_to fields) or a JSON chatRequest.
func (s *Server) readChat(w http.ResponseWriter, r *http.Request) (*ingest.Upload, chatRequest, error) {
	var req chatRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		limit, err := s.config.Ingest.MaxUploadBytes()
		if err != nil {
			return nil, req, err
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, req, err
			}
			return nil, req, &badRequest{msg: "invalid multipart form: " + err.Error()}
		}
		defer r.MultipartForm.RemoveAll()

		req.RangeFrom = r.FormValue("range_from")
		req.RangeTo = r.FormValue("range_to")

		headers := r.MultipartForm.File["files"]
		if len(headers) == 0 {
			return nil, req, &badRequest{msg: `no files in form field "files"`}
		}
		files := make([]ingest.File, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, req, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, req, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
			}
			files = append(files, ingest.File{Name: fh.Filename, Data: data})
		}

		upload, err := s.loader.Load(files)
		return upload, req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, req, err
		}
		return nil, req, &badRequest{msg: "invalid JSON body: " + err.Error()}
	}
	if req.Text == "" {
		return nil, req, &badRequest{msg: "text is required"}
	}

	return &ingest.Upload{
		Combined:  req.Text,
		FileNames: []string{},
		TotalSize: int64(len(req.Text)),
	}, req, nil
}

// anonymize runs the pipeline and reports counts on the live feed.
func (s *Server) anonymize(r *http.Request, upload *ingest.Upload, source string) privacy.Result {
	start := time.Now()
	res := s.anonymizer.Anonymize(upload.Combined)
	s.totalAnonymizations.Add(1)

	s.wsHub.BroadcastEvent(websocket.NewEvent(websocket.EventTypeAnonymization, getRequestID(r.Context()), websocket.AnonymizationEvent{
		Source:       source,
		Files:        len(upload.FileNames),
		InputBytes:   upload.TotalSize,
		Participants: len(res.Mapping),
		Findings:     res.Findings,
		ProcessingMS: float64(time.Since(start).Microseconds()) / 1000,
	}))
	return res
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	log := s.logger.WithRequestID(getRequestID(r.Context()))
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Int("status_code", status), zap.Error(err))
	} else {
		log.Info("Request rejected", zap.Int("status_code", status), zap.String("error", body.Error))
	}
	writeJSON(w, status, body)
}

func analysisStatus(err error) string {
	var rateLimit *analysis.RateLimitError
	switch {
	case errors.Is(err, analysis.ErrTimeout):
		return "timeout"
	case errors.As(err, &rateLimit):
		return "rate_limited"
	default:
		return "error"
	}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
