// Package mockserver serves canned answers for every endpoint the client consumes.
package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"math"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	// Registered for image.DecodeConfig on posted frames.
	_ "image/jpeg"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/projectlif/liplearn/internal/catalog"
	"github.com/projectlif/liplearn/internal/model"
)

const (
	maxUploadSize   = 32 << 20
	masteryPoints   = 50
	minAccuracy     = 0.60
	maxAccuracy     = 0.95
	rankedWords     = 5
	mouthPointCount = 20
)

// Options configures a Server.
type Options struct {
	Catalog *catalog.Catalog
	Seed    int64
	Logger  zerolog.Logger
}

// Server is an in-memory stand-in for the prediction and progress service.
type Server struct {
	catalog *catalog.Catalog
	log     zerolog.Logger

	mu        sync.Mutex
	rnd       *rand.Rand
	mastered  []string
	points    int
	totalTime int
}

// New returns a Server. A zero seed uses the current time.
func New(opts Options) *Server {
	if opts.Catalog == nil {
		opts.Catalog = catalog.New()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Server{
		catalog:  opts.Catalog,
		log:      opts.Logger.With().Str("component", "mock-server").Logger(),
		rnd:      rand.New(rand.NewSource(opts.Seed)),
		mastered: []string{},
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/predict/syllable/{category}", s.predictSyllable)
		r.Post("/predict/words", s.predictWords)
		r.Post("/detect/landmarks", s.detectLandmarks)
		r.Get("/progress/get", s.getProgress)
		r.Post("/progress/sync", s.syncProgress)
		r.Post("/syllable/{id}/master", s.markMastered)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("mock server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("correlation_id", r.Header.Get("X-Correlation-ID")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) predictSyllable(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "category"))
	cat, ok := s.catalog.Lookup(model.ModeSyllable, name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category "+name)
		return
	}
	if _, err := frameCount(r, "frames"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	label := cat.Entries[s.rnd.Intn(len(cat.Entries))].ID
	acc := s.accuracyLocked()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"predicted_syllable": label,
		"accuracy":           acc,
	})
}

func (s *Server) predictWords(w http.ResponseWriter, r *http.Request) {
	if _, err := frameCount(r, "frames"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.FormValue("category")
	if name == "" {
		name = catalog.DefaultCategory(model.ModeWord)
	}
	cat, ok := s.catalog.Lookup(model.ModeWord, name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category "+name)
		return
	}

	s.mu.Lock()
	labels := cat.Labels()
	s.rnd.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })
	labels = labels[:min(rankedWords, len(labels))]
	scores := make([]float64, len(labels))
	total := 0.0
	for i := range scores {
		scores[i] = s.rnd.Float64() + 0.01
		total += scores[i]
	}
	s.mu.Unlock()

	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	predictions := make([]map[string]any, 0, len(labels))
	for i, label := range labels {
		predictions = append(predictions, map[string]any{
			"word":       label,
			"confidence": round(scores[i] / total),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

func (s *Server) detectLandmarks(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("frame")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing frame")
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close of the uploaded part.
			_ = cerr
		}
	}()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		writeError(w, http.StatusBadRequest, "unreadable frame")
		return
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}

	// Mouth sits in the lower-middle third of a centered face.
	fw, fh := float64(cfg.Width), float64(cfg.Height)
	box := map[string]float64{"x": round(fw * 0.35), "y": round(fh * 0.6), "w": round(fw * 0.3), "h": round(fh * 0.15)}
	cx, cy := box["x"]+box["w"]/2, box["y"]+box["h"]/2
	points := make([]map[string]float64, 0, mouthPointCount)
	for i := 0; i < mouthPointCount; i++ {
		a := 2 * math.Pi * float64(i) / mouthPointCount
		points = append(points, map[string]float64{
			"x": round(cx + math.Cos(a)*box["w"]/2),
			"y": round(cy + math.Sin(a)*box["h"]/2),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"landmarks": map[string]any{
			"mouth_box":    box,
			"mouth_points": points,
		},
	})
}

func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	body := map[string]any{
		"mastered_syllables": append([]string{}, s.mastered...),
		"total_points":       s.points,
		"total_time":         s.totalTime,
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

type syncBody struct {
	Completed []string `json:"completed"`
	Points    int      `json:"points"`
	TotalTime int      `json:"total_time"`
}

func (s *Server) syncProgress(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid progress body")
		return
	}
	s.mu.Lock()
	for _, id := range body.Completed {
		s.addMasteredLocked(id)
	}
	s.points = max(s.points, body.Points)
	s.totalTime = max(s.totalTime, body.TotalTime)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) markMastered(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(chi.URLParam(r, "id"))
	if _, ok := s.catalog.Entry(id); !ok {
		writeError(w, http.StatusNotFound, "unknown syllable "+id)
		return
	}
	s.mu.Lock()
	added := s.addMasteredLocked(id)
	earned := 0
	if added {
		earned = masteryPoints
		s.points += earned
	}
	total := s.points
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       added,
		"total_points":  total,
		"points_earned": earned,
	})
}

func (s *Server) addMasteredLocked(id string) bool {
	id = strings.ToLower(id)
	for _, m := range s.mastered {
		if m == id {
			return false
		}
	}
	s.mastered = append(s.mastered, id)
	return true
}

func (s *Server) accuracyLocked() float64 {
	return round(minAccuracy + s.rnd.Float64()*(maxAccuracy-minAccuracy))
}

func frameCount(r *http.Request, field string) (int, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return 0, errors.New("invalid multipart body")
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return 0, errors.New("no frames provided")
	}
	return len(files), nil
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Best-effort: headers are already sent.
		_ = err
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
