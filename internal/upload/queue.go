// Package upload runs asset uploads detached from the publish that queued
// them. Failures are logged and kept for inspection; they never reach the
// publish result.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/starford/ghostwriter/internal/metrics"
	"github.com/starford/ghostwriter/internal/models"
)

// Uploader sends one file to the blog.
type Uploader interface {
	Upload(ctx context.Context, kind models.AssetKind, name, contentType string, r io.Reader) (string, error)
}

// Source opens vault files.
type Source interface {
	Open(path string) (io.ReadCloser, error)
}

// Failure records an upload that did not succeed.
type Failure struct {
	Asset models.Asset
	Err   error
	At    time.Time
}

// Queue runs uploads in background goroutines, bounded by a semaphore.
type Queue struct {
	up      Uploader
	src     Source
	logger  *slog.Logger
	metrics metrics.Recorder
	timeout time.Duration

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	failures []Failure
	uploaded []models.Asset
}

// Option configures a Queue.
type Option func(*Queue)

// WithConcurrency bounds the number of uploads in flight.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.sem = make(chan struct{}, n)
		}
	}
}

// WithTimeout bounds a single upload.
func WithTimeout(d time.Duration) Option { return func(q *Queue) { q.timeout = d } }

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option { return func(q *Queue) { q.metrics = metrics.OrNoop(r) } }

// NewQueue creates a queue that reads from src and uploads through up.
func NewQueue(up Uploader, src Source, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		up:      up,
		src:     src,
		logger:  logger,
		metrics: metrics.NoopRecorder{},
		timeout: 2 * time.Minute,
		sem:     make(chan struct{}, 4),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue starts the upload and returns immediately.
func (q *Queue) Enqueue(a models.Asset) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.sem <- struct{}{}
		defer func() { <-q.sem }()
		q.run(a)
	}()
}

// Wait blocks until every queued upload has finished.
func (q *Queue) Wait() { q.wg.Wait() }

// Failures returns a copy of the failures recorded so far.
func (q *Queue) Failures() []Failure {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Failure(nil), q.failures...)
}

// Uploaded returns the assets uploaded so far.
func (q *Queue) Uploaded() []models.Asset {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.Asset(nil), q.uploaded...)
}

func (q *Queue) run(a models.Asset) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	url, err := q.upload(ctx, a)
	if err != nil {
		q.metrics.IncUpload(string(a.Kind), metrics.OutcomeFailure)
		q.logger.Warn("upload: failed",
			slog.String("asset", a.Name),
			slog.String("source", a.Source),
			slog.String("error", err.Error()))
		q.mu.Lock()
		q.failures = append(q.failures, Failure{Asset: a, Err: err, At: time.Now()})
		q.mu.Unlock()
		return
	}
	q.metrics.IncUpload(string(a.Kind), metrics.OutcomeSuccess)
	q.logger.Info("upload: done", slog.String("asset", a.Name), slog.String("url", url))
	a.URL = url
	q.mu.Lock()
	q.uploaded = append(q.uploaded, a)
	q.mu.Unlock()
}

func (q *Queue) upload(ctx context.Context, a models.Asset) (string, error) {
	if q.up == nil || q.src == nil {
		return "", errors.New("upload: queue has no uploader or source")
	}
	rc, err := q.src.Open(a.Source)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	head := make([]byte, 512)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("upload: read %s: %w", a.Source, err)
	}
	head = head[:n]

	ct := ContentType(a.Name, head)
	kind := a.Kind
	if kind == "" {
		kind = KindFor(ct)
	}
	body := io.MultiReader(strings.NewReader(string(head)), rc)
	return q.up.Upload(ctx, kind, a.Name, ct, body)
}

// mediaTypes lists audio and video extensions absent from the builtin
// mime table.
var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// ContentType guesses a MIME type from the file extension, falling back to
// sniffing the first bytes.
func ContentType(name string, head []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
		return ct
	}
	ct := http.DetectContentType(head)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

// KindFor routes a MIME type to the images, media or files endpoint.
func KindFor(contentType string) models.AssetKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.AssetImage
	case strings.HasPrefix(contentType, "audio/"), strings.HasPrefix(contentType, "video/"):
		return models.AssetMedia
	default:
		return models.AssetFile
	}
}
