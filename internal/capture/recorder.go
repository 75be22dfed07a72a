// Package capture implements the callback capture listener: an HTTP handler
// that acknowledges every request and persists it as a JSON record file.
package capture

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/notepub/internal/models"
	"github.com/starford/notepub/internal/storage"
)

// Indexer receives every record that was written successfully.
type Indexer interface {
	InsertCapture(file string, rec models.CapturedRequest) error
}

// Recorder writes one record file per captured request.
//
// File names are <UTC timestamp, ns precision>_<METHOD>_<ULID>.json. The ULID
// comes from a single monotonic entropy source guarded by mu, so two
// requests in the same instant still get distinct names; files are created
// exclusively, so an existing record is never overwritten.
type Recorder struct {
	store   storage.Provider
	index   Indexer
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithIndex also inserts written records into idx.
func WithIndex(idx Indexer) RecorderOption {
	return func(r *Recorder) { r.index = idx }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates the debug directory and returns a recorder writing into it.
func NewRecorder(store storage.Provider, logger *slog.Logger, opts ...RecorderOption) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.EnsureRoot(); err != nil {
		return nil, fmt.Errorf("capture: debug dir unavailable: %w", err)
	}
	r := &Recorder{
		store:   store,
		logger:  logger,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir returns the debug directory.
func (r *Recorder) Dir() string { return r.store.Root() }

// Record stamps rec with an id and receive time, writes it, and returns the
// record's file name.
func (r *Recorder) Record(rec models.CapturedRequest) (string, error) {
	ts := r.now()

	r.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(ts), r.entropy)
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("capture: new id: %w", err)
	}

	rec.ID = id.String()
	rec.ReceivedAt = ts.UTC()
	name := fileName(ts, rec.Method, rec.ID)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("capture: encode: %w", err)
	}
	if err := r.store.WriteNew(name, data); err != nil {
		return "", fmt.Errorf("capture: write %s: %w", name, err)
	}

	if r.index != nil {
		if err := r.index.InsertCapture(name, rec); err != nil {
			r.logger.Warn("capture: index insert failed", slog.String("file", name), slog.String("error", err.Error()))
		}
	}
	return name, nil
}

func fileName(ts time.Time, method, id string) string {
	return fmt.Sprintf("%s_%s_%s.json", ts.UTC().Format("20060102T150405.000000000Z"), safeMethod(method), id)
}

// safeMethod keeps method tokens filename-safe.
func safeMethod(m string) string {
	if m == "" {
		return "UNKNOWN"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.ToUpper(m))
}
