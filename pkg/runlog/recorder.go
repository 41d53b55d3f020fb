package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/storage"
)

// FileName is the run log written into the output directory
const FileName = "session_log.json"

// Event names a run milestone
type Event string

const (
	EventRunStart        Event = "run_start"
	EventAuthAttempt     Event = "auth_attempt"
	EventAuthResult      Event = "auth_result"
	EventPageLoad        Event = "page_load"
	EventPagination      Event = "pagination"
	EventExtraction      Event = "extraction"
	EventDownloadSummary Event = "download_summary"
	EventTermination     Event = "termination"
	EventOutcome         Event = "outcome"
)

// Entry is one timestamped milestone
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     Event                  `json:"event"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Sink receives run milestones
type Sink interface {
	Record(event Event, message string, fields map[string]interface{})
}

// Discard is a Sink that drops everything
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Event, string, map[string]interface{}) {}

// OrDiscard returns s, or Discard when s is nil
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Recorder accumulates the run log in memory until Flush
type Recorder struct {
	mu      sync.Mutex
	runID   string
	entries []Entry
	now     func() time.Time
	log     logger.Logger
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger mirrors every entry to l at debug level
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// NewRecorder creates an empty Recorder for one run
func NewRecorder(runID string, opts ...Option) *Recorder {
	r := &Recorder{
		runID: runID,
		now:   time.Now,
		log:   logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends a milestone
func (r *Recorder) Record(event Event, message string, fields map[string]interface{}) {
	entry := Entry{
		Timestamp: r.now(),
		Event:     event,
		Message:   message,
	}
	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			entry.Fields[k] = v
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	r.log.DebugWithFields(message, map[string]interface{}{"event": string(event)})
}

// Entries returns a copy of the log so far
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

type document struct {
	RunID   string  `json:"run_id"`
	Entries []Entry `json:"entries"`
}

// Flush writes the log to dir/session_log.json and returns the path.
// It may be called more than once; each call rewrites the whole file.
func (r *Recorder) Flush(dir string) (string, error) {
	data, err := json.MarshalIndent(document{RunID: r.runID, Entries: r.Entries()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run log: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := storage.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run log: %w", err)
	}
	return path, nil
}

// Load reads a run log written by Flush
func Load(path string) (string, []Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read run log: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("failed to parse run log: %w", err)
	}
	return doc.RunID, doc.Entries, nil
}
