// Package state owns the durable bookkeeping document shared by all
// pipeline stages: URL dedup, topic cooldown, daily publish quota, observer
// flags and the paid-content queue.
//
// The document is loaded and saved whole. Operations mutate an in-memory
// Document only; callers batch one or more operations and persist them with
// a single Save. Saving uses a write-then-rename sequence so an interrupted
// write never leaves a torn file behind. There is no cross-process locking:
// the external scheduler is expected to run at most one writer at a time.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"

	defaultCooldownDays  = 7
	defaultRetentionDays = 30
	defaultMaxURLs       = 5000
	defaultFlagCapacity  = 100
	defaultMaxFreePerDay = 24
)

// TopicEntry records one topic write with its calendar date.
type TopicEntry struct {
	Topic string `json:"topic"`
	Date  string `json:"date"`
}

// ObserverFlag is one audit marker raised by the observe stage.
type ObserverFlag struct {
	Flag      string `json:"flag"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Queue item statuses. Transitions are monotonic:
// pending -> processing -> done.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
)

// QueueItem is one entry of the paid-content work queue.
type QueueItem struct {
	Topic     string `json:"topic"`
	Priority  string `json:"priority"`
	Added     string `json:"added"`
	Status    string `json:"status"`
	Completed string `json:"completed,omitempty"`
}

// Document is the whole state file. It is read-modify-written as a unit.
type Document struct {
	ProcessedURLs     []string       `json:"processed_urls"`
	WrittenTopics     []TopicEntry   `json:"written_topics"`
	DailyPublishCount int            `json:"daily_publish_count"`
	LastResetDate     string         `json:"last_reset_date"`
	ObserverFlags     []ObserverFlag `json:"observer_flags"`
	PaidQueue         []QueueItem    `json:"paid_content_queue"`
}

// Options tune the store's bookkeeping windows and bounds.
type Options struct {
	CooldownDays  int
	RetentionDays int
	MaxURLs       int
	FlagCapacity  int
	MaxFreePerDay int
}

func (o Options) withDefaults() Options {
	if o.CooldownDays <= 0 {
		o.CooldownDays = defaultCooldownDays
	}
	if o.RetentionDays <= 0 {
		o.RetentionDays = defaultRetentionDays
	}
	if o.MaxURLs <= 0 {
		o.MaxURLs = defaultMaxURLs
	}
	if o.FlagCapacity <= 0 {
		o.FlagCapacity = defaultFlagCapacity
	}
	if o.MaxFreePerDay <= 0 {
		o.MaxFreePerDay = defaultMaxFreePerDay
	}
	return o
}

// Store reads and writes the state document at a fixed path.
type Store struct {
	path   string
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewStore builds a store for the given file path.
func NewStore(path string, opts Options, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path:   path,
		opts:   opts.withDefaults(),
		logger: log,
		now:    time.Now,
	}
}

func defaultDocument() *Document {
	return &Document{
		ProcessedURLs: []string{},
		WrittenTopics: []TopicEntry{},
		ObserverFlags: []ObserverFlag{},
		PaidQueue:     []QueueItem{},
	}
}

func (s *Store) today() string {
	return s.now().Format(dateLayout)
}

// Load returns the current document, or a fresh default one when the file
// is absent or unparseable. A corrupt file is data loss, not a fatal error;
// the store resumes with defaults and logs the incident. The daily publish
// counter is rolled over here when the calendar day has changed.
func (s *Store) Load() *Document {
	doc := defaultDocument()

	raw, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		// first run
	case err != nil:
		s.logger.Warn("state file unreadable, starting from defaults", "path", s.path, "error", err)
	default:
		if jsonErr := json.Unmarshal(raw, doc); jsonErr != nil {
			s.logger.Warn("state file corrupt, starting from defaults", "path", s.path, "error", jsonErr)
			doc = defaultDocument()
		}
	}

	if today := s.today(); doc.LastResetDate != today {
		doc.DailyPublishCount = 0
		doc.LastResetDate = today
	}

	return doc
}

// Save writes the document durably: encode into a temporary file in the
// same directory, then rename over the previous version. The old document
// stays readable until the rename succeeds. This is the only state
// operation that surfaces an error, because a failed save means the
// caller's work is not yet durable.
func (s *Store) Save(doc *Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// ======== URL dedup ========

// IsURLProcessed reports whether the URL has been seen before.
func (s *Store) IsURLProcessed(doc *Document, url string) bool {
	for _, u := range doc.ProcessedURLs {
		if u == url {
			return true
		}
	}
	return false
}

// MarkURLProcessed records the URL; marking a known URL is a no-op. The set
// is bounded: when it overflows, the oldest entries are evicted first.
func (s *Store) MarkURLProcessed(doc *Document, url string) {
	if s.IsURLProcessed(doc, url) {
		return
	}
	doc.ProcessedURLs = append(doc.ProcessedURLs, url)
	if n := len(doc.ProcessedURLs); n > s.opts.MaxURLs {
		doc.ProcessedURLs = doc.ProcessedURLs[n-s.opts.MaxURLs:]
	}
}

// FilterNewURLs returns the subset of urls not yet processed, preserving
// input order.
func (s *Store) FilterNewURLs(doc *Document, urls []string) []string {
	seen := make(map[string]struct{}, len(doc.ProcessedURLs))
	for _, u := range doc.ProcessedURLs {
		seen[u] = struct{}{}
	}
	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; !ok {
			fresh = append(fresh, u)
		}
	}
	return fresh
}

// ======== Topic cooldown ========

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

// IsTopicCooledDown reports whether the topic is safe to use again, i.e.
// it has no write recorded within the cooldown window.
func (s *Store) IsTopicCooledDown(doc *Document, topic string) bool {
	cutoff := s.now().AddDate(0, 0, -s.opts.CooldownDays).Format(dateLayout)
	want := normalizeTopic(topic)
	for _, entry := range doc.WrittenTopics {
		if normalizeTopic(entry.Topic) == want && entry.Date > cutoff {
			return false
		}
	}
	return true
}

// MarkTopicWritten appends today's entry for the topic and prunes entries
// older than the retention window.
func (s *Store) MarkTopicWritten(doc *Document, topic string) {
	doc.WrittenTopics = append(doc.WrittenTopics, TopicEntry{
		Topic: topic,
		Date:  s.today(),
	})
	cutoff := s.now().AddDate(0, 0, -s.opts.RetentionDays).Format(dateLayout)
	kept := doc.WrittenTopics[:0]
	for _, entry := range doc.WrittenTopics {
		if entry.Date >= cutoff {
			kept = append(kept, entry)
		}
	}
	doc.WrittenTopics = kept
}

// ======== Daily quota ========

// CanPublishFree reports whether today's free quota still has room.
func (s *Store) CanPublishFree(doc *Document) bool {
	return doc.DailyPublishCount < s.opts.MaxFreePerDay
}

// IncrementPublishCount bumps the counter and pins the reset date to today.
func (s *Store) IncrementPublishCount(doc *Document) {
	doc.DailyPublishCount++
	doc.LastResetDate = s.today()
}

// ======== Observer flags ========

// AddObserverFlag appends an audit marker, dropping the oldest entries once
// the ring capacity is exceeded.
func (s *Store) AddObserverFlag(doc *Document, flag, detail string) {
	doc.ObserverFlags = append(doc.ObserverFlags, ObserverFlag{
		Flag:      flag,
		Detail:    detail,
		Timestamp: s.now().Format(time.RFC3339),
	})
	if n := len(doc.ObserverFlags); n > s.opts.FlagCapacity {
		doc.ObserverFlags = doc.ObserverFlags[n-s.opts.FlagCapacity:]
	}
}

// ObserverFlags returns the stored markers, oldest first.
func (s *Store) ObserverFlags(doc *Document) []ObserverFlag {
	return doc.ObserverFlags
}

// ClearObserverFlags drops all stored markers.
func (s *Store) ClearObserverFlags(doc *Document) {
	doc.ObserverFlags = []ObserverFlag{}
}

// ======== Paid-content queue ========

// Enqueue appends a pending queue item for the topic.
func (s *Store) Enqueue(doc *Document, topic, priority string) {
	if priority == "" {
		priority = "normal"
	}
	doc.PaidQueue = append(doc.PaidQueue, QueueItem{
		Topic:    topic,
		Priority: priority,
		Added:    s.now().Format(time.RFC3339),
		Status:   StatusPending,
	})
}

// Dequeue returns the first pending item, flipping it to processing, or
// false when the queue has no pending work. There is no claim/lease field:
// two concurrent writers could take the same item, which is accepted under
// the single-writer assumption.
func (s *Store) Dequeue(doc *Document) (QueueItem, bool) {
	for i := range doc.PaidQueue {
		if doc.PaidQueue[i].Status == StatusPending {
			doc.PaidQueue[i].Status = StatusProcessing
			return doc.PaidQueue[i], true
		}
	}
	return QueueItem{}, false
}

// MarkDone completes the most recent processing item for the topic. Items
// never regress; pending or done entries with the same topic are left alone.
func (s *Store) MarkDone(doc *Document, topic string) {
	for i := len(doc.PaidQueue) - 1; i >= 0; i-- {
		item := &doc.PaidQueue[i]
		if item.Topic == topic && item.Status == StatusProcessing {
			item.Status = StatusDone
			item.Completed = s.now().Format(time.RFC3339)
			return
		}
	}
}
