package state

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	return NewStore(path, opts, nil)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	doc := s.Load()
	s.MarkURLProcessed(doc, "https://a.example")
	s.MarkTopicWritten(doc, "AI Tools")
	s.IncrementPublishCount(doc)
	s.AddObserverFlag(doc, "quality_below_threshold", "score=4")
	s.Enqueue(doc, "Crypto Deep Dive", "high")

	if err := s.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := s.Load()
	if !reflect.DeepEqual(doc, loaded) {
		t.Fatalf("round trip mismatch:\nsaved  %+v\nloaded %+v", doc, loaded)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	doc := s.Load()
	if len(doc.ProcessedURLs) != 0 || len(doc.PaidQueue) != 0 {
		t.Fatalf("expected empty defaults, got %+v", doc)
	}
	if doc.LastResetDate == "" {
		t.Fatal("expected reset date to be stamped on first load")
	}
}

func TestLoadCorruptFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	if err := os.WriteFile(s.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	doc := s.Load()
	if len(doc.ProcessedURLs) != 0 || doc.DailyPublishCount != 0 {
		t.Fatalf("expected defaults after corruption, got %+v", doc)
	}
}

func TestDailyRolloverExactlyOnce(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	day := time.Date(2026, time.February, 13, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day.AddDate(0, 0, -1) }

	doc := s.Load()
	for i := 0; i < 5; i++ {
		s.IncrementPublishCount(doc)
	}
	if err := s.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	// next calendar day: counter resets once, repeated loads stay reset
	s.now = func() time.Time { return day }
	for i := 0; i < 3; i++ {
		doc = s.Load()
		if doc.DailyPublishCount != 0 {
			t.Fatalf("load %d: count = %d, want 0", i, doc.DailyPublishCount)
		}
		if doc.LastResetDate != "2026-02-13" {
			t.Fatalf("load %d: reset date = %s", i, doc.LastResetDate)
		}
	}

	// same-day loads must not clobber an incremented counter
	s.IncrementPublishCount(doc)
	if err := s.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := s.Load().DailyPublishCount; got != 1 {
		t.Fatalf("same-day reload count = %d, want 1", got)
	}
}

func TestURLSetBoundedFIFO(t *testing.T) {
	t.Parallel()

	const maxURLs = 200
	s := newTestStore(t, Options{MaxURLs: maxURLs})
	doc := s.Load()

	total := maxURLs + 50
	for i := 0; i < total; i++ {
		s.MarkURLProcessed(doc, fmt.Sprintf("https://example.org/%d", i))
	}

	if len(doc.ProcessedURLs) != maxURLs {
		t.Fatalf("len = %d, want %d", len(doc.ProcessedURLs), maxURLs)
	}
	if doc.ProcessedURLs[0] != "https://example.org/50" {
		t.Fatalf("oldest survivor = %s, want url 50", doc.ProcessedURLs[0])
	}
	if last := doc.ProcessedURLs[maxURLs-1]; last != fmt.Sprintf("https://example.org/%d", total-1) {
		t.Fatalf("newest = %s", last)
	}
}

func TestMarkURLProcessedIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	doc := s.Load()
	s.MarkURLProcessed(doc, "https://a.example")
	s.MarkURLProcessed(doc, "https://a.example")
	if len(doc.ProcessedURLs) != 1 {
		t.Fatalf("len = %d, want 1", len(doc.ProcessedURLs))
	}
}

func TestFilterNewURLs(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	doc := s.Load()
	s.MarkURLProcessed(doc, "https://a.example")

	got := s.FilterNewURLs(doc, []string{"https://a.example", "https://b.example"})
	want := []string{"https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterNewURLs = %v, want %v", got, want)
	}
}

func TestTopicCooldownWindow(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{CooldownDays: 7})
	dayD := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return dayD }

	doc := s.Load()
	s.MarkTopicWritten(doc, "  AI Tools ")

	for offset := 0; offset <= 6; offset++ {
		day := dayD.AddDate(0, 0, offset)
		s.now = func() time.Time { return day }
		if s.IsTopicCooledDown(doc, "ai tools") {
			t.Fatalf("day D+%d: expected topic still cooling", offset)
		}
	}

	s.now = func() time.Time { return dayD.AddDate(0, 0, 7) }
	if !s.IsTopicCooledDown(doc, "AI Tools") {
		t.Fatal("day D+7: expected topic cooled down")
	}
}

func TestMarkTopicWrittenPrunesRetention(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{RetentionDays: 30})
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return now.AddDate(0, 0, -40) }
	doc := s.Load()
	s.MarkTopicWritten(doc, "Ancient Topic")

	s.now = func() time.Time { return now }
	s.MarkTopicWritten(doc, "Fresh Topic")

	if len(doc.WrittenTopics) != 1 {
		t.Fatalf("len = %d, want 1 (old entry pruned)", len(doc.WrittenTopics))
	}
	if doc.WrittenTopics[0].Topic != "Fresh Topic" {
		t.Fatalf("surviving topic = %s", doc.WrittenTopics[0].Topic)
	}
}

func TestPublishQuota(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{MaxFreePerDay: 2})
	doc := s.Load()

	if !s.CanPublishFree(doc) {
		t.Fatal("fresh document should allow publishing")
	}
	s.IncrementPublishCount(doc)
	s.IncrementPublishCount(doc)
	if s.CanPublishFree(doc) {
		t.Fatal("quota of 2 should be exhausted after 2 increments")
	}
}

func TestObserverFlagRing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{FlagCapacity: 100})
	doc := s.Load()

	for i := 1; i <= 105; i++ {
		s.AddObserverFlag(doc, fmt.Sprintf("flag-%d", i), "")
	}

	flags := s.ObserverFlags(doc)
	if len(flags) != 100 {
		t.Fatalf("len = %d, want 100", len(flags))
	}
	if flags[0].Flag != "flag-6" {
		t.Fatalf("oldest = %s, want flag-6", flags[0].Flag)
	}
	if flags[99].Flag != "flag-105" {
		t.Fatalf("newest = %s, want flag-105", flags[99].Flag)
	}

	s.ClearObserverFlags(doc)
	if len(s.ObserverFlags(doc)) != 0 {
		t.Fatal("clear left flags behind")
	}
}

func TestQueueLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	doc := s.Load()
	s.Enqueue(doc, "topicX", "")

	item, ok := s.Dequeue(doc)
	if !ok {
		t.Fatal("expected a pending item")
	}
	if item.Topic != "topicX" || item.Status != StatusProcessing {
		t.Fatalf("unexpected item %+v", item)
	}

	// claimed item must not be handed out again
	if _, ok := s.Dequeue(doc); ok {
		t.Fatal("second dequeue returned the in-flight item")
	}

	s.MarkDone(doc, "topicX")
	if got := doc.PaidQueue[0].Status; got != StatusDone {
		t.Fatalf("status = %s, want done", got)
	}
	if doc.PaidQueue[0].Completed == "" {
		t.Fatal("completed timestamp missing")
	}
}

func TestMarkDoneSkipsPendingItems(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	doc := s.Load()
	s.Enqueue(doc, "topicX", "")
	s.Enqueue(doc, "topicX", "")

	first, _ := s.Dequeue(doc)
	if first.Status != StatusProcessing {
		t.Fatalf("unexpected status %s", first.Status)
	}

	s.MarkDone(doc, "topicX")
	if doc.PaidQueue[0].Status != StatusDone {
		t.Fatal("processing item was not completed")
	}
	if doc.PaidQueue[1].Status != StatusPending {
		t.Fatal("pending duplicate must not regress or advance")
	}
}

func TestInterruptedSaveLeavesOldDocumentIntact(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	doc := s.Load()
	s.MarkURLProcessed(doc, "https://survivor.example")
	if err := s.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	// simulate a crash after the temp file was written but before rename
	orphan := filepath.Join(filepath.Dir(s.path), "state_crash.tmp")
	if err := os.WriteFile(orphan, []byte(`{"processed_urls": ["truncat`), 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	loaded := s.Load()
	if len(loaded.ProcessedURLs) != 1 || loaded.ProcessedURLs[0] != "https://survivor.example" {
		t.Fatalf("previous document damaged: %+v", loaded)
	}
}
