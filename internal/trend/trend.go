// Package trend is the embedded analytics sidecar. It ingests stage outputs
// into a SQLite file for historical querying: hot topics, daily statistics,
// evidence reuse and long-window URL dedup. Ingestion is best-effort and
// never a dependency of pipeline correctness; callers log and continue on
// failure.
package trend

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"ContentForge/internal/domain"
)

const batchDateLayout = "20060102"

const schema = `
CREATE TABLE IF NOT EXISTS scout_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_date TEXT NOT NULL,
	title TEXT,
	url TEXT UNIQUE,
	source TEXT,
	keyword TEXT,
	content TEXT,
	relevance REAL DEFAULT 0,
	asymmetry REAL DEFAULT 0,
	potential REAL DEFAULT 0,
	avg_score REAL DEFAULT 0,
	angle TEXT,
	created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sage_evidence (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_date TEXT NOT NULL,
	topic TEXT,
	ref_id INTEGER,
	source_url TEXT,
	source_title TEXT,
	quote TEXT,
	verifiable_facts TEXT,
	created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT UNIQUE,
	first_seen TEXT,
	last_seen TEXT,
	frequency INTEGER DEFAULT 1,
	best_score REAL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS publish_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_date TEXT NOT NULL,
	topic TEXT,
	title TEXT,
	article_words INTEGER DEFAULT 0,
	premium_words INTEGER DEFAULT 0,
	growth_words INTEGER DEFAULT 0,
	charts_count INTEGER DEFAULT 0,
	created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scout_date ON scout_items(batch_date);
CREATE INDEX IF NOT EXISTS idx_evidence_date ON sage_evidence(batch_date);
CREATE INDEX IF NOT EXISTS idx_topics_freq ON topics(frequency DESC);
`

// Store wraps the analytics database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open creates (or opens) the analytics database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init analytics schema: %w", err)
	}

	return &Store{db: db, logger: log, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// IngestScoutBatch stores candidate items keyed by URL with insert-or-ignore
// semantics and returns the count actually inserted. Re-ingesting a known
// URL is a no-op, not an error.
func (s *Store) IngestScoutBatch(batchDate string, items []domain.ScoutItem) (int, error) {
	inserted := 0
	for _, item := range items {
		query := sq.Insert("scout_items").
			Options("OR IGNORE").
			Columns("batch_date", "title", "url", "source", "keyword", "content",
				"relevance", "asymmetry", "potential", "avg_score", "angle").
			Values(batchDate, item.Title, item.URL, item.Source, item.Keyword,
				truncate(item.Content, 500),
				item.Relevance, item.Asymmetry, item.Potential, item.AvgScore, item.Angle)

		res, err := query.RunWith(s.db).Exec()
		if err != nil {
			return inserted, fmt.Errorf("ingest scout item %s: %w", item.URL, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	s.logger.Info("scout batch ingested", "date", batchDate, "new", inserted, "total", len(items))
	return inserted, nil
}

// IngestSageAnalysis appends one evidence row per entry and upserts the
// topic index: frequency is incremented, last_seen refreshed, best_score
// keeps the running maximum. Returns the count of evidence rows inserted.
func (s *Store) IngestSageAnalysis(batchDate string, analysis domain.Analysis) (int, error) {
	topic := analysis.Selected.Topic
	inserted := 0

	for _, ev := range analysis.Selected.Evidence {
		facts := ""
		if len(ev.VerifiableFacts) > 0 {
			raw, err := json.Marshal(ev.VerifiableFacts)
			if err == nil {
				facts = string(raw)
			}
		}

		query := sq.Insert("sage_evidence").
			Columns("batch_date", "topic", "ref_id", "source_url", "source_title", "quote", "verifiable_facts").
			Values(batchDate, topic, ev.RefID, ev.SourceURL, ev.SourceTitle, ev.Quote, facts)

		if _, err := query.RunWith(s.db).Exec(); err != nil {
			return inserted, fmt.Errorf("ingest evidence: %w", err)
		}
		inserted++
	}

	if topic != "" {
		if err := s.upsertTopic(batchDate, topic, bestScoreFor(analysis, topic)); err != nil {
			return inserted, err
		}
	}

	s.logger.Info("analysis ingested", "date", batchDate, "topic", topic, "evidence", inserted)
	return inserted, nil
}

func bestScoreFor(analysis domain.Analysis, topic string) float64 {
	for _, cand := range analysis.Top3Topics {
		if cand.Topic == topic {
			return cand.Score
		}
	}
	return 0
}

func (s *Store) upsertTopic(batchDate, topic string, score float64) error {
	var id int64
	err := sq.Select("id").From("topics").Where(sq.Eq{"topic": topic}).
		RunWith(s.db).QueryRow().Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		_, err = sq.Insert("topics").
			Columns("topic", "first_seen", "last_seen", "frequency", "best_score").
			Values(topic, batchDate, batchDate, 1, score).
			RunWith(s.db).Exec()
		if err != nil {
			return fmt.Errorf("insert topic: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup topic: %w", err)
	default:
		_, err = sq.Update("topics").
			Set("last_seen", batchDate).
			Set("frequency", sq.Expr("frequency + 1")).
			Set("best_score", sq.Expr("MAX(best_score, ?)", score)).
			Where(sq.Eq{"id": id}).
			RunWith(s.db).Exec()
		if err != nil {
			return fmt.Errorf("update topic: %w", err)
		}
	}

	return nil
}

// LogPublish appends one row per completed publish action.
func (s *Store) LogPublish(batchDate string, rec domain.PublishRecord) error {
	_, err := sq.Insert("publish_log").
		Columns("batch_date", "topic", "title", "article_words", "premium_words", "growth_words", "charts_count").
		Values(batchDate, rec.Topic, rec.Title, rec.ArticleWords, rec.PremiumWords, rec.GrowthWords, rec.ChartsCount).
		RunWith(s.db).Exec()
	if err != nil {
		return fmt.Errorf("log publish: %w", err)
	}
	return nil
}

// HotTopics returns the most frequent topics seen within the window,
// frequency descending, ties broken by best score.
func (s *Store) HotTopics(windowDays, topN int) ([]domain.TopicStat, error) {
	cutoff := s.now().AddDate(0, 0, -windowDays).Format(batchDateLayout)

	rows, err := sq.Select("topic", "frequency", "best_score", "first_seen", "last_seen").
		From("topics").
		Where(sq.GtOrEq{"last_seen": cutoff}).
		OrderBy("frequency DESC", "best_score DESC").
		Limit(uint64(topN)).
		RunWith(s.db).Query()
	if err != nil {
		return nil, fmt.Errorf("query hot topics: %w", err)
	}
	defer rows.Close()

	var stats []domain.TopicStat
	for rows.Next() {
		var t domain.TopicStat
		if err := rows.Scan(&t.Topic, &t.Frequency, &t.BestScore, &t.FirstSeen, &t.LastSeen); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		stats = append(stats, t)
	}
	return stats, rows.Err()
}

// EvidenceForTopic returns historical evidence whose topic contains the
// given substring, newest first.
func (s *Store) EvidenceForTopic(substring string, limit int) ([]domain.Evidence, error) {
	rows, err := sq.Select("ref_id", "source_url", "source_title", "quote", "verifiable_facts").
		From("sage_evidence").
		Where(sq.Like{"topic": "%" + substring + "%"}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		RunWith(s.db).Query()
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var out []domain.Evidence
	for rows.Next() {
		var ev domain.Evidence
		var facts string
		if err := rows.Scan(&ev.RefID, &ev.SourceURL, &ev.SourceTitle, &ev.Quote, &facts); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		if facts != "" {
			_ = json.Unmarshal([]byte(facts), &ev.VerifiableFacts)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// DailyStats aggregates the day's counts across all tables.
func (s *Store) DailyStats(batchDate string) (domain.DailyStats, error) {
	stats := domain.DailyStats{BatchDate: batchDate}

	if err := sq.Select("COUNT(*)").From("scout_items").
		Where(sq.Eq{"batch_date": batchDate}).
		RunWith(s.db).QueryRow().Scan(&stats.ScoutItems); err != nil {
		return stats, fmt.Errorf("count scout items: %w", err)
	}

	if err := sq.Select("COUNT(*)").From("sage_evidence").
		Where(sq.Eq{"batch_date": batchDate}).
		RunWith(s.db).QueryRow().Scan(&stats.EvidenceCount); err != nil {
		return stats, fmt.Errorf("count evidence: %w", err)
	}

	if err := sq.Select("COUNT(*)").From("publish_log").
		Where(sq.Eq{"batch_date": batchDate}).
		RunWith(s.db).QueryRow().Scan(&stats.PublishCount); err != nil {
		return stats, fmt.Errorf("count publishes: %w", err)
	}

	err := sq.Select("title", "article_words").From("publish_log").
		Where(sq.Eq{"batch_date": batchDate}).
		OrderBy("id DESC").Limit(1).
		RunWith(s.db).QueryRow().Scan(&stats.LastTitle, &stats.ArticleWords)
	if err != nil && err != sql.ErrNoRows {
		return stats, fmt.Errorf("latest publish: %w", err)
	}

	return stats, nil
}

// AllURLs returns every ingested URL within the window, for cross-checking
// dedup against a longer history than the state document retains.
func (s *Store) AllURLs(windowDays int) ([]string, error) {
	cutoff := s.now().AddDate(0, 0, -windowDays).Format(batchDateLayout)

	rows, err := sq.Select("url").From("scout_items").
		Where(sq.And{sq.GtOrEq{"batch_date": cutoff}, sq.NotEq{"url": ""}}).
		RunWith(s.db).Query()
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
