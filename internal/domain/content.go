package domain

import "time"

// ScoutItem is a single candidate record collected during a scan run.
type ScoutItem struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Source        string  `json:"source"`
	Keyword       string  `json:"keyword"`
	PublishedDate string  `json:"published_date,omitempty"`
	Relevance     float64 `json:"relevance"`
	Asymmetry     float64 `json:"asymmetry"`
	Potential     float64 `json:"potential"`
	AvgScore      float64 `json:"avg_score"`
	Angle         string  `json:"angle,omitempty"`
}

// ScoutBatch is the artifact one scan run writes for its hour window.
type ScoutBatch struct {
	Batch         string      `json:"batch"`
	Theme         string      `json:"theme"`
	TrackTier     string      `json:"track_tier"`
	Timestamp     time.Time   `json:"timestamp"`
	TotalRaw      int         `json:"total_raw"`
	TotalFiltered int         `json:"total_filtered"`
	Items         []ScoutItem `json:"items"`
}

// Evidence links a selected topic to a verifiable source reference.
type Evidence struct {
	RefID           int      `json:"ref_id"`
	SourceURL       string   `json:"source_url"`
	SourceTitle     string   `json:"source_title"`
	Quote           string   `json:"quote"`
	VerifiableFacts []string `json:"verifiable_facts,omitempty"`
}

// TopicCandidate is one of the analyzer's ranked suggestions.
type TopicCandidate struct {
	Index          int     `json:"index"`
	Topic          string  `json:"topic"`
	WhyReadersCare string  `json:"why_readers_care,omitempty"`
	Comparison     string  `json:"domestic_comparison,omitempty"`
	Advice         string  `json:"actionable_advice,omitempty"`
	Score          float64 `json:"score"`
}

// OutlineSection is one section of the planned article.
type OutlineSection struct {
	Title  string `json:"title"`
	Points string `json:"points"`
}

// SelectedTopic is the analyzer's final pick with writing material.
type SelectedTopic struct {
	Topic     string           `json:"topic"`
	Headlines []string         `json:"headlines,omitempty"`
	Outline   []OutlineSection `json:"outline,omitempty"`
	Evidence  []Evidence       `json:"evidence,omitempty"`
}

// Analysis is the artifact produced by the analysis sub-step and consumed
// by article generation.
type Analysis struct {
	Top3Topics    []TopicCandidate `json:"top3_topics,omitempty"`
	Selected      SelectedTopic    `json:"selected_topic"`
	ForumSummary  string           `json:"forum_summary,omitempty"`
	DebateLog     string           `json:"forum_debate_log,omitempty"`
	CandidateSize int              `json:"candidate_size,omitempty"`
}

// TopicStat is one row of the analytics topic index.
type TopicStat struct {
	Topic     string
	Frequency int
	BestScore float64
	FirstSeen string
	LastSeen  string
}

// DailyStats aggregates analytics counts for one batch date.
type DailyStats struct {
	BatchDate     string
	ScoutItems    int
	EvidenceCount int
	PublishCount  int
	LastTitle     string
	ArticleWords  int
}

// PublishRecord carries word/asset counts logged after a completed publish.
type PublishRecord struct {
	Topic        string
	Title        string
	ArticleWords int
	PremiumWords int
	GrowthWords  int
	ChartsCount  int
}
