// Package pipeline drives the recurring content workflow: scan for
// candidates, analyze and publish, audit the day's output, and generate
// queued deep reports. Stages hand data to each other only through the
// artifact repository and the state document, so any stage can be re-run
// for a date key without coordination. A stage with nothing to do is a
// skip, not an error; the next scheduled tick is the retry mechanism.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ContentForge/internal/artifact"
	"ContentForge/internal/config"
	"ContentForge/internal/domain"
	"ContentForge/internal/ports"
	"ContentForge/internal/state"
	"ContentForge/internal/trend"
)

// Artifact stage directories.
const (
	StageScout    = "scout"
	StageSage     = "sage"
	StageDrafts   = "drafts"
	StageGrowth   = "growth"
	StageObserver = "observer"
)

// Named skip reasons. These are expected control-flow outcomes surfaced to
// the orchestrator, not failures.
var (
	ErrQuotaExceeded  = errors.New("daily publish quota exhausted")
	ErrCooldownActive = errors.New("all candidate topics in cooldown")
	ErrQueueEmpty     = errors.New("paid-content queue empty")
)

const dateKeyLayout = "20060102"

// Request carries the parameters of one stage invocation.
type Request struct {
	DateKey string // YYYYMMDD
	Hour    int
	Mode    string // "lite" or "full"
	Theme   string // scan theme override
	Topic   string // paid-content topic override
}

// Deps wires the stores and collaborator adapters into the pipeline.
type Deps struct {
	State     *state.Store
	Artifacts *artifact.Repository
	Trend     *trend.Store // optional best-effort sidecar
	Chat      ports.ChatClient
	Search    ports.SearchProvider
	Renderer  ports.DocRenderer
	Charts    ports.ChartRenderer
	Transport ports.Transport
	PaidChan  ports.Transport // optional premium channel
	Logger    *slog.Logger
	Cfg       config.PipelineConfig
	Now       func() time.Time
}

// Pipeline holds all stage implementations.
type Pipeline struct {
	state     *state.Store
	artifacts *artifact.Repository
	trend     *trend.Store
	chat      ports.ChatClient
	search    ports.SearchProvider
	renderer  ports.DocRenderer
	charts    ports.ChartRenderer
	transport ports.Transport
	paidChan  ports.Transport
	logger    *slog.Logger
	cfg       config.PipelineConfig
	now       func() time.Time
}

// unavailableChat stands in when no chat client is configured, so stages
// hit their model-failure fallbacks instead of a nil dereference.
type unavailableChat struct{}

func (unavailableChat) Complete(context.Context, string, string) (string, error) {
	return "", errors.New("chat client not configured")
}

// New constructs the pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Chat == nil {
		deps.Chat = unavailableChat{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{
		state:     deps.State,
		artifacts: deps.Artifacts,
		trend:     deps.Trend,
		chat:      deps.Chat,
		search:    deps.Search,
		renderer:  deps.Renderer,
		charts:    deps.Charts,
		transport: deps.Transport,
		paidChan:  deps.PaidChan,
		logger:    deps.Logger,
		cfg:       deps.Cfg,
		now:       deps.Now,
	}
}

func (p *Pipeline) dateKey(req Request) string {
	if req.DateKey != "" {
		return req.DateKey
	}
	return p.now().Format(dateKeyLayout)
}

// sendMessage delivers best-effort over the main channel.
func (p *Pipeline) sendMessage(ctx context.Context, text string) {
	if p.transport == nil {
		return
	}
	if !p.transport.SendMessage(ctx, text) {
		p.logger.Warn("message delivery failed")
	}
}

// sendDocument delivers best-effort over the main channel.
func (p *Pipeline) sendDocument(ctx context.Context, path, caption string) {
	if p.transport == nil {
		return
	}
	if !p.transport.SendDocument(ctx, path, caption) {
		p.logger.Warn("document delivery failed", "path", path)
	}
}

// ingestScout feeds the analytics sidecar; failure is logged, never fatal.
func (p *Pipeline) ingestScout(dateKey string, items []domain.ScoutItem) {
	if p.trend == nil {
		return
	}
	if _, err := p.trend.IngestScoutBatch(dateKey, items); err != nil {
		p.logger.Warn("analytics scout ingestion skipped", "error", err)
	}
}

func (p *Pipeline) ingestAnalysis(dateKey string, analysis domain.Analysis) {
	if p.trend == nil {
		return
	}
	if _, err := p.trend.IngestSageAnalysis(dateKey, analysis); err != nil {
		p.logger.Warn("analytics analysis ingestion skipped", "error", err)
	}
}

func (p *Pipeline) logPublish(dateKey string, rec domain.PublishRecord) {
	if p.trend == nil {
		return
	}
	if err := p.trend.LogPublish(dateKey, rec); err != nil {
		p.logger.Warn("analytics publish log skipped", "error", err)
	}
}
