package ports

import (
	"context"
	"time"

	"ContentForge/internal/domain"
)

// ChatClient generates text from a structured prompt pair. Implementations
// talk to an LLM API; the core only consumes the result or the failure.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// DocRenderer turns generated Markdown (plus optional image references)
// into a renderable document artifact at outPath.
type DocRenderer interface {
	Render(ctx context.Context, markdown string, images []string, outPath string) error
}

// ChartRenderer produces zero or more image artifact paths from the day's
// structured analysis data.
type ChartRenderer interface {
	RenderCharts(ctx context.Context, dateKey string) ([]string, error)
}

// Transport delivers text or files to a destination channel. It never
// returns an error: failure is a boolean, because the orchestrator must
// continue regardless of delivery outcome.
type Transport interface {
	SendMessage(ctx context.Context, text string) bool
	SendDocument(ctx context.Context, path, caption string) bool
}

// SearchProvider fetches candidate records for one query.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]domain.ScoutItem, error)
}

// Scheduler drives recurring pipeline ticks.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
