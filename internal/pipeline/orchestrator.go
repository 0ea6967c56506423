package pipeline

import (
	"context"
	"errors"
	"time"
)

// StageFunc is one runnable stage: it returns the primary artifact name it
// produced, "" on a no-output skip, or an error. Skip sentinels
// (ErrQuotaExceeded, ErrCooldownActive, ErrQueueEmpty) are expected
// outcomes; anything else is a real failure.
type StageFunc func(ctx context.Context, req Request) (string, error)

// Result records the outcome of one stage invocation inside a run.
type Result struct {
	Stage    string
	Artifact string
	Skipped  bool
	Reason   string
}

// Stage names accepted by Run and produced by StagesForTime. The set is
// closed: the orchestrator dispatches only these four.
const (
	StagePublish = "publish"
	StagePaid    = "paid"
)

func (p *Pipeline) stageFuncs() map[string]StageFunc {
	return map[string]StageFunc{
		StageScout:    p.Scout,
		StagePublish:  p.Publish,
		StageObserver: p.Observe,
		StagePaid:     p.Paid,
	}
}

// scoutHours lists the scheduled scan slots; they mirror the theme rotation.
var scoutHours = map[int]bool{2: true, 6: true, 10: true, 14: true, 18: true, 22: true}

// StagesForTime resolves which stages a tick at t should run:
//
//	scan     at 02,06,10,14,18,22h
//	publish  at 09-10h
//	paid     Friday 14-16h
//	observe  at 22-23h, after the day's last scan
//
// Order within a tick is fixed so a 22h tick scans before it audits.
func StagesForTime(t time.Time) []string {
	var stages []string
	hour := t.Hour()

	if scoutHours[hour] {
		stages = append(stages, StageScout)
	}
	if hour >= 9 && hour <= 10 {
		stages = append(stages, StagePublish)
	}
	if t.Weekday() == time.Friday && hour >= 14 && hour <= 16 {
		stages = append(stages, StagePaid)
	}
	if hour >= 22 {
		stages = append(stages, StageObserver)
	}

	return stages
}

// Run executes the named stages in order for one tick. A stage error never
// stops the run: skip sentinels are recorded as skips, real failures are
// logged and the remaining stages still execute. Re-running with the same
// request is safe; stages are idempotent per date key.
func (p *Pipeline) Run(ctx context.Context, stages []string, req Request) []Result {
	funcs := p.stageFuncs()
	results := make([]Result, 0, len(stages))

	for _, name := range stages {
		fn, ok := funcs[name]
		if !ok {
			p.logger.Warn("unknown stage requested", "stage", name)
			results = append(results, Result{Stage: name, Skipped: true, Reason: "unknown stage"})
			continue
		}

		artifact, err := fn(ctx, req)
		switch {
		case isSkip(err):
			p.logger.Info("stage skipped", "stage", name, "reason", err.Error())
			results = append(results, Result{Stage: name, Skipped: true, Reason: err.Error()})
		case err != nil:
			p.logger.Error("stage failed", "stage", name, "error", err)
			results = append(results, Result{Stage: name, Skipped: true, Reason: err.Error()})
		case artifact == "":
			results = append(results, Result{Stage: name, Skipped: true, Reason: "nothing to do"})
		default:
			results = append(results, Result{Stage: name, Artifact: artifact})
		}
	}

	return results
}

// RunAt resolves the schedule for t and runs the due stages.
func (p *Pipeline) RunAt(ctx context.Context, t time.Time) []Result {
	stages := StagesForTime(t)
	if len(stages) == 0 {
		return nil
	}
	req := Request{
		DateKey: t.Format(dateKeyLayout),
		Hour:    t.Hour(),
		Mode:    "auto",
	}
	return p.Run(ctx, stages, req)
}

func isSkip(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrQueueEmpty)
}
