package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"ContentForge/internal/domain"
	"ContentForge/internal/state"
)

const scoutScoringPrompt = `You are an information-gap analyst for a cross-border commerce publication.
Score each news item on three axes, 1-10 each:
- relevance: how much the target readership cares
- asymmetry: how unevenly known the information is across markets
- potential: how well it would carry a long-form article
Also give "angle": one sentence on why readers should care.
Reply with a JSON array only; each element has index, relevance, asymmetry, potential, angle.`

type scoutScore struct {
	Index     int     `json:"index"`
	Relevance float64 `json:"relevance"`
	Asymmetry float64 `json:"asymmetry"`
	Potential float64 `json:"potential"`
	Angle     string  `json:"angle"`
}

// Scout runs one scan: fan out searches for the hour's theme, drop known
// URLs, score the remainder, keep the best and persist them as this hour's
// batch artifact. Returns the artifact name, or "" when nothing cleared
// the bar.
func (p *Pipeline) Scout(ctx context.Context, req Request) (string, error) {
	dateKey := p.dateKey(req)
	batchID := fmt.Sprintf("%s-%02d", dateKey, req.Hour)

	theme := ThemeForHour(req.Hour)
	if req.Theme != "" {
		theme = ThemeOverride(req.Theme)
	}
	p.logger.Info("scout starting", "batch", batchID, "theme", theme.Name, "tier", theme.TrackTier)

	collected := p.searchAll(ctx, theme.AllKeywords())
	collected = append(collected, p.subscriptionItems(ctx)...)
	totalRaw := len(collected)
	if totalRaw == 0 {
		p.logger.Info("scout found no results", "batch", batchID)
		return "", nil
	}

	doc := p.state.Load()
	fresh := p.dropKnownURLs(doc, collected)
	if len(fresh) == 0 {
		p.logger.Info("scout results all previously processed", "batch", batchID)
		return "", nil
	}

	scored := p.scoreItems(ctx, fresh, theme.Name)

	var kept []domain.ScoutItem
	for _, item := range scored {
		if item.AvgScore >= p.cfg.ScoreThreshold {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		p.logger.Info("scout kept nothing above threshold", "batch", batchID, "threshold", p.cfg.ScoreThreshold)
		return "", nil
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].AvgScore > kept[j].AvgScore })
	if max := p.cfg.MaxScoutItems; max > 0 && len(kept) > max {
		kept = kept[:max]
	}

	for _, item := range kept {
		if item.URL != "" {
			p.state.MarkURLProcessed(doc, item.URL)
		}
	}
	if err := p.state.Save(doc); err != nil {
		return "", fmt.Errorf("persist scout state: %w", err)
	}

	batch := domain.ScoutBatch{
		Batch:         batchID,
		Theme:         theme.Name,
		TrackTier:     theme.TrackTier,
		Timestamp:     p.now(),
		TotalRaw:      totalRaw,
		TotalFiltered: len(kept),
		Items:         kept,
	}
	raw, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode scout batch: %w", err)
	}

	name := batchID + ".json"
	if err := p.artifacts.Write(StageScout, name, raw); err != nil {
		return "", err
	}

	p.ingestScout(dateKey, kept)

	p.logger.Info("scout finished", "batch", batchID, "raw", totalRaw, "kept", len(kept))
	return name, nil
}

// searchAll fans the keywords out to the provider. Providers with their own
// concurrent batch path are used directly; otherwise queries run one by one
// and individual failures are dropped.
func (p *Pipeline) searchAll(ctx context.Context, keywords []string) []domain.ScoutItem {
	if batch, ok := p.search.(interface {
		SearchAll(context.Context, []string) []domain.ScoutItem
	}); ok {
		return batch.SearchAll(ctx, keywords)
	}

	var out []domain.ScoutItem
	for _, kw := range keywords {
		items, err := p.search.Search(ctx, kw)
		if err != nil {
			p.logger.Warn("search query failed", "keyword", kw, "error", err)
			continue
		}
		out = append(out, items...)
	}
	return out
}

func (p *Pipeline) subscriptionItems(ctx context.Context) []domain.ScoutItem {
	subs, ok := p.search.(interface {
		Subscriptions(context.Context) []domain.ScoutItem
	})
	if !ok {
		return nil
	}
	return subs.Subscriptions(ctx)
}

// dropKnownURLs removes previously processed URLs and in-batch duplicates,
// preserving order.
func (p *Pipeline) dropKnownURLs(doc *state.Document, items []domain.ScoutItem) []domain.ScoutItem {
	seen := map[string]struct{}{}
	var out []domain.ScoutItem
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		if p.state.IsURLProcessed(doc, item.URL) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// scoreItems asks the model for a batch scoring pass. On failure every
// item falls back to neutral mid-scale scores so a scoring outage cannot
// silently discard a whole scan.
func (p *Pipeline) scoreItems(ctx context.Context, items []domain.ScoutItem, theme string) []domain.ScoutItem {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "\n[%d] %s\nSource: %s\nSummary: %.200s\n", i, item.Title, item.Source, item.Content)
	}
	user := fmt.Sprintf("Current theme: %s\n\nItems to score:%s", theme, sb.String())

	reply, err := p.chat.Complete(ctx, scoutScoringPrompt, user)
	if err != nil {
		p.logger.Warn("scout scoring failed, using neutral scores", "error", err)
		return applyNeutralScores(items)
	}

	var scores []scoutScore
	if err := json.Unmarshal([]byte(reply), &scores); err != nil {
		p.logger.Warn("scout scoring reply unparseable, using neutral scores", "error", err)
		return applyNeutralScores(items)
	}

	for _, sc := range scores {
		if sc.Index < 0 || sc.Index >= len(items) {
			continue
		}
		it := &items[sc.Index]
		it.Relevance = sc.Relevance
		it.Asymmetry = sc.Asymmetry
		it.Potential = sc.Potential
		it.Angle = sc.Angle
		it.AvgScore = roundScore((sc.Relevance + sc.Asymmetry + sc.Potential) / 3)
	}
	return items
}

func applyNeutralScores(items []domain.ScoutItem) []domain.ScoutItem {
	for i := range items {
		items[i].Relevance = 5
		items[i].Asymmetry = 5
		items[i].Potential = 5
		items[i].AvgScore = 5
	}
	return items
}

func roundScore(v float64) float64 {
	return math.Round(v*10) / 10
}
