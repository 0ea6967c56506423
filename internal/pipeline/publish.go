package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ContentForge/internal/domain"
	"ContentForge/internal/state"
)

const analysisPrompt = `You are the chief content strategist of a cross-border commerce publication.
From the candidate news items pick the topic best suited for a long-form article.
Reply with JSON only, shaped as:
{
  "top3_topics": [{"index": n, "topic": "...", "why_readers_care": "...", "domestic_comparison": "...", "actionable_advice": "...", "score": 1-10}],
  "selected_topic": {
    "topic": "...",
    "headlines": ["...", "...", "..."],
    "outline": [{"title": "...", "points": "..."}],
    "evidence": [{"ref_id": n, "source_url": "...", "source_title": "...", "quote": "...", "verifiable_facts": ["..."]}]
  },
  "forum_summary": "..."
}`

const fullModeHint = `

Full mode: cross-validate the pick from three angles before deciding —
global information coverage, what the data and trends actually support,
and social spread potential. Summarize the three views in forum_summary.`

const articlePrompt = `You are the lead writer of a cross-border commerce publication. Write for
practitioners who need accurate, decision-grade analysis.

Rules:
- Open with a concrete event, number or observation; no throat-clearing.
- Cite the source by name for every figure; only use facts from the evidence block.
- Section headings state a judgment, not a description.
- 1500-2500 words of plain Markdown, title on the first line as "# ...".
- Close with your own call and one concrete recommendation. No empty uplift.
- Never invent numbers, amounts or percentages.`

const editorPrompt = `You are a senior editor whose single job is removing machine-writing tells
from a draft. Rework sentence rhythm and transitions, cut filler connectives
and template phrasing. Do not touch facts, figures, tables, quotes or source
attributions. Return the full revised Markdown only.`

const premiumPrompt = `From the topic and evidence below, produce a short member-only addendum in
Markdown (300-800 words): a comparison table of the key metrics, a five-step
action checklist, three to five further-reading links taken from the evidence
URLs, and one paragraph of exclusive analysis. Markdown only.`

const growthPrompt = `From the article below, produce a promotion pack in Markdown: three
alternative headlines for A/B testing, two short share blurbs, one call to
action for the paid tier, and three candidate topics for tomorrow. Markdown only.`

// Publish runs the analyze-write-deliver chain for the date: topic analysis
// from the day's scan batches, article generation, rendering, delivery and
// the growth extras. Each later sub-step is skipped when an earlier one
// produced nothing.
func (p *Pipeline) Publish(ctx context.Context, req Request) (string, error) {
	dateKey := p.dateKey(req)

	analysis, err := p.analyze(ctx, dateKey, req.Mode)
	if err != nil {
		return "", err
	}
	if analysis == nil {
		return "", nil
	}

	artifactName, rec, err := p.writeArticle(ctx, dateKey, *analysis)
	if err != nil || artifactName == "" {
		return artifactName, err
	}

	// growth extras ride along; their failure never voids the publish
	rec.GrowthWords = p.growth(ctx, dateKey)
	p.logPublish(dateKey, rec)

	return artifactName, nil
}

// analyze merges the day's scan batches and asks the model to pick a
// topic. Returns nil when there is nothing to analyze; the caller treats
// that identically to an upstream-missing skip.
func (p *Pipeline) analyze(ctx context.Context, dateKey, mode string) (*domain.Analysis, error) {
	items, err := p.loadScoutItems(dateKey)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		p.logger.Info("no scan batches for date, analysis skipped", "date", dateKey)
		return nil, nil
	}

	prompt := analysisPrompt
	if mode == "full" {
		prompt += fullModeHint
	}

	var sb strings.Builder
	for i, item := range items {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&sb, "\n[%d] %s\nSource: %s\nSummary: %.200s\nScores: relevance=%.1f asymmetry=%.1f potential=%.1f\nAngle: %s\n",
			i, item.Title, item.Source, item.Content, item.Relevance, item.Asymmetry, item.Potential, item.Angle)
	}

	reply, err := p.chat.Complete(ctx, prompt, "Today's candidates:"+sb.String())
	if err != nil {
		p.logger.Warn("analysis model call failed", "error", err)
		return nil, nil
	}

	var analysis domain.Analysis
	if err := json.Unmarshal([]byte(reply), &analysis); err != nil {
		p.logger.Warn("analysis reply unparseable", "error", err)
		return nil, nil
	}
	if analysis.Selected.Topic == "" {
		p.logger.Info("analysis selected no topic", "date", dateKey)
		return nil, nil
	}
	analysis.CandidateSize = len(items)

	doc := p.state.Load()
	topic, ok := p.resolveCooldown(doc, &analysis)
	if !ok {
		return nil, ErrCooldownActive
	}
	p.state.MarkTopicWritten(doc, topic)
	if err := p.state.Save(doc); err != nil {
		return nil, fmt.Errorf("persist topic state: %w", err)
	}

	raw, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	if err := p.artifacts.Write(StageSage, dateKey+"-analysis.json", raw); err != nil {
		return nil, err
	}
	if err := p.artifacts.Write(StageSage, dateKey+"-analysis.md", []byte(renderAnalysisReport(dateKey, mode, analysis))); err != nil {
		return nil, err
	}

	p.ingestAnalysis(dateKey, analysis)

	p.logger.Info("analysis finished", "date", dateKey, "topic", topic)
	return &analysis, nil
}

// resolveCooldown swaps a cooling topic for the best cooled-down alternate
// among the ranked candidates. Reports false when every candidate is
// still cooling.
func (p *Pipeline) resolveCooldown(doc *state.Document, analysis *domain.Analysis) (string, bool) {
	topic := analysis.Selected.Topic
	if p.state.IsTopicCooledDown(doc, topic) {
		return topic, true
	}

	p.logger.Warn("selected topic in cooldown, trying alternates", "topic", topic)
	for _, alt := range analysis.Top3Topics {
		if alt.Topic == "" || alt.Topic == topic {
			continue
		}
		if p.state.IsTopicCooledDown(doc, alt.Topic) {
			analysis.Selected.Topic = alt.Topic
			return alt.Topic, true
		}
	}
	return "", false
}

func (p *Pipeline) loadScoutItems(dateKey string) ([]domain.ScoutItem, error) {
	names, err := p.artifacts.List(StageScout, dateKey+"-")
	if err != nil {
		return nil, err
	}

	var items []domain.ScoutItem
	for _, name := range names {
		raw, err := p.artifacts.Read(StageScout, name)
		if err != nil {
			p.logger.Warn("scan batch unreadable, skipped", "name", name, "error", err)
			continue
		}
		var batch domain.ScoutBatch
		if err := json.Unmarshal(raw, &batch); err != nil {
			p.logger.Warn("scan batch corrupt, skipped", "name", name, "error", err)
			continue
		}
		items = append(items, batch.Items...)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].AvgScore > items[j].AvgScore })
	return items, nil
}

// writeArticle generates the day's article from the analysis, renders and
// delivers it, and updates the publish quota.
func (p *Pipeline) writeArticle(ctx context.Context, dateKey string, analysis domain.Analysis) (string, domain.PublishRecord, error) {
	var rec domain.PublishRecord

	doc := p.state.Load()
	if !p.state.CanPublishFree(doc) {
		return "", rec, ErrQuotaExceeded
	}

	article, err := p.chat.Complete(ctx, articlePrompt, buildArticleInput(analysis))
	if err != nil {
		p.logger.Warn("article generation failed", "error", err)
		return "", rec, nil
	}
	if wordCount(article) < 500 {
		p.logger.Warn("article too short, publish skipped", "words", wordCount(article))
		return "", rec, nil
	}

	// de-AI rewrite pass; the original draft survives a failed edit
	if edited, err := p.chat.Complete(ctx, editorPrompt, article); err != nil {
		p.logger.Warn("editor pass failed, keeping original draft", "error", err)
	} else if wordCount(edited) >= 500 {
		article = edited
	}

	mdName := dateKey + "-article.md"
	if err := p.artifacts.Write(StageDrafts, mdName, []byte(article)); err != nil {
		return "", rec, err
	}

	title := extractTitle(article, analysis.Selected.Topic)

	images := p.renderCharts(ctx, dateKey)
	deliverable := p.artifacts.Path(StageDrafts, mdName)
	if p.renderer != nil {
		docxPath := p.artifacts.Path(StageDrafts, dateKey+"-article.docx")
		if err := p.renderer.Render(ctx, article, images, docxPath); err != nil {
			p.logger.Warn("document render failed, delivering markdown", "error", err)
		} else {
			deliverable = docxPath
		}
	}

	p.sendDocument(ctx, deliverable, fmt.Sprintf("%s (%d words)", title, wordCount(article)))
	for _, img := range images {
		p.sendDocument(ctx, img, "")
	}

	rec = domain.PublishRecord{
		Topic:        analysis.Selected.Topic,
		Title:        title,
		ArticleWords: wordCount(article),
		ChartsCount:  len(images),
	}
	rec.PremiumWords = p.premiumAddon(ctx, dateKey, title, analysis)

	doc = p.state.Load()
	p.state.IncrementPublishCount(doc)
	if err := p.state.Save(doc); err != nil {
		return "", rec, fmt.Errorf("persist publish count: %w", err)
	}

	p.logger.Info("article published", "date", dateKey, "title", title, "words", rec.ArticleWords)
	return mdName, rec, nil
}

func (p *Pipeline) renderCharts(ctx context.Context, dateKey string) []string {
	if p.charts == nil {
		return nil
	}
	images, err := p.charts.RenderCharts(ctx, dateKey)
	if err != nil {
		p.logger.Warn("chart render failed", "error", err)
		return nil
	}
	return images
}

// premiumAddon writes and delivers the member-only extras; best-effort.
func (p *Pipeline) premiumAddon(ctx context.Context, dateKey, title string, analysis domain.Analysis) int {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nEvidence:\n", title)
	for _, ev := range analysis.Selected.Evidence {
		fmt.Fprintf(&sb, "- [%s](%s): %s\n  facts: %s\n", ev.SourceTitle, ev.SourceURL, ev.Quote, strings.Join(ev.VerifiableFacts, ", "))
	}

	addon, err := p.chat.Complete(ctx, premiumPrompt, sb.String())
	if err != nil {
		p.logger.Warn("premium addon generation failed", "error", err)
		return 0
	}

	body := fmt.Sprintf("# Member extras | %s\n\n%s", title, addon)
	if err := p.artifacts.Write(StageDrafts, dateKey+"-premium-addon.md", []byte(body)); err != nil {
		p.logger.Warn("premium addon write failed", "error", err)
		return 0
	}

	if p.paidChan != nil {
		if !p.paidChan.SendMessage(ctx, body) {
			p.logger.Warn("premium addon delivery failed")
		}
	}
	return wordCount(addon)
}

// growth produces the promotion pack from the day's article; best-effort.
func (p *Pipeline) growth(ctx context.Context, dateKey string) int {
	raw, err := p.artifacts.Read(StageDrafts, dateKey+"-article.md")
	if err != nil {
		return 0
	}

	pack, err := p.chat.Complete(ctx, growthPrompt, string(raw))
	if err != nil {
		p.logger.Warn("growth pack generation failed", "error", err)
		return 0
	}
	if err := p.artifacts.Write(StageGrowth, dateKey+"-growth.md", []byte(pack)); err != nil {
		p.logger.Warn("growth pack write failed", "error", err)
		return 0
	}

	p.sendMessage(ctx, pack)
	return wordCount(pack)
}

func buildArticleInput(analysis domain.Analysis) string {
	var sb strings.Builder
	sel := analysis.Selected

	fmt.Fprintf(&sb, "Topic: %s\n\nHeadline candidates:\n", sel.Topic)
	for i, h := range sel.Headlines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, h)
	}

	sb.WriteString("\nOutline:\n")
	for i, sec := range sel.Outline {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, sec.Title, sec.Points)
	}

	sb.WriteString("\n=== Evidence block (cite only these facts) ===\n")
	if len(sel.Evidence) == 0 {
		sb.WriteString("(no structured evidence; write from the outline, invent no data)\n")
	}
	for _, ev := range sel.Evidence {
		fmt.Fprintf(&sb, "[%d] %s\n  URL: %s\n  Quote: %s\n  Verifiable facts: %s\n\n",
			ev.RefID, ev.SourceTitle, ev.SourceURL, ev.Quote, strings.Join(ev.VerifiableFacts, ", "))
	}

	if analysis.ForumSummary != "" {
		fmt.Fprintf(&sb, "\n=== Multi-angle summary ===\n%s\n", analysis.ForumSummary)
	}

	return sb.String()
}

func renderAnalysisReport(dateKey, mode string, analysis domain.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Analysis report — %s\n\n", dateKey)
	fmt.Fprintf(&sb, "**Mode**: %s\n**Candidates**: %d\n\n", mode, analysis.CandidateSize)

	sb.WriteString("## Top 3 candidate topics\n\n")
	for _, t := range analysis.Top3Topics {
		fmt.Fprintf(&sb, "### %s\n- **Why readers care**: %s\n- **Comparison**: %s\n- **Advice**: %s\n- **Score**: %.1f\n\n",
			t.Topic, t.WhyReadersCare, t.Comparison, t.Advice, t.Score)
	}

	fmt.Fprintf(&sb, "## Selected topic\n\n**Topic**: %s\n\n**Headline candidates**:\n", analysis.Selected.Topic)
	for i, h := range analysis.Selected.Headlines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, h)
	}

	sb.WriteString("\n**Outline**:\n\n")
	for _, sec := range analysis.Selected.Outline {
		fmt.Fprintf(&sb, "### %s\n%s\n\n", sec.Title, sec.Points)
	}

	if analysis.ForumSummary != "" {
		fmt.Fprintf(&sb, "\n## Multi-angle summary\n\n%s\n", analysis.ForumSummary)
	}
	if analysis.DebateLog != "" {
		fmt.Fprintf(&sb, "\n## Debate log\n\n%s\n", analysis.DebateLog)
	}

	return sb.String()
}

func extractTitle(markdown, fallback string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return fallback
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
