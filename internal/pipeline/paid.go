package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ContentForge/internal/domain"
)

const deepReportPrompt = `You are a research analyst writing a member-only deep report for
cross-border commerce practitioners. Structure: executive summary, market
context with figures, three detailed sections, a risk register, and a
concrete 30-day action plan. Use only facts from the supplied context and
name the source for every figure. 2500-4000 words of plain Markdown,
title on the first line as "# ...".`

// Paid produces one queued deep report for premium members. The topic comes
// from the request override or the head of the paid-content queue; an empty
// queue is the expected idle outcome, not a failure.
func (p *Pipeline) Paid(ctx context.Context, req Request) (string, error) {
	dateKey := p.dateKey(req)

	topic := req.Topic
	queued := false
	if topic == "" {
		doc := p.state.Load()
		item, ok := p.state.Dequeue(doc)
		if !ok {
			return "", ErrQueueEmpty
		}
		if err := p.state.Save(doc); err != nil {
			return "", fmt.Errorf("persist queue claim: %w", err)
		}
		topic = item.Topic
		queued = true
	}
	p.logger.Info("deep report starting", "date", dateKey, "topic", topic)

	report, err := p.chat.Complete(ctx, deepReportPrompt, p.deepReportContext(dateKey, topic))
	if err != nil {
		p.logger.Warn("deep report generation failed", "topic", topic, "error", err)
		return "", nil
	}
	if wordCount(report) < 800 {
		p.logger.Warn("deep report too short, skipped", "topic", topic, "words", wordCount(report))
		return "", nil
	}

	name := fmt.Sprintf("%s-deep-%s.md", dateKey, slugify(topic))
	if err := p.artifacts.Write(StageDrafts, name, []byte(report)); err != nil {
		return "", err
	}

	deliverable := p.artifacts.Path(StageDrafts, name)
	if p.renderer != nil {
		docxPath := strings.TrimSuffix(deliverable, ".md") + ".docx"
		if err := p.renderer.Render(ctx, report, nil, docxPath); err != nil {
			p.logger.Warn("deep report render failed, delivering markdown", "error", err)
		} else {
			deliverable = docxPath
		}
	}

	caption := fmt.Sprintf("%s (%d words)", extractTitle(report, topic), wordCount(report))
	channel := p.paidChan
	if channel == nil {
		channel = p.transport
	}
	if channel != nil && !channel.SendDocument(ctx, deliverable, caption) {
		p.logger.Warn("deep report delivery failed", "path", deliverable)
	}

	if queued {
		doc := p.state.Load()
		p.state.MarkDone(doc, topic)
		if err := p.state.Save(doc); err != nil {
			return "", fmt.Errorf("persist queue completion: %w", err)
		}
	}

	p.logger.Info("deep report finished", "topic", topic, "words", wordCount(report))
	return name, nil
}

// deepReportContext assembles whatever evidence the system already holds
// about the topic: trend history and matching scan items from recent
// batches. A thin context still produces a report; the prompt forbids
// invented figures.
func (p *Pipeline) deepReportContext(dateKey, topic string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nDate: %s\n", topic, dateKey)

	if p.trend != nil {
		if evidence, err := p.trend.EvidenceForTopic(topic, 10); err == nil && len(evidence) > 0 {
			sb.WriteString("\n=== Stored evidence ===\n")
			for _, ev := range evidence {
				fmt.Fprintf(&sb, "- [%s](%s): %s\n", ev.SourceTitle, ev.SourceURL, ev.Quote)
			}
		}
		if stats, err := p.trend.HotTopics(30, 10); err == nil && len(stats) > 0 {
			sb.WriteString("\n=== 30-day topic landscape ===\n")
			for _, st := range stats {
				fmt.Fprintf(&sb, "- %s: seen %d times, best score %.1f\n", st.Topic, st.Frequency, st.BestScore)
			}
		}
	}

	if items := p.matchingScoutItems(dateKey, topic, 5); len(items) > 0 {
		sb.WriteString("\n=== Related scan items ===\n")
		for _, item := range items {
			fmt.Fprintf(&sb, "- %s (%s)\n  %.300s\n", item.Title, item.Source, item.Content)
		}
	}

	return sb.String()
}

func (p *Pipeline) matchingScoutItems(dateKey, topic string, limit int) []domain.ScoutItem {
	names, err := p.artifacts.List(StageScout, dateKey+"-")
	if err != nil {
		return nil
	}
	needle := strings.ToLower(topic)
	var out []domain.ScoutItem
	for _, name := range names {
		raw, err := p.artifacts.Read(StageScout, name)
		if err != nil {
			continue
		}
		var batch domain.ScoutBatch
		if err := json.Unmarshal(raw, &batch); err != nil {
			continue
		}
		for _, item := range batch.Items {
			if strings.Contains(strings.ToLower(item.Title+" "+item.Content), needle) {
				out = append(out, item)
				if len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

// slugify reduces a topic to a short filesystem-safe name fragment.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if n := b.Len(); n > 0 && b.String()[n-1] != '-' {
				b.WriteByte('-')
			}
		}
		if b.Len() >= 40 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
