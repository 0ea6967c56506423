package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ContentForge/internal/state"
)

const auditPrompt = `You are a quality auditor for a daily publication. Given today's run
summary and an excerpt of the published article, assess output quality.
Reply with JSON only: {"score": 1-10, "issues": ["..."], "summary": "one paragraph"}.
An empty issues array means the day looks healthy.`

type auditVerdict struct {
	Score   float64  `json:"score"`
	Issues  []string `json:"issues"`
	Summary string   `json:"summary"`
}

type auditReport struct {
	Date       string       `json:"date"`
	Artifacts  []auditEntry `json:"artifacts"`
	Consistent bool         `json:"state_consistent"`
	Issues     []string     `json:"issues"`
	Verdict    auditVerdict `json:"verdict"`
}

type auditEntry struct {
	Stage   string `json:"stage"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Bytes   int64  `json:"bytes"`
}

// Observe audits the date's output: artifact presence and sizes, state
// document consistency, and a model read of the published article. Issues
// become observer flags; the report is written even when the day produced
// nothing, because "nothing happened" is itself worth flagging.
func (p *Pipeline) Observe(ctx context.Context, req Request) (string, error) {
	dateKey := p.dateKey(req)

	report := auditReport{Date: dateKey, Consistent: true}

	p.auditArtifacts(dateKey, &report)
	doc := p.state.Load()
	p.auditState(doc, &report)
	p.auditQuality(ctx, dateKey, &report)

	for _, issue := range report.Issues {
		p.state.AddObserverFlag(doc, "audit", issue)
	}
	if len(report.Issues) > 0 {
		if err := p.state.Save(doc); err != nil {
			return "", fmt.Errorf("persist observer flags: %w", err)
		}
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode audit report: %w", err)
	}
	name := dateKey + "-audit.json"
	if err := p.artifacts.Write(StageObserver, name, raw); err != nil {
		return "", err
	}

	p.sendMessage(ctx, renderAuditSummary(report))

	p.logger.Info("observe finished", "date", dateKey, "issues", len(report.Issues))
	return name, nil
}

// auditArtifacts checks what the earlier stages left behind for the date.
func (p *Pipeline) auditArtifacts(dateKey string, report *auditReport) {
	scoutNames, err := p.artifacts.List(StageScout, dateKey+"-")
	if err != nil {
		report.Issues = append(report.Issues, "scan artifact listing failed: "+err.Error())
	}
	for _, name := range scoutNames {
		report.Artifacts = append(report.Artifacts, p.auditOne(StageScout, name))
	}
	if len(scoutNames) == 0 {
		report.Issues = append(report.Issues, "no scan batches recorded for "+dateKey)
	}

	for _, probe := range []struct{ stage, name string }{
		{StageSage, dateKey + "-analysis.json"},
		{StageDrafts, dateKey + "-article.md"},
		{StageGrowth, dateKey + "-growth.md"},
	} {
		entry := p.auditOne(probe.stage, probe.name)
		report.Artifacts = append(report.Artifacts, entry)
		if !entry.Present {
			report.Issues = append(report.Issues, fmt.Sprintf("missing %s/%s", probe.stage, probe.name))
		} else if entry.Bytes == 0 {
			report.Issues = append(report.Issues, fmt.Sprintf("empty %s/%s", probe.stage, probe.name))
		}
	}
}

func (p *Pipeline) auditOne(stage, name string) auditEntry {
	entry := auditEntry{Stage: stage, Name: name}
	if !p.artifacts.Exists(stage, name) {
		return entry
	}
	entry.Present = true
	entry.Bytes = p.artifacts.Size(stage, name)
	return entry
}

// auditState looks for internal contradictions in the state document.
func (p *Pipeline) auditState(doc *state.Document, report *auditReport) {
	seen := make(map[string]struct{}, len(doc.ProcessedURLs))
	dups := 0
	for _, u := range doc.ProcessedURLs {
		if _, ok := seen[u]; ok {
			dups++
		}
		seen[u] = struct{}{}
	}
	if dups > 0 {
		report.Consistent = false
		report.Issues = append(report.Issues, fmt.Sprintf("%d duplicate processed URLs", dups))
	}

	for _, entry := range doc.WrittenTopics {
		if entry.Date == "" || entry.Topic == "" {
			report.Consistent = false
			report.Issues = append(report.Issues, "written-topic entry missing topic or date")
			break
		}
	}

	if doc.DailyPublishCount < 0 {
		report.Consistent = false
		report.Issues = append(report.Issues, fmt.Sprintf("negative publish counter: %d", doc.DailyPublishCount))
	}

	for _, item := range doc.PaidQueue {
		switch item.Status {
		case state.StatusPending, state.StatusProcessing, state.StatusDone:
		default:
			report.Consistent = false
			report.Issues = append(report.Issues, "queue item with unknown status: "+item.Status)
		}
	}
}

// auditQuality asks the model to read the published article. A failed or
// unparseable call degrades to a neutral verdict so the audit still lands.
func (p *Pipeline) auditQuality(ctx context.Context, dateKey string, report *auditReport) {
	report.Verdict = auditVerdict{Score: 5, Summary: "quality check unavailable"}

	article, err := p.artifacts.Read(StageDrafts, dateKey+"-article.md")
	if err != nil {
		report.Verdict.Summary = "no article to assess"
		return
	}

	excerpt := string(article)
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}
	input := fmt.Sprintf("Date: %s\nKnown issues so far: %s\n\nArticle excerpt:\n%s",
		dateKey, strings.Join(report.Issues, "; "), excerpt)

	reply, err := p.chat.Complete(ctx, auditPrompt, input)
	if err != nil {
		p.logger.Warn("quality audit call failed", "error", err)
		return
	}
	var verdict auditVerdict
	if err := json.Unmarshal([]byte(reply), &verdict); err != nil {
		p.logger.Warn("quality audit reply unparseable", "error", err)
		return
	}
	report.Verdict = verdict
	report.Issues = append(report.Issues, verdict.Issues...)
}

func renderAuditSummary(report auditReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Daily audit %s</b>\n", report.Date)
	fmt.Fprintf(&sb, "Quality score: %.1f/10\n", report.Verdict.Score)
	if report.Verdict.Summary != "" {
		sb.WriteString(report.Verdict.Summary + "\n")
	}
	if len(report.Issues) == 0 {
		sb.WriteString("No issues found.")
	} else {
		fmt.Fprintf(&sb, "Issues (%d):\n", len(report.Issues))
		for _, issue := range report.Issues {
			sb.WriteString("- " + issue + "\n")
		}
	}
	return sb.String()
}
