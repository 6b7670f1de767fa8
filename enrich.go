package linkstash

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombar/linkstash/metrics"
	"github.com/zombar/linkstash/models"
)

const (
	// summaryUnavailable is the fallback summary when the model call fails.
	summaryUnavailable = "Summary unavailable"

	// tagContextLimit and summaryContextLimit bound how much page text each
	// prompt carries, to bound cost and latency.
	tagContextLimit     = 1000
	summaryContextLimit = 2000
)

// Generator produces text from a prompt. *gemini.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Enricher classifies pages into the fixed tag vocabulary and produces short
// summaries.
type Enricher struct {
	model Generator
}

// NewEnricher creates a new Enricher backed by the given model.
func NewEnricher(model Generator) *Enricher {
	return &Enricher{model: model}
}

// Enrich generates tags and a summary for an extracted page. It never fails:
// any model error degrades the whole enrichment to empty tags and the
// fallback summary, with Degraded set so callers can see it happened.
func (e *Enricher) Enrich(ctx context.Context, meta *models.PageMetadata, targetURL string) *models.Enrichment {
	tagsText, err := e.model.Generate(ctx, tagPrompt(meta, targetURL))
	if err != nil {
		slog.Warn("tag generation failed, degrading enrichment", "url", targetURL, "error", err)
		metrics.AIRequestsTotal.WithLabelValues("tags", "error").Inc()
		return degradedEnrichment()
	}
	metrics.AIRequestsTotal.WithLabelValues("tags", "ok").Inc()

	summary, err := e.model.Generate(ctx, summaryPrompt(meta))
	if err != nil {
		slog.Warn("summary generation failed, degrading enrichment", "url", targetURL, "error", err)
		metrics.AIRequestsTotal.WithLabelValues("summary", "error").Inc()
		return degradedEnrichment()
	}
	metrics.AIRequestsTotal.WithLabelValues("summary", "ok").Inc()

	return &models.Enrichment{
		Tags:    filterTags(tagsText),
		Summary: strings.TrimSpace(summary),
	}
}

// Summarize regenerates only the summary for a stored link's detail view.
// Degrades the same way Enrich does.
func (e *Enricher) Summarize(ctx context.Context, meta *models.PageMetadata) string {
	summary, err := e.model.Generate(ctx, summaryPrompt(meta))
	if err != nil {
		slog.Warn("summary generation failed", "error", err)
		metrics.AIRequestsTotal.WithLabelValues("summary", "error").Inc()
		return summaryUnavailable
	}
	metrics.AIRequestsTotal.WithLabelValues("summary", "ok").Inc()
	return strings.TrimSpace(summary)
}

func degradedEnrichment() *models.Enrichment {
	return &models.Enrichment{
		Tags:     []string{},
		Summary:  summaryUnavailable,
		Degraded: true,
	}
}

// tagPrompt instructs the model to pick only from the fixed vocabulary.
func tagPrompt(meta *models.PageMetadata, targetURL string) string {
	return fmt.Sprintf(`Based on the following content, return ONLY the most relevant tags from this EXACT list: %s.

Title: %s
Description: %s
URL: %s
Content: %s

Return only the relevant tag names from the given categories, separated by commas. If none fit perfectly, choose the closest match or return empty.`,
		strings.Join(models.TagCategories, ", "),
		meta.Title,
		meta.Description,
		targetURL,
		truncate(meta.PageText, tagContextLimit))
}

// summaryPrompt asks for a brief 2-3 sentence summary.
func summaryPrompt(meta *models.PageMetadata) string {
	return fmt.Sprintf(`Create a concise 2-3 sentence summary of the following web page content:

Title: %s
Description: %s
Content: %s

Focus on the main points and key information. Keep it informative but brief.`,
		meta.Title,
		meta.Description,
		truncate(meta.PageText, summaryContextLimit))
}

// filterTags parses the model's comma-separated tag response and keeps only
// values that case-insensitively match the vocabulary, canonicalized to the
// vocabulary's spelling. The model may hallucinate categories or append
// commentary; none of that survives this filter.
func filterTags(raw string) []string {
	tags := []string{}
	seen := make(map[string]bool)
	for _, piece := range strings.Split(raw, ",") {
		candidate := strings.TrimSpace(piece)
		if candidate == "" {
			continue
		}
		for _, category := range models.TagCategories {
			if strings.EqualFold(candidate, category) && !seen[category] {
				seen[category] = true
				tags = append(tags, category)
				break
			}
		}
	}
	return tags
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
