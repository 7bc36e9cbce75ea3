package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docinsight/internal/model"
)

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"

	analyzeTemperature = 0.3
	reportTemperature  = 0.5
	fallbackSummaryLen = 200
	failedSummary      = "analysis failed"
)

const analyzeSystemPrompt = `You are a professional text analysis assistant. Analyze the given passage and extract:
1. summary: 2-3 sentences covering the main content
2. keyEntities: important people, places, organizations (at most 5)
3. coreArguments: main claims or arguments (at most 3)
4. sentiment: positive/negative/neutral
5. sentimentScore: a number between -1 and 1
6. themes: topics the passage touches (at most 3)
7. quotes: sentences worth remembering (at most 2)

Reply with JSON only, in this shape:
{
  "summary": "...",
  "keyEntities": ["..."],
  "coreArguments": ["..."],
  "sentiment": "positive/negative/neutral",
  "sentimentScore": 0,
  "themes": ["..."],
  "quotes": ["..."]
}`

const reportSystemPrompt = `You are a professional book analyst. Using the analyses of every section, write a complete report on the whole work.

Reply with JSON only, in this shape:
{
  "coreSummary": "core summary of the whole work (300-500 words)",
  "keyElements": {
    "mainCharacters": ["main characters or concepts"],
    "keyThemes": ["core themes"],
    "coreArguments": ["core arguments"],
    "importantQuotes": ["important quotes"]
  },
  "styleAnalysis": {
    "writingStyle": "writing style",
    "narrativeStructure": "narrative structure",
    "languageFeatures": ["language features"]
  },
  "valueAssessment": {
    "academicValue": "academic value",
    "practicalValue": "practical value",
    "targetAudience": "target audience",
    "overallRating": 8.5
  },
  "overallSentiment": "positive/negative/neutral"
}`

// Client is the transport the Provider drives.
type Client interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkInsight is the structured analysis of one chunk.
type ChunkInsight struct {
	Summary        string   `json:"summary"`
	KeyEntities    []string `json:"keyEntities"`
	CoreArguments  []string `json:"coreArguments"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentimentScore,omitempty"`
	Themes         []string `json:"themes"`
	Quotes         []string `json:"quotes"`
	// Raw is the unparsed model reply.
	Raw string `json:"-"`
}

// ReportResult is the whole-document reduction of every ChunkInsight.
type ReportResult struct {
	CoreSummary      string                `json:"coreSummary"`
	KeyElements      model.KeyElements     `json:"keyElements"`
	StyleAnalysis    model.StyleAnalysis   `json:"styleAnalysis"`
	ValueAssessment  model.ValueAssessment `json:"valueAssessment"`
	OverallSentiment string                `json:"overallSentiment"`
}

func failedInsight() ChunkInsight {
	return ChunkInsight{Summary: failedSummary, Sentiment: SentimentNeutral}.normalized()
}

func (ci ChunkInsight) normalized() ChunkInsight {
	ci.Sentiment = NormalizeSentiment(ci.Sentiment)
	ci.KeyEntities = nonNil(ci.KeyEntities)
	ci.CoreArguments = nonNil(ci.CoreArguments)
	ci.Themes = nonNil(ci.Themes)
	ci.Quotes = nonNil(ci.Quotes)
	return ci
}

// NormalizeSentiment maps a free-form label onto positive, negative or neutral.
func NormalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Provider turns raw completions into typed analyses. Analysis and embedding
// failures are absorbed into defaults; completion and report failures are returned.
type Provider struct {
	client Client
}

func NewProvider(client Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) AnalyzeChunk(ctx context.Context, text string) (ChunkInsight, error) {
	reply, err := p.client.Complete(ctx, []ChatMessage{
		{Role: "system", Content: analyzeSystemPrompt},
		{Role: "user", Content: "Analyze the following passage:\n\n" + text},
	}, CompletionOptions{Temperature: Temp(analyzeTemperature)})
	if err != nil {
		if ctx.Err() != nil {
			return ChunkInsight{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("analyze chunk failed")
		return failedInsight(), nil
	}

	obj, ok := extractJSONObject(reply)
	if !ok {
		insight := ChunkInsight{Summary: truncateRunes(reply, fallbackSummaryLen), Raw: reply}
		return insight.normalized(), nil
	}

	var insight ChunkInsight
	if err := json.Unmarshal([]byte(obj), &insight); err != nil {
		log.Warn().Err(err).Msg("decode chunk analysis failed")
		insight = failedInsight()
	}
	insight.Raw = reply
	return insight.normalized(), nil
}

// Embed returns an empty vector, not an error, when the provider fails.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.client.Embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("embed text failed")
		return nil, nil
	}
	return vec, nil
}

func (p *Provider) Complete(ctx context.Context, system string, history []ChatMessage, user string, opts CompletionOptions) (string, error) {
	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: "user", Content: user})
	return p.client.Complete(ctx, messages, opts)
}

func (p *Provider) GenerateReport(ctx context.Context, title string, insights []ChunkInsight) (ReportResult, error) {
	reply, err := p.client.Complete(ctx, []ChatMessage{
		{Role: "system", Content: reportSystemPrompt},
		{Role: "user", Content: reportUserPrompt(title, insights)},
	}, CompletionOptions{Temperature: Temp(reportTemperature), MaxTokens: DefaultMaxTokens})
	if err != nil {
		return ReportResult{}, fmt.Errorf("generate report failed: %w", err)
	}

	obj, ok := extractJSONObject(reply)
	if !ok {
		return ReportResult{CoreSummary: reply}, nil
	}
	var result ReportResult
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		return ReportResult{}, fmt.Errorf("decode report failed: %w", err)
	}
	return result, nil
}

func reportUserPrompt(title string, insights []ChunkInsight) string {
	parts := make([]string, len(insights))
	for i, in := range insights {
		parts[i] = fmt.Sprintf("Part %d:\nSummary: %s\nThemes: %s\nArguments: %s",
			i+1, in.Summary, strings.Join(in.Themes, ", "), strings.Join(in.CoreArguments, "; "))
	}
	return "Title: " + title + "\n\nSection analyses:\n" + strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
