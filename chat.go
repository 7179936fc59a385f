package propsage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Completer is the injected text-completion capability: given a prompt,
// return a completion or a service failure. Implementations live outside
// the core (internal/gemini_client.go in this repo, test doubles in tests).
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// QueryType buckets a user message for analytics.
type QueryType string

const (
	QueryTypeTrend      QueryType = "trend"
	QueryTypeComparison QueryType = "comparison"
	QueryTypeFilter     QueryType = "filter"
	QueryTypeAnalysis   QueryType = "analysis"
	QueryTypeGeneral    QueryType = "general"
)

// Analyst wraps a Completer with the real-estate prompt repertoire. It
// never calls the data-extraction core; the service layer combines Extract
// output with the Analyst's answer.
type Analyst struct {
	completer Completer
	logger    *zap.SugaredLogger
}

// NewAnalyst builds an Analyst around the given completion capability.
func NewAnalyst(completer Completer) *Analyst {
	return &Analyst{
		completer: completer,
		logger:    zap.S().Named("analyst"),
	}
}

const chatSystemPrompt = `You are a knowledgeable real estate expert AI assistant.
Help users with questions about real estate markets, investment strategies,
location analysis, and property trends. Be helpful, accurate, and provide
practical insights.

CRITICAL RULES FOR RESPONSE:
1. Keep responses EXTREMELY CONCISE (max 2-3 sentences for casual messages)
2. For casual greetings like "hi", "hello", "how are you" - respond with just 1-2 sentences max
3. For technical real estate questions - provide brief key points (max 50-70 words)
4. NEVER write paragraphs or long explanations
5. NO markdown formatting - write plain text only
6. Use bullet points only if absolutely necessary (max 3 bullets)
7. Get straight to the point, no fluff`

// Chat answers a general user message, optionally with conversational
// context (location, prior turns).
func (a *Analyst) Chat(ctx context.Context, message, chatContext string) (string, error) {
	prompt := chatSystemPrompt
	if chatContext != "" {
		prompt += "\n\nContext: " + chatContext
	}
	prompt += "\n\nUser: " + message
	return a.complete(ctx, prompt)
}

// AnalyzeLocation produces a market analysis for one location, steered by
// the user's query.
func (a *Analyst) AnalyzeLocation(ctx context.Context, location, query string) (string, error) {
	prompt := fmt.Sprintf(`You are an expert real estate analyst. Provide detailed analysis for %s.

User query: %s

Please provide:
1. Current market overview
2. Price analysis
3. Demand indicators
4. Investment potential
5. Key recommendations

Be specific with data points where possible and provide actionable insights.`, location, query)
	return a.complete(ctx, prompt)
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// MarketTrends asks for a structured trend analysis and best-effort parses
// the JSON object out of the completion. When the completion carries no
// parseable JSON, the raw text is returned instead.
func (a *Analyst) MarketTrends(ctx context.Context, location string) (map[string]any, string, error) {
	prompt := fmt.Sprintf(`Provide a detailed market trend analysis for real estate in %s.
Include:
1. Price trends (up/down/stable)
2. Demand outlook
3. Investment potential (1-10 score)
4. Key factors affecting the market
5. Recommendations

Format the response as JSON with these fields:
- price_trend: "up" | "down" | "stable"
- demand_score: 0-10
- outlook: string
- key_factors: array of strings
- recommendation: string`, location)

	text, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, "", err
	}
	if match := jsonObjectPattern.FindString(text); match != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(match), &data); err == nil {
			return data, "", nil
		}
	}
	return nil, text, nil
}

// CompareLocations asks for a structured comparison of multiple markets.
func (a *Analyst) CompareLocations(ctx context.Context, locations []string) (string, error) {
	prompt := fmt.Sprintf(`Compare the following real estate markets: %s

Provide comparison in these aspects:
1. Price ranges
2. Market demand
3. Growth potential
4. Investment risk level
5. Best investment type for each location

Format as a clear, structured comparison table.`, strings.Join(locations, ", "))
	return a.complete(ctx, prompt)
}

func (a *Analyst) complete(ctx context.Context, prompt string) (string, error) {
	text, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		a.logger.Errorw("completion failed", "error", err)
		return "", NewError(ErrorTypeService, ErrCodeCompletionFailed, err.Error()).WithCause(err)
	}
	if text == "" {
		return "", NewError(ErrorTypeService, ErrCodeCompletionFailed, "empty completion")
	}
	return text, nil
}

// QueryTypeOf buckets a message by keyword for query analytics.
func QueryTypeOf(message string) QueryType {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, []string{"trend", "growth", "demand", "future"}):
		return QueryTypeTrend
	case containsAny(lower, []string{"compare", "vs", "versus", "difference"}):
		return QueryTypeComparison
	case containsAny(lower, []string{"filter", "show", "display", "list"}):
		return QueryTypeFilter
	case containsAny(lower, []string{"analyze", "analysis", "details", "info"}):
		return QueryTypeAnalysis
	default:
		return QueryTypeGeneral
	}
}
