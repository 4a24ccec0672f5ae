// Package llm abstracts the upstream chat-completion providers behind a
// single Completer interface and implements the bounded-retry calling
// convention every upstream call goes through.
package llm

import (
	"context"
	"regexp"

	"golang.org/x/time/rate"

	"github.com/venture-kit/plan-proxy/internal/resilience"
)

// SystemPrompt is prepended to every model conversation. The pipeline depends
// on strict JSON output; everything else is coaxing.
const SystemPrompt = "You are a JSON API. Output ONLY strict JSON. No markdown, no commentary, no backticks."

const completionTemperature = 0.65

// Message is a single conversational message sent upstream.
type Message struct {
	Role    string
	Content string
}

// Usage reports token consumption for one upstream call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Result is the outcome of one successful upstream call.
type Result struct {
	Content string
	Usage   *Usage
}

// Completer issues a single chat-completion call against one model.
// Implementations must surface non-2xx upstream statuses as
// resilience.UpstreamError so retry classification works.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message) (*Result, error)
}

// Caller wraps a Completer with the retry schedule and an optional outbound
// rate limiter shared by all requests.
type Caller struct {
	Completer Completer
	Retry     resilience.RetryConfig
	Limiter   *rate.Limiter
}

// NewCaller builds a Caller with the default retry schedule. outboundRPS <= 0
// disables outbound rate limiting.
func NewCaller(c Completer, outboundRPS float64) *Caller {
	caller := &Caller{
		Completer: c,
		Retry:     resilience.DefaultRetryConfig(),
	}
	caller.Retry.OnRetry = resilience.RetryLogger("llm", "complete")
	if outboundRPS > 0 {
		caller.Limiter = rate.NewLimiter(rate.Limit(outboundRPS), 1)
	}
	return caller
}

// Complete performs up to three attempts against a single model, retrying
// only transient upstream failures (429/500/502/503/504) with exponential
// backoff. Semantically invalid but successful responses are not retried
// here; that is the parser's concern.
func (c *Caller) Complete(ctx context.Context, model string, messages []Message) (*Result, error) {
	return resilience.DoVal(ctx, c.Retry, func(ctx context.Context) (*Result, error) {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return c.Completer.Complete(ctx, model, messages)
	})
}

// unavailableRe matches upstream failures that mean the model itself is gone
// rather than the call having failed. The fallback chain skips to the next
// candidate on these.
var unavailableRe = regexp.MustCompile(`(?i)model_decommissioned|no longer supported|model_not_found`)

// IsModelUnavailable reports whether err indicates a decommissioned or
// unknown model.
func IsModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return unavailableRe.MatchString(err.Error())
}

// GroqDefaultModels is the fixed fallback tail tried after the configured
// model.
var GroqDefaultModels = []string{
	"llama-3.1-70b-versatile",
	"llama-3.1-8b-instant",
	"mixtral-8x7b-32768",
}

// AnthropicDefaultModels is the fallback tail for the Anthropic provider.
var AnthropicDefaultModels = []string{
	"claude-sonnet-4-5-20250929",
	"claude-haiku-4-5-20251001",
}

// Chain returns the prioritized candidate list: the configured model first
// (when set), then the provider defaults, with duplicates removed.
func Chain(configured string, defaults []string) []string {
	out := make([]string, 0, len(defaults)+1)
	seen := make(map[string]bool)
	for _, m := range append([]string{configured}, defaults...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
