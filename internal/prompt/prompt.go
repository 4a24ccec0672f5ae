// Package prompt turns a request kind and its field bag into the instruction
// text sent upstream. Templates can be overridden per kind from a YAML file;
// the built-in defaults match the schemas the normalizers enforce.
package prompt

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/venture-kit/plan-proxy/internal/schema"
)

// Kind discriminates which template, schema, and normalizer apply.
type Kind string

const (
	KindIdeas          Kind = "ideas"
	KindSolutions      Kind = "solutions"
	KindMilestone      Kind = "milestone"
	KindPlan           Kind = "plan"
	KindPlanFinancials Kind = "plan_financials"
	KindSearch         Kind = "search"
)

// AllKinds lists the supported kinds in a stable order, for error payloads
// and the info endpoint.
func AllKinds() []Kind {
	return []Kind{KindIdeas, KindSolutions, KindMilestone, KindPlan, KindPlanFinancials, KindSearch}
}

// ParseKind validates a raw type string.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.TrimSpace(s))
	for _, known := range AllKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Detect infers the kind when the request carries no explicit type.
// Precedence: activity+problem selects solutions, then a title selects
// milestone, everything else defaults to ideas.
func Detect(f Fields) Kind {
	if strings.TrimSpace(f.Activity) != "" && strings.TrimSpace(f.Problem) != "" {
		return KindSolutions
	}
	if strings.TrimSpace(f.Title) != "" {
		return KindMilestone
	}
	return KindIdeas
}

// Fields is the raw input bag a request may carry. Which fields matter
// depends on the kind.
type Fields struct {
	Query      string
	Activity   string
	Problem    string
	Goal       string
	Title      string
	Context    string
	Suggestion string
	Limit      int
}

// Spec is an immutable built prompt. Text does not depend on model identity,
// so one Spec serves the whole candidate chain.
type Spec struct {
	Kind Kind
	Text string
}

// ErrMissingContext reports a plan-kind request with neither context nor
// suggestion to plan from.
var ErrMissingContext = eris.New("prompt: missing context")

// UnsupportedKindError lists the allowed kinds so clients can self-correct.
type UnsupportedKindError struct {
	Received string
}

func (e *UnsupportedKindError) Error() string {
	allowed := make([]string, 0, len(AllKinds()))
	for _, k := range AllKinds() {
		allowed = append(allowed, string(k))
	}
	return "prompt: unsupported kind " + e.Received + " (allowed: " + strings.Join(allowed, ", ") + ")"
}

var (
	foodsRe    = regexp.MustCompile(`(?i)\bfoods\b`)
	productRe  = regexp.MustCompile(`(?i)\bproduct\b`)
	productsRe = regexp.MustCompile(`(?i)\bproducts\b`)
)

// IdeasTopic derives the subject line for an ideas prompt from whichever
// fields are present, applying light lexical normalization for diversity.
func IdeasTopic(f Fields) string {
	parts := make([]string, 0, 5)
	for _, v := range []string{f.Query, f.Title, f.Problem, f.Goal, f.Activity} {
		if s := strings.TrimSpace(v); s != "" {
			parts = append(parts, s)
		}
	}
	topic := strings.TrimSpace(strings.Join(parts, " "))
	if topic == "" {
		return "general small business ideas"
	}
	topic = foodsRe.ReplaceAllString(topic, "food")
	if productRe.MatchString(topic) && !productsRe.MatchString(topic) {
		topic = productRe.ReplaceAllString(topic, "products")
	}
	return topic
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Build constructs the prompt for a kind. Plan kinds return ErrMissingContext
// when nothing describes the business; unknown kinds return an
// UnsupportedKindError.
func (b *Builder) Build(kind Kind, f Fields) (Spec, error) {
	var data templateData
	switch kind {
	case KindIdeas:
		data = templateData{
			N:     schema.SanitizeLimit(f.Limit, schema.DefaultLimit, schema.MaxLimit),
			Topic: IdeasTopic(f),
		}
	case KindSolutions:
		data = templateData{
			N:        schema.SanitizeLimit(f.Limit, 3, 5),
			Activity: firstNonEmptyOr("General business", f.Activity, f.Title, f.Query),
			Problem:  firstNonEmptyOr("General challenge to solve", f.Problem, f.Query, f.Goal),
			Goal:     strings.TrimSpace(f.Goal),
		}
	case KindMilestone:
		data = templateData{
			Title: firstNonEmptyOr("Core Milestone", f.Title, f.Query, f.Problem, f.Goal, f.Activity),
		}
	case KindPlan:
		if strings.TrimSpace(f.Context) == "" && strings.TrimSpace(f.Suggestion) == "" {
			return Spec{}, ErrMissingContext
		}
		data = templateData{Base: f.Context + "\nSuggestion:" + f.Suggestion}
	case KindPlanFinancials:
		if strings.TrimSpace(f.Context) == "" {
			return Spec{}, ErrMissingContext
		}
		data = templateData{Base: f.Context}
	case KindSearch:
		q := strings.TrimSpace(f.Query)
		instruction := "Query: (empty) Provide broadly useful actionable startup or small business strategy topics"
		if q != "" {
			instruction = "Query: " + q
		}
		data = templateData{
			N:                schema.SanitizeLimit(f.Limit, schema.DefaultLimit, schema.MaxLimit),
			QueryInstruction: instruction,
		}
	default:
		return Spec{}, &UnsupportedKindError{Received: string(kind)}
	}

	text, err := b.render(kind, data)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Kind: kind, Text: text}, nil
}

func firstNonEmptyOr(def string, vals ...string) string {
	if s := firstNonEmpty(vals...); s != "" {
		return s
	}
	return def
}

// RepairInstruction builds the follow-up message sent when a previous model
// output failed to parse or normalize. The reason tag is embedded verbatim so
// the model sees what went wrong.
func RepairInstruction(kind Kind, reason string) string {
	base := "Previous output was invalid (" + reason + "). Return ONLY valid JSON for the required schema."
	switch kind {
	case KindIdeas:
		return base + ` Schema: {"ideas":["idea 1","idea 2"]}. 6-12 concise actionable business ideas. No numbering, no extra keys.`
	case KindSolutions:
		return base + ` Schema: {"solutions":[{"title":"","rationale":"","steps":["step1","step2"]}]}. Provide 3 solutions unless limit specified earlier. Title <=6 words; rationale EXACTLY 1 sentence; each has 4-6 imperative steps.`
	case KindMilestone:
		return base + ` Schema: {"definition":"","steps":["step1","step2"]}. Provide definition <=22 words and exactly 5 concrete actionable steps.`
	case KindPlan, KindPlanFinancials:
		return base + ` Schema: {"title":"","summary":"","pricing":{"pricePerUnit":0,"capitalRequired":0},"sales":{"estMonthlyUnits":0,"assumptions":[""],"growthPctMonth":0},"inventory":[{"name":"","qty":0,"unitCost":0}],"expenses":[{"name":"","monthlyCost":0}],"milestones":[""],"innovations":[""],"metrics":{"grossMarginPct":0,"operatingMarginPct":0,"breakevenMonths":0}}. Follow all numeric constraints. No extra keys.`
	case KindSearch:
		return base + ` Schema: {"results":[{"title":"","snippet":"","relevance":0}]}. Provide 6-12 results ordered by descending relevance (integer 40-100). Title 3-9 words, snippet 12-28 words.`
	}
	return ""
}
