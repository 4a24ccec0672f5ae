// Package fallback provides deterministic, model-free generators used when
// the model and its repair rounds fail to produce a usable result. Nothing in
// this package performs I/O; identical input yields identical output.
package fallback

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/venture-kit/plan-proxy/internal/schema"
)

var (
	cheapRe   = regexp.MustCompile(`cheap|low cost|budget`)
	foodRe    = regexp.MustCompile(`food`)
	productRe = regexp.MustCompile(`product`)

	titleCaser = cases.Title(language.English)
)

var ideaSeeds = []string{
	"Subscription kit",
	"Mobile app service",
	"On-demand support",
	"Digital template shop",
	"Local delivery network",
	"Community micro-learning",
	"Pop-up experience booth",
	"Data insight dashboard",
	"Eco-friendly packaging",
	"AI assisted workflow",
}

// Ideas composes business-idea phrases from a fixed seed list, flavored by
// cost/food/product signals detected in the query. At least one entry is
// guaranteed.
func Ideas(query string, limit int) []string {
	limit = schema.SanitizeLimit(limit, schema.DefaultLimit, schema.MaxLimit)

	base := strings.ToLower(strings.TrimSpace(query))
	if base == "" {
		base = "business"
	}
	hasCheap := cheapRe.MatchString(base)
	hasFood := foodRe.MatchString(base)
	hasProduct := productRe.MatchString(base)

	seen := make(map[string]bool)
	out := make([]string, 0, limit)
	for _, seed := range ideaSeeds {
		if len(out) >= limit {
			break
		}
		idea := capitalize(composeIdea(seed, hasCheap, hasFood, hasProduct))
		if seen[idea] {
			continue
		}
		seen[idea] = true
		out = append(out, idea)
	}
	if len(out) == 0 {
		out = append(out, "Simple local service startup")
	}
	return out
}

// composeIdea prefixes flag phrases that the seed does not already contain.
func composeIdea(seed string, hasCheap, hasFood, hasProduct bool) string {
	var parts []string
	if hasCheap {
		parts = append(parts, "Low-cost")
	}
	if hasFood {
		parts = append(parts, "Food Stall")
	}
	if hasProduct {
		parts = append(parts, "Product")
	}

	seedLower := strings.ToLower(seed)
	kept := parts[:0]
	for _, p := range parts {
		if !strings.Contains(seedLower, strings.ToLower(p)) {
			kept = append(kept, p)
		}
	}
	return strings.Join(append(kept, seed), " ")
}

var solutionCatalog = []schema.Solution{
	{
		Title:     "Clarify Core Issue",
		Rationale: "Establish a precise shared understanding before investing effort.",
		Steps: []string{
			"List top 3 pain points",
			"Rank by impact and urgency",
			"Define success in 1 sentence",
			"Choose single primary objective",
		},
	},
	{
		Title:     "Lightweight Pilot Test",
		Rationale: "Validate a minimal approach with fast feedback and low risk.",
		Steps: []string{
			"Pick smallest viable test scope",
			"Draft quick checklist for execution",
			"Run pilot with limited audience",
			"Collect feedback in structured format",
			"Decide iterate or expand",
		},
	},
	{
		Title:     "Process Simplification Sprint",
		Rationale: "Eliminate avoidable complexity slowing consistent progress.",
		Steps: []string{
			"Map current workflow steps",
			"Mark friction or delays",
			"Remove or merge low-value steps",
			"Document new streamlined flow",
		},
	},
	{
		Title:     "Metrics Alignment Setup",
		Rationale: "Create objective signals guiding iteration confidently.",
		Steps: []string{
			"Select 2 leading indicators",
			"Define simple tracking sheet",
			"Review metrics weekly",
			"Set threshold triggers for action",
		},
	},
	{
		Title:     "Stakeholder Feedback Loop",
		Rationale: "Incorporate real user or team insight early to avoid misalignment.",
		Steps: []string{
			"Identify 3 representative stakeholders",
			"Schedule recurring short sync",
			"Share concise progress snapshot",
			"Capture decisions and adjustments",
		},
	},
}

// Solutions returns the fixed strategy catalog sliced to the requested count.
func Solutions(limit int) []schema.Solution {
	limit = schema.SanitizeLimit(limit, 3, 5)
	out := make([]schema.Solution, limit)
	copy(out, solutionCatalog[:limit])
	return out
}

// Milestone returns a templated definition for the given title plus a fixed
// execution checklist.
func Milestone(title string) schema.Milestone {
	t := strings.TrimSpace(title)
	if t == "" {
		t = "Core Milestone"
	}
	def := "Foundational progress toward: " + t
	if len(def) > 120 {
		def = def[:120]
	}
	return schema.Milestone{
		Definition: def,
		Steps: []string{
			"Define exact success criteria",
			"List essential sub-deliverables",
			"Assign single owner per deliverable",
			"Set review and checkpoint dates",
			"Capture risks and mitigation actions",
		},
	}
}

type searchSeed struct {
	title     string
	snippet   string
	relevance int
}

var searchCatalog = []searchSeed{
	{"Core Overview Guide", "High-level orientation, core concepts, early missteps to avoid, initial leverage points.", 96},
	{"Strategic Framing Insight", "How to convert broad intent into structured actionable focus and sequencing.", 92},
	{"Validation Workflow Outline", "Lean loops to test demand signals and refine offering before scaling effort.", 89},
	{"Key Metrics Snapshot", "Essential quantitative indicators to track traction, efficiency, and retention early.", 86},
	{"Execution Roadmap Draft", "Suggested phased progression balancing build, learning, and commercialization.", 83},
	{"Risk Pattern Breakdown", "Common failure patterns, detection signals, and mitigation leverage points.", 80},
	{"Pricing & Value Signals", "Approaches to exploring willingness to pay and refining value articulation.", 77},
	{"Growth Experiment Seeds", "Lightweight demand generation trial ideas prioritized by learning speed.", 74},
	{"Capital Efficiency Levers", "Practical ways to extend runway while compounding validated learning.", 71},
	{"Capability Build Stack", "Minimal tool and process stack supporting iteration velocity and clarity.", 68},
}

// Search returns the ranked topic catalog sliced to limit, each entry
// augmented with up to two salient query tokens (longer than 3 characters).
// Relevance descends with a per-position decrement.
func Search(query string, limit int) []schema.SearchResult {
	limit = schema.SanitizeLimit(limit, schema.DefaultLimit, schema.MaxLimit)

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		q = "business strategy"
	}
	var tokens []string
	for _, tok := range strings.Fields(q) {
		if len(tok) > 3 {
			tokens = append(tokens, tok)
		}
		if len(tokens) == 2 {
			break
		}
	}

	n := limit
	if n > len(searchCatalog) {
		n = len(searchCatalog)
	}
	out := make([]schema.SearchResult, 0, n)
	for i, seed := range searchCatalog[:n] {
		title := seed.title
		if len(tokens) > 0 {
			title = titleCaser.String(tokens[i%len(tokens)]) + " " + title
		}
		snippet := seed.snippet
		if len(tokens) > 0 {
			snippet += " Focus: " + strings.Join(tokens, ", ") + "."
		}
		out = append(out, schema.SearchResult{
			Title:     title,
			Snippet:   snippet,
			Relevance: seed.relevance - i,
		})
	}
	return out
}

// capitalize upper-cases only the first rune.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
