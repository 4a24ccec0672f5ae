// Package planner is the request orchestrator: it resolves the request kind,
// builds the prompt, walks the model fallback chain, drives parse / repair /
// fallback escalation, and assembles the response envelope.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venture-kit/plan-proxy/internal/fallback"
	"github.com/venture-kit/plan-proxy/internal/finance"
	"github.com/venture-kit/plan-proxy/internal/llm"
	"github.com/venture-kit/plan-proxy/internal/parse"
	"github.com/venture-kit/plan-proxy/internal/prompt"
	"github.com/venture-kit/plan-proxy/internal/schema"
)

// EnvelopeVersion tags the response wire shape.
const EnvelopeVersion = 4

// Request is the POST body of an assist call.
type Request struct {
	Type          string `json:"type"`
	Query         string `json:"query"`
	Activity      string `json:"activity"`
	Problem       string `json:"problem"`
	Goal          string `json:"goal"`
	Title         string `json:"title"`
	Limit         int    `json:"limit"`
	Context       string `json:"context"`
	Suggestion    string `json:"suggestion"`
	ForceFallback bool   `json:"forceFallback"`
	StrictModel   bool   `json:"strictModel"`
}

func (r Request) fields() prompt.Fields {
	return prompt.Fields{
		Query:      r.Query,
		Activity:   r.Activity,
		Problem:    r.Problem,
		Goal:       r.Goal,
		Title:      r.Title,
		Context:    r.Context,
		Suggestion: r.Suggestion,
		Limit:      r.Limit,
	}
}

// DetailedIdea pairs an idea with its stable content-derived id.
type DetailedIdea struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DetailedResult is a search result with its stable content-derived id.
type DetailedResult struct {
	ID string `json:"id"`
	schema.SearchResult
}

// DebugInfo is attached to envelopes when debug mode is on.
type DebugInfo struct {
	ModelChainTried []string   `json:"modelChainTried"`
	ModelCallMs     int64      `json:"modelCallMs"`
	Repair1Ms       int64      `json:"repair1Ms"`
	Repair2Ms       int64      `json:"repair2Ms"`
	ResponseChars   int        `json:"responseChars"`
	Usage           *llm.Usage `json:"usage,omitempty"`
}

// Envelope is the successful response body. Kind-specific payload fields are
// populated for exactly one kind.
type Envelope struct {
	Version      int    `json:"version"`
	CodeVersion  string `json:"codeVersion"`
	ModelUsed    string `json:"modelUsed"`
	ModelAttempt int    `json:"modelAttempt"`
	Repaired     bool   `json:"repaired"`
	FallbackUsed bool   `json:"fallbackUsed"`
	Origin       string `json:"origin"`
	Forced       bool   `json:"forced,omitempty"`

	Ideas           []string              `json:"ideas,omitempty"`
	IdeasDetailed   []DetailedIdea        `json:"ideasDetailed,omitempty"`
	Solutions       []schema.Solution     `json:"solutions,omitempty"`
	Definition      string                `json:"definition,omitempty"`
	Steps           []string              `json:"steps,omitempty"`
	PlanVersion     int                   `json:"planVersion,omitempty"`
	Plan            any                   `json:"plan,omitempty"`
	Results         []schema.SearchResult `json:"results,omitempty"`
	ResultsDetailed []DetailedResult      `json:"resultsDetailed,omitempty"`

	RequestMeta map[string]any `json:"requestMeta"`
	Debug       *DebugInfo     `json:"debug,omitempty"`
}

// Orchestrator coordinates one assist request end to end. It is stateless;
// all per-request state lives in the session.
type Orchestrator struct {
	Builder     *prompt.Builder
	Models      []string
	Debug       bool
	CodeVersion string
}

// New builds an Orchestrator over a model candidate chain.
func New(builder *prompt.Builder, models []string, debug bool, codeVersion string) *Orchestrator {
	if codeVersion == "" {
		codeVersion = "unknown"
	}
	return &Orchestrator{Builder: builder, Models: models, Debug: debug, CodeVersion: codeVersion}
}

// computeOrigin resolves the provenance tag with forced > fallback >
// repaired > model precedence.
func computeOrigin(forced, fallbackUsed, repaired bool) string {
	switch {
	case forced:
		return "forced"
	case fallbackUsed:
		return "fallback"
	case repaired:
		return "repaired"
	default:
		return "model"
	}
}

// Handle runs the pipeline for one request. Failures are returned as
// *HTTPError; anything else is an internal fault the transport layer should
// map to a 500.
func (o *Orchestrator) Handle(ctx context.Context, caller *llm.Caller, req Request) (*Envelope, error) {
	s := &session{
		o:          o,
		caller:     caller,
		req:        req,
		receivedAt: time.Now().UnixMilli(),
	}

	if env, handled := s.forcedFallback(); handled {
		return env, nil
	}

	kind, err := resolveKind(req)
	if err != nil {
		return nil, err
	}
	s.kind = kind

	spec, err := o.Builder.Build(kind, req.fields())
	if err != nil {
		return nil, mapBuildError(err)
	}

	if err := s.runModelChain(ctx, spec.Text); err != nil {
		return nil, err
	}

	s.parsed, _ = parse.JSONObject(s.content)
	if s.parsed == nil {
		ok, err := s.attemptRepair(ctx, "initial_parse_failed")
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.parseFailed()
		}
	}

	switch kind {
	case prompt.KindIdeas:
		return s.resolveIdeas(ctx)
	case prompt.KindSolutions:
		return s.resolveSolutions(ctx)
	case prompt.KindMilestone:
		return s.resolveMilestone(ctx)
	case prompt.KindPlan, prompt.KindPlanFinancials:
		return s.resolvePlan(ctx)
	case prompt.KindSearch:
		return s.resolveSearch(ctx)
	}
	return nil, newHTTPError(http.StatusInternalServerError, "unexpected_branch", nil)
}

// resolveKind validates an explicit type or infers one from the field bag.
func resolveKind(req Request) (prompt.Kind, error) {
	if req.Type == "" {
		return prompt.Detect(req.fields()), nil
	}
	kind, ok := prompt.ParseKind(req.Type)
	if !ok {
		return "", unsupportedTypeError(req.Type)
	}
	return kind, nil
}

func unsupportedTypeError(received string) *HTTPError {
	allowed := make([]string, 0, len(prompt.AllKinds()))
	for _, k := range prompt.AllKinds() {
		allowed = append(allowed, string(k))
	}
	return newHTTPError(http.StatusBadRequest, "unsupported_type", map[string]any{
		"received_type": received,
		"allowed_types": allowed,
	})
}

func mapBuildError(err error) error {
	var uke *prompt.UnsupportedKindError
	switch {
	case errors.As(err, &uke):
		return unsupportedTypeError(uke.Received)
	case errors.Is(err, prompt.ErrMissingContext):
		return newHTTPError(http.StatusBadRequest, "missing_context", nil)
	default:
		return err
	}
}

// session carries the mutable state of one orchestration.
type session struct {
	o      *Orchestrator
	caller *llm.Caller
	req    Request
	kind   prompt.Kind

	model   string
	attempt int
	tried   []string

	content  string
	parsed   map[string]any
	usage    *llm.Usage
	repaired bool

	modelCallMs int64
	repair1Ms   int64
	repair2Ms   int64
	receivedAt  int64
}

// forcedFallback serves the testing bypass: an explicit type plus
// forceFallback=true returns the heuristic result without touching the model.
// Plan kinds have no heuristic, so the bypass does not apply to them.
func (s *session) forcedFallback() (*Envelope, bool) {
	if !s.req.ForceFallback {
		return nil, false
	}
	kind, ok := prompt.ParseKind(s.req.Type)
	if !ok {
		return nil, false
	}

	env := s.envelope(kind, true, false)
	env.ModelUsed = "heuristic"
	env.ModelAttempt = 0
	env.Origin = computeOrigin(true, true, false)
	env.Forced = true

	switch kind {
	case prompt.KindIdeas:
		s.attachIdeas(env, fallback.Ideas(s.req.Query, s.req.Limit))
	case prompt.KindSolutions:
		env.Solutions = fallback.Solutions(s.req.Limit)
	case prompt.KindMilestone:
		ms := fallback.Milestone(s.req.Title)
		env.Definition = ms.Definition
		env.Steps = ms.Steps
	case prompt.KindSearch:
		s.attachSearch(env, fallback.Search(s.req.Query, s.req.Limit))
	default:
		return nil, false
	}
	return env, true
}

// runModelChain tries each candidate until one completes. Unavailable-model
// failures skip to the next candidate; any other failure stops the chain.
func (s *session) runModelChain(ctx context.Context, promptText string) error {
	messages := []llm.Message{
		{Role: "system", Content: llm.SystemPrompt},
		{Role: "user", Content: promptText},
	}

	var lastErr error
	for i, candidate := range s.o.Models {
		s.tried = append(s.tried, candidate)
		t0 := time.Now()
		res, err := s.caller.Complete(ctx, candidate, messages)
		s.modelCallMs = time.Since(t0).Milliseconds()
		if err == nil {
			s.model = candidate
			s.attempt = i + 1
			s.content = res.Content
			s.usage = res.Usage
			return nil
		}
		lastErr = err
		if llm.IsModelUnavailable(err) {
			zap.L().Info("planner: model unavailable, trying next candidate",
				zap.String("model", candidate), zap.Error(err))
			continue
		}
		break
	}

	lastMsg := ""
	if lastErr != nil {
		lastMsg = lastErr.Error()
	}
	return newHTTPError(http.StatusBadGateway, "model_unavailable", map[string]any{
		"tried":   s.o.Models,
		"lastErr": truncate(lastMsg, 300),
	})
}

// attemptRepair re-prompts the model once per request for the generic path.
// Returns whether the repair produced parseable content.
func (s *session) attemptRepair(ctx context.Context, reason string) (bool, error) {
	if s.repaired {
		return false, nil
	}
	s.repaired = true

	instruction := prompt.RepairInstruction(s.kind, reason)
	if instruction == "" {
		return false, nil
	}
	zap.L().Info("planner: repair attempt", zap.String("kind", string(s.kind)), zap.String("reason", reason))

	t0 := time.Now()
	res, err := s.caller.Complete(ctx, s.model, []llm.Message{
		{Role: "system", Content: llm.SystemPrompt},
		{Role: "user", Content: instruction},
	})
	s.repair1Ms = time.Since(t0).Milliseconds()
	if err != nil {
		return false, err
	}
	s.content = res.Content
	s.usage = res.Usage
	s.parsed, _ = parse.JSONObject(s.content)
	return s.parsed != nil, nil
}

// secondIdeasRepair is the ideas-only extra round. It replaces session state
// only when the new output carries a non-empty ideas array; upstream errors
// are swallowed so the first repair's state survives.
func (s *session) secondIdeasRepair(ctx context.Context) {
	instruction := prompt.RepairInstruction(s.kind, "empty_ideas_list_second")
	zap.L().Info("planner: second ideas repair attempt")

	t0 := time.Now()
	res, err := s.caller.Complete(ctx, s.model, []llm.Message{
		{Role: "system", Content: llm.SystemPrompt},
		{Role: "user", Content: instruction},
	})
	s.repair2Ms = time.Since(t0).Milliseconds()
	if err != nil {
		zap.L().Warn("planner: second ideas repair failed", zap.Error(err))
		return
	}
	parsed, _ := parse.JSONObject(res.Content)
	if parsed == nil {
		return
	}
	if ideas, ok := parsed["ideas"].([]any); !ok || len(ideas) == 0 {
		return
	}
	s.content = res.Content
	s.usage = res.Usage
	s.parsed = parsed
}

// parseFailed resolves a request whose content never parsed, after the
// generic repair round. Plan kinds fail closed; other kinds fall back unless
// strict mode blocks substitution.
func (s *session) parseFailed() (*Envelope, error) {
	switch s.kind {
	case prompt.KindPlan, prompt.KindPlanFinancials:
		return nil, newHTTPError(http.StatusBadGateway, "parse_failed", map[string]any{
			"raw": truncate(s.content, 500),
		})
	}
	if s.req.StrictModel {
		return nil, newHTTPError(http.StatusBadGateway, "parse_failed_strict", map[string]any{
			"schema": string(s.kind),
		})
	}

	// The repair attempt did not help, so the envelope reports it as not
	// repaired; provenance is carried by origin=fallback.
	env := s.envelope(s.kind, true, false)
	switch s.kind {
	case prompt.KindIdeas:
		s.attachIdeas(env, fallback.Ideas(s.req.Query, s.req.Limit))
	case prompt.KindSolutions:
		env.Solutions = fallback.Solutions(s.req.Limit)
	case prompt.KindMilestone:
		ms := fallback.Milestone(s.req.Title)
		env.Definition = ms.Definition
		env.Steps = ms.Steps
	case prompt.KindSearch:
		s.attachSearch(env, fallback.Search(s.req.Query, s.req.Limit))
	}
	return env, nil
}

func (s *session) resolveIdeas(ctx context.Context) (*Envelope, error) {
	limit := schema.SanitizeLimit(s.req.Limit, schema.DefaultLimit, schema.MaxLimit)
	ideas := schema.NormalizeIdeas(s.parsed, limit)
	fallbackUsed := false

	if len(ideas) == 0 {
		ok, err := s.attemptRepair(ctx, "empty_ideas_list")
		if err != nil {
			return nil, err
		}
		if !ok {
			if s.req.StrictModel {
				return nil, strictError("empty_after_model_strict", s.kind)
			}
			ideas = fallback.Ideas(s.req.Query, limit)
			fallbackUsed = true
		} else {
			ideas = schema.NormalizeIdeas(s.parsed, limit)
			if len(ideas) == 0 {
				s.secondIdeasRepair(ctx)
				ideas = schema.NormalizeIdeas(s.parsed, limit)
				if len(ideas) == 0 {
					if s.req.StrictModel {
						return nil, strictError("empty_after_repairs_strict", s.kind)
					}
					ideas = fallback.Ideas(s.req.Query, limit)
					fallbackUsed = true
				}
			}
		}
	}
	// Hard guard: an empty array never reaches the caller.
	if len(ideas) == 0 {
		if s.req.StrictModel {
			return nil, strictError("empty_final_strict", s.kind)
		}
		ideas = fallback.Ideas(s.req.Query, limit)
		fallbackUsed = true
	}

	env := s.envelope(s.kind, fallbackUsed, s.repaired)
	s.attachIdeas(env, ideas)
	return env, nil
}

func (s *session) resolveSolutions(ctx context.Context) (*Envelope, error) {
	sols := schema.NormalizeSolutions(s.parsed)
	fallbackUsed := false

	if len(sols) == 0 {
		ok, err := s.attemptRepair(ctx, "empty_solutions_list")
		if err != nil {
			return nil, err
		}
		if ok {
			sols = schema.NormalizeSolutions(s.parsed)
		}
		if len(sols) == 0 {
			if s.req.StrictModel {
				if ok {
					return nil, strictError("empty_after_repair_strict", s.kind)
				}
				return nil, strictError("empty_after_model_strict", s.kind)
			}
			sols = fallback.Solutions(s.req.Limit)
			fallbackUsed = true
		}
	}

	env := s.envelope(s.kind, fallbackUsed, s.repaired)
	env.Solutions = sols
	return env, nil
}

func (s *session) resolveMilestone(ctx context.Context) (*Envelope, error) {
	ms := schema.NormalizeMilestone(s.parsed)
	fallbackUsed := false

	if ms.Definition == "" || len(ms.Steps) == 0 {
		ok, err := s.attemptRepair(ctx, "invalid_milestone_shape")
		if err != nil {
			return nil, err
		}
		if ok {
			ms = schema.NormalizeMilestone(s.parsed)
		}
		if ms.Definition == "" || len(ms.Steps) == 0 {
			if s.req.StrictModel {
				if ok {
					return nil, strictError("invalid_after_repair_strict", s.kind)
				}
				return nil, strictError("invalid_after_model_strict", s.kind)
			}
			ms = fallback.Milestone(s.req.Title)
			fallbackUsed = true
		}
	}

	env := s.envelope(s.kind, fallbackUsed, s.repaired)
	env.Definition = ms.Definition
	env.Steps = ms.Steps
	return env, nil
}

// resolvePlan handles both plan kinds. There is no heuristic fallback here: a
// fabricated financial narrative is worse than an explicit error.
func (s *session) resolvePlan(ctx context.Context) (*Envelope, error) {
	plan := schema.NormalizePlan(s.parsed)
	if plan == nil || plan.Title == "" {
		ok, err := s.attemptRepair(ctx, "invalid_plan_shape")
		if err != nil {
			return nil, err
		}
		if !ok {
			raw, _ := json.Marshal(s.parsed)
			return nil, newHTTPError(http.StatusBadGateway, "invalid_plan", map[string]any{
				"raw": truncate(string(raw), 700),
			})
		}
		plan = schema.NormalizePlan(s.parsed)
		if plan == nil || plan.Title == "" {
			return nil, newHTTPError(http.StatusBadGateway, "invalid_plan_after_repair", nil)
		}
	}

	derived := finance.Derive(plan)
	env := s.envelope(s.kind, false, s.repaired)
	env.PlanVersion = derived.Projection.PlanVersion
	if s.kind == prompt.KindPlanFinancials {
		env.Plan = derived.Slice()
	} else {
		env.Plan = derived
	}
	return env, nil
}

func (s *session) resolveSearch(ctx context.Context) (*Envelope, error) {
	limit := schema.SanitizeLimit(s.req.Limit, schema.DefaultLimit, schema.MaxLimit)
	results := schema.NormalizeSearch(s.parsed, limit)
	fallbackUsed := false

	if len(results) == 0 {
		ok, err := s.attemptRepair(ctx, "empty_search_results")
		if err != nil {
			return nil, err
		}
		if ok {
			results = schema.NormalizeSearch(s.parsed, limit)
		}
		if len(results) == 0 {
			if s.req.StrictModel {
				return nil, strictError("empty_after_model_strict", s.kind)
			}
			results = fallback.Search(s.req.Query, limit)
			fallbackUsed = true
		}
	}

	env := s.envelope(s.kind, fallbackUsed, s.repaired)
	s.attachSearch(env, results)
	return env, nil
}

func strictError(code string, kind prompt.Kind) *HTTPError {
	return newHTTPError(http.StatusBadGateway, code, map[string]any{"schema": string(kind)})
}

// envelope assembles the shared header and request metadata for a kind.
func (s *session) envelope(kind prompt.Kind, fallbackUsed, repaired bool) *Envelope {
	env := &Envelope{
		Version:      EnvelopeVersion,
		CodeVersion:  s.o.CodeVersion,
		ModelUsed:    s.model,
		ModelAttempt: s.attempt,
		Repaired:     repaired,
		FallbackUsed: fallbackUsed,
		Origin:       computeOrigin(false, fallbackUsed, repaired),
		RequestMeta:  s.requestMeta(kind),
	}
	if s.o.Debug {
		env.Debug = &DebugInfo{
			ModelChainTried: s.tried,
			ModelCallMs:     s.modelCallMs,
			Repair1Ms:       s.repair1Ms,
			Repair2Ms:       s.repair2Ms,
			ResponseChars:   len(s.content),
			Usage:           s.usage,
		}
	}
	return env
}

func (s *session) requestMeta(kind prompt.Kind) map[string]any {
	meta := map[string]any{
		"id":         uuid.NewString(),
		"type":       string(kind),
		"receivedAt": s.receivedAt,
	}
	switch kind {
	case prompt.KindIdeas, prompt.KindSearch:
		meta["limit"] = schema.SanitizeLimit(s.req.Limit, schema.DefaultLimit, schema.MaxLimit)
		meta["queryLen"] = len(s.req.Query)
	case prompt.KindSolutions:
		meta["limit"] = schema.SanitizeLimit(s.req.Limit, 3, 5)
		meta["activityLen"] = len(s.req.Activity)
		meta["problemLen"] = len(s.req.Problem)
	case prompt.KindMilestone:
		meta["titleLen"] = len(s.req.Title)
	case prompt.KindPlan, prompt.KindPlanFinancials:
		meta["contextLen"] = len(s.req.Context)
		meta["suggestionLen"] = len(s.req.Suggestion)
	}
	return meta
}

func (s *session) attachIdeas(env *Envelope, ideas []string) {
	env.Ideas = ideas
	env.IdeasDetailed = make([]DetailedIdea, 0, len(ideas))
	for _, text := range ideas {
		env.IdeasDetailed = append(env.IdeasDetailed, DetailedIdea{ID: HashID(text), Text: text})
	}
}

func (s *session) attachSearch(env *Envelope, results []schema.SearchResult) {
	env.Results = results
	env.ResultsDetailed = make([]DetailedResult, 0, len(results))
	for _, r := range results {
		env.ResultsDetailed = append(env.ResultsDetailed, DetailedResult{
			ID:           HashID(r.Title + "|" + r.Snippet),
			SearchResult: r,
		})
	}
}

// HashID derives a short stable id from text: a 31-multiplier rolling hash
// over UTF-16 code units with wrapping 32-bit arithmetic, rendered unsigned
// in base 36.
func HashID(text string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(text)) {
		h = h*31 + int32(u)
	}
	return "i_" + strconv.FormatUint(uint64(uint32(h)), 36)
}

// truncate bounds diagnostic strings, marking elision.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
