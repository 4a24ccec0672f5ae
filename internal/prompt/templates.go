package prompt

import (
	"os"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// templateData is the value set a kind template renders against. Only the
// fields relevant to the kind are populated.
type templateData struct {
	N                int
	Topic            string
	Activity         string
	Problem          string
	Goal             string
	Title            string
	Base             string
	QueryInstruction string
}

// Default templates. These encode the same schemas the normalizers and the
// repair instructions expect, so overriding one without the others will
// degrade repair quality.
var defaultTemplates = map[Kind]string{
	KindIdeas: `Generate EXACTLY {{.N}} distinct concise (5-12 words) actionable startup or small business ideas about: {{.Topic}}. Output STRICT JSON ONLY: {"ideas":["idea 1","idea 2", "idea 3"]}. No numbering, no commentary, no markdown. Ideas must be unique and specific.`,

	KindSolutions: `Activity: {{.Activity}}
Problem: {{.Problem}}
Goal: {{.Goal}}
Generate {{.N}} solution objects. Strict JSON ONLY: {"solutions":[{"title":"","rationale":"","steps":["step1","step2"]}]}. Title <=6 words; rationale EXACTLY 1 sentence; each solution has 4-6 concrete imperative steps.`,

	KindMilestone: `Milestone: {{.Title}}
Return strict JSON: {"definition":"","steps":["step1","step2"]}. Definition <=22 words; include exactly 5 specific steps.`,

	KindPlan: `Context and strategy:
{{.Base}}
Generate a pragmatic early-stage 6-month business plan. Output STRICT JSON ONLY with keys: title, summary, pricing{pricePerUnit,capitalRequired}, sales{estMonthlyUnits,assumptions,growthPctMonth}, inventory[{name,qty,unitCost}], expenses[{name,monthlyCost}], milestones[], innovations[], metrics{grossMarginPct,operatingMarginPct,breakevenMonths}. Constraints: 4-6 inventory items, 5-7 expenses, 5-8 milestones (short imperative), 3-6 innovations (distinctive ideas). pricePerUnit >0. Unit costs realistic. Percent values numeric (no % sign). Assume small lean startup. Avoid nulls.`,

	KindPlanFinancials: `Existing plan context (do NOT radically change narrative):
{{.Base}}
Refresh ONLY financial assumptions (pricing, sales.estMonthlyUnits, sales.growthPctMonth, inventory costs, expenses, metrics percentages & breakeven). Keep title, summary, milestones, innovations largely stable unless numbers force small adjustment. Output STRICT JSON ONLY with full plan schema: {"title":"","summary":"","pricing":{"pricePerUnit":0,"capitalRequired":0},"sales":{"estMonthlyUnits":0,"assumptions":[""],"growthPctMonth":0},"inventory":[{"name":"","qty":0,"unitCost":0}],"expenses":[{"name":"","monthlyCost":0}],"milestones":[""],"innovations":[""],"metrics":{"grossMarginPct":0,"operatingMarginPct":0,"breakevenMonths":0}}. Rules: pricePerUnit>0; all costs >=0; growthPctMonth typical 0-500 (absolute hard max 10000). No extra keys. No commentary.`,

	KindSearch: `{{.QueryInstruction}}
Return STRICT JSON ONLY: {"results":[{"title":"","snippet":"","relevance":0}]}. Generate EXACTLY {{.N}} diverse, high-signal, concise results ordered by descending relevance (100=best). Title 3-9 words, snippet 12-28 words, relevance integer 40-100. No markdown, no extra keys.`,
}

// Builder renders kind templates. Zero value is not usable; construct with
// NewBuilder.
type Builder struct {
	templates map[Kind]*template.Template
}

// NewBuilder compiles the default templates, layered with per-kind overrides
// from the YAML file at path (kind name to template text). An empty path
// means defaults only.
func NewBuilder(path string) (*Builder, error) {
	texts := make(map[Kind]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		texts[k] = v
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "prompt: read templates file")
		}
		var overrides map[string]string
		if err := yaml.Unmarshal(raw, &overrides); err != nil {
			return nil, eris.Wrap(err, "prompt: parse templates file")
		}
		for name, text := range overrides {
			k, ok := ParseKind(name)
			if !ok {
				return nil, eris.Errorf("prompt: templates file names unknown kind %q", name)
			}
			texts[k] = strings.TrimSpace(text)
		}
		zap.L().Info("prompt: loaded template overrides",
			zap.String("path", path),
			zap.Int("count", len(overrides)))
	}

	compiled := make(map[Kind]*template.Template, len(texts))
	for k, text := range texts {
		t, err := template.New(string(k)).Parse(text)
		if err != nil {
			return nil, eris.Wrapf(err, "prompt: compile %s template", k)
		}
		compiled[k] = t
	}
	return &Builder{templates: compiled}, nil
}

func (b *Builder) render(kind Kind, data templateData) (string, error) {
	t, ok := b.templates[kind]
	if !ok {
		return "", eris.Errorf("prompt: no template for kind %s", kind)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", eris.Wrapf(err, "prompt: render %s template", kind)
	}
	return sb.String(), nil
}
