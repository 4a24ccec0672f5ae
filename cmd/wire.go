package main

import (
	"github.com/rotisserie/eris"

	"github.com/venture-kit/plan-proxy/internal/config"
	"github.com/venture-kit/plan-proxy/internal/llm"
	"github.com/venture-kit/plan-proxy/internal/planner"
	"github.com/venture-kit/plan-proxy/internal/prompt"
	"github.com/venture-kit/plan-proxy/internal/server"
	"github.com/venture-kit/plan-proxy/pkg/anthropic"
	"github.com/venture-kit/plan-proxy/pkg/groq"
)

// stack is the assembled pipeline shared by serve, ask, and batch.
type stack struct {
	orch            *planner.Orchestrator
	newCaller       server.CallerFactory
	defaultKey      string
	configuredModel string
}

// buildStack wires the provider-specific pieces from config.
func buildStack(cfg *config.Config) (*stack, error) {
	builder, err := prompt.NewBuilder(cfg.Prompt.TemplatesPath)
	if err != nil {
		return nil, err
	}

	s := &stack{}
	switch cfg.LLM.Provider {
	case "groq":
		s.defaultKey = cfg.Groq.Key
		s.configuredModel = cfg.Groq.Model
		s.newCaller = func(apiKey string) *llm.Caller {
			client := groq.NewClient(apiKey, groq.WithBaseURL(cfg.Groq.BaseURL))
			return llm.NewCaller(llm.NewGroqCompleter(client), cfg.Proxy.OutboundRPS)
		}
		s.orch = planner.New(builder,
			llm.Chain(cfg.Groq.Model, llm.GroqDefaultModels),
			cfg.Proxy.Debug, cfg.Proxy.CodeVersion)
	case "anthropic":
		s.defaultKey = cfg.Anthropic.Key
		s.configuredModel = cfg.Anthropic.Model
		s.newCaller = func(apiKey string) *llm.Caller {
			return llm.NewCaller(llm.NewAnthropicCompleter(anthropic.NewClient(apiKey)), cfg.Proxy.OutboundRPS)
		}
		s.orch = planner.New(builder,
			llm.Chain(cfg.Anthropic.Model, llm.AnthropicDefaultModels),
			cfg.Proxy.Debug, cfg.Proxy.CodeVersion)
	default:
		return nil, eris.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	return s, nil
}

// caller returns the default-key caller, or an error when no key is set.
func (s *stack) caller() (*llm.Caller, error) {
	if s.defaultKey == "" {
		return nil, eris.New("no upstream API key configured")
	}
	return s.newCaller(s.defaultKey), nil
}
