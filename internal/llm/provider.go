// Package llm answers questions and summarizes filings through a closed set
// of hosted text-generation providers.
package llm

import (
	"context"
	"strings"

	"github.com/hyperjump/kessan/internal/errs"
)

// Name identifies a supported provider.
type Name string

const (
	GPT      Name = "gpt"
	Gemini   Name = "gemini"
	Claude   Name = "claude"
	DeepSeek Name = "deepseek"
	Grok     Name = "grok"
)

// Names lists every supported provider.
func Names() []Name {
	return []Name{GPT, Gemini, Claude, DeepSeek, Grok}
}

// ParseName returns the provider for s, ignoring case and space.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Names() {
		if n == known {
			return n, nil
		}
	}
	return "", errs.UnknownProvider(s)
}

// Provider is the uniform contract every vendor implements.
type Provider interface {
	Name() Name
	Summarize(ctx context.Context, text string) (string, error)
	Answer(ctx context.Context, question, context string) (string, error)
}

// Generator turns a system and user message into model output.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// chatProvider implements Provider on top of a Generator.
type chatProvider struct {
	name Name
	gen  Generator
}

func (p *chatProvider) Name() Name {
	return p.name
}

func (p *chatProvider) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errs.Validation("nothing to summarize")
	}
	return p.gen.Generate(ctx, SummarizeSystemPrompt, SummarizePrompt(text))
}

func (p *chatProvider) Answer(ctx context.Context, question, context string) (string, error) {
	if strings.TrimSpace(context) == "" {
		return "", errs.ErrEmptyContext
	}
	return p.gen.Generate(ctx, AnswerSystemPrompt, AnswerPrompt(question, context))
}
