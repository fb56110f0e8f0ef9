package generate

import (
	"context"

	"pagesmith/app/core/llm"
	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

const (
	generationTemperature = 0.3
	generationMaxTokens   = 32000
)

// Input carries everything one generation run needs. PrevReadme and
// PrevMarkup are only consulted for round 2+.
type Input struct {
	Brief       string
	Checks      []string
	Attachments []types.Attachment
	Round       int
	PrevReadme  string
	PrevMarkup  string
}

// Output always holds non-empty artifacts; every failure path degrades
// to the local fallback.
type Output struct {
	Artifacts   types.ArtifactSet
	Attachments []types.DecodedAttachment
}

// Engine produces the application artifacts by walking an ordered
// provider chain and synthesizing locally when the chain is exhausted.
type Engine struct {
	providers      []llm.Provider
	attachmentsDir string
}

func NewEngine(attachmentsDir string, providers ...llm.Provider) *Engine {
	return &Engine{providers: providers, attachmentsDir: attachmentsDir}
}

// Generate never returns an error: provider failures are soft and the
// fallback page satisfies the artifact contract on its own.
func (e *Engine) Generate(ctx context.Context, in Input) Output {
	logger.Info("Generating code for round %d: %s", in.Round, truncate(in.Brief, 80))

	saved := DecodeAttachments(in.Attachments, e.attachmentsDir)
	prompt := buildPrompt(in, saved)

	text := ""
	for _, provider := range e.providers {
		logger.Debug("Calling provider %s with %d char prompt", provider.Name(), len(prompt))
		generated, err := provider.Complete(ctx, systemInstruction, prompt, llm.Options{
			Temperature: generationTemperature,
			MaxTokens:   generationMaxTokens,
		})
		if err != nil {
			logger.Error("Provider %s failed: %v", provider.Name(), err)
			continue
		}
		logger.Info("Generated code using %s (%d chars)", provider.Name(), len(generated))
		text = generated
		break
	}

	if text == "" {
		logger.Error("All providers failed, using local fallback")
		text = fallbackPage(in)
	}

	return Output{
		Artifacts:   splitResponse(text, in, saved),
		Attachments: saved,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
