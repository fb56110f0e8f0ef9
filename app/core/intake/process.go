package intake

import (
	"context"

	"pagesmith/app/core/generate"
	"pagesmith/app/core/store"
	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

// Generator produces the application artifacts for one request.
type Generator interface {
	Generate(ctx context.Context, in generate.Input) generate.Output
}

// Publisher pushes artifacts to the hosted repository and fetches prior
// round content.
type Publisher interface {
	Publish(ctx context.Context, task string, round int, artifacts types.ArtifactSet, attachments []types.DecodedAttachment, brief string) (types.PublishedResult, error)
	PriorContext(ctx context.Context, task string, brief string) (readme string, markup string)
}

// Pipeline is the background unit behind an accepted request: gather
// round context, generate, publish, notify, persist. An error anywhere
// terminates the unit without writing the dedup record, so a later
// resend of the same submission is treated as new.
type Pipeline struct {
	generator Generator
	publisher Publisher
	notifier  Notifier
	store     *store.Store
}

func NewPipeline(generator Generator, publisher Publisher, notifier Notifier, st *store.Store) *Pipeline {
	return &Pipeline{
		generator: generator,
		publisher: publisher,
		notifier:  notifier,
		store:     st,
	}
}

func (p *Pipeline) Process(ctx context.Context, req types.TaskRequest) error {
	logger.Info("Processing task %s (round %d)", req.Task, req.Round)

	in := generate.Input{
		Brief:       req.Brief,
		Checks:      req.Checks,
		Attachments: req.Attachments,
		Round:       req.Round,
	}
	if req.Round >= 2 {
		in.PrevReadme, in.PrevMarkup = p.publisher.PriorContext(ctx, req.Task, req.Brief)
	}

	out := p.generator.Generate(ctx, in)

	result, err := p.publisher.Publish(ctx, req.Task, req.Round, out.Artifacts, out.Attachments, req.Brief)
	if err != nil {
		logger.Error("Publish failed for task %s: %v", req.Task, err)
		return err
	}

	logger.Info("Repository: %s", result.RepoURL)
	logger.Info("Pages URL: %s", result.PagesURL)

	p.notifier.Notify(req.EvaluationURL, types.NotifyPayloadFor(req, result))

	if err := p.store.Put(req.DedupKey(), result); err != nil {
		logger.Error("Failed to persist result for %s: %v", req.DedupKey(), err)
		return err
	}

	logger.Info("Completed task %s (round %d)", req.Task, req.Round)
	return nil
}
