package publish

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pagesmith/app/core/generate"
	"pagesmith/app/core/repohost"
	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

// Host is the hosted-repository collaborator the pipeline drives.
// *repohost.Client satisfies it; tests substitute fakes.
type Host interface {
	Username() string
	PagesURL(task string) string
	GetOrCreateRepo(ctx context.Context, name string, description string) (repohost.Repo, error)
	CommitFile(ctx context.Context, repo repohost.Repo, path string, content string, message string) error
	CommitBinaryFile(ctx context.Context, repo repohost.Repo, path string, content []byte, message string) error
	EnablePages(ctx context.Context, repo repohost.Repo, branch string) bool
	LatestCommitSHA(ctx context.Context, repo repohost.Repo) (string, error)
	FileContent(ctx context.Context, repo repohost.Repo, path string) (string, error)
	WaitForDeployment(ctx context.Context, repo repohost.Repo, sha string) bool
}

// Pipeline publishes generated artifacts as an ordered sequence of
// repository mutations. The order is load-bearing: Pages deploys on
// push, so the markup document goes in last and the commit captured
// afterwards is the one the deployment wait tracks.
type Pipeline struct {
	host Host
}

func New(host Host) *Pipeline {
	return &Pipeline{host: host}
}

// Publish runs the full sequence for one round and returns the durable
// result. Attachment and Pages failures are logged and skipped; only
// repository access and the final content commits are fatal.
func (p *Pipeline) Publish(ctx context.Context, task string, round int, artifacts types.ArtifactSet, attachments []types.DecodedAttachment, brief string) (types.PublishedResult, error) {
	repo, err := p.host.GetOrCreateRepo(ctx, task, "Auto-generated for: "+truncate(brief, 100))
	if err != nil {
		return types.PublishedResult{}, fmt.Errorf("prepare repository: %w", err)
	}

	if round == 1 {
		logger.Info("Committing LICENSE")
		if err := p.host.CommitFile(ctx, repo, "LICENSE", repohost.MITLicense(p.host.Username()), "Add MIT License"); err != nil {
			return types.PublishedResult{}, err
		}

		p.commitAttachments(ctx, repo, attachments)
	}

	logger.Info("Committing README.md")
	if err := p.host.CommitFile(ctx, repo, "README.md", artifacts.Readme, fmt.Sprintf("Generate README.md for round %d", round)); err != nil {
		return types.PublishedResult{}, err
	}

	if round == 1 {
		logger.Info("Enabling Pages")
		if !p.host.EnablePages(ctx, repo, repo.DefaultBranch) {
			logger.Error("Pages might not be enabled, continuing with expected URL")
		}
	}

	// Last content commit: this push triggers the deployment we wait on.
	logger.Info("Committing index.html (final, triggers deployment)")
	if err := p.host.CommitFile(ctx, repo, "index.html", artifacts.Markup, fmt.Sprintf("Generate index.html for round %d", round)); err != nil {
		return types.PublishedResult{}, err
	}

	sha, err := p.host.LatestCommitSHA(ctx, repo)
	if err != nil {
		return types.PublishedResult{}, fmt.Errorf("read head commit: %w", err)
	}
	logger.Info("Latest commit SHA: %s", sha)

	if !p.host.WaitForDeployment(ctx, repo, sha) {
		logger.Error("Pages deployment not confirmed, proceeding with notification")
	}

	return types.PublishedResult{
		RepoURL:   repo.HTMLURL,
		CommitSHA: sha,
		PagesURL:  p.host.PagesURL(task),
	}, nil
}

// commitAttachments pushes each decoded attachment, text or binary by
// MIME and extension. One bad attachment never aborts the run.
func (p *Pipeline) commitAttachments(ctx context.Context, repo repohost.Repo, attachments []types.DecodedAttachment) {
	if len(attachments) == 0 {
		return
	}
	logger.Info("Committing %d attachments", len(attachments))
	for _, att := range attachments {
		data, err := os.ReadFile(att.Path)
		if err != nil {
			logger.Error("Failed to read attachment %s: %v", att.Name, err)
			continue
		}
		if generate.IsTextFile(att) {
			err = p.host.CommitFile(ctx, repo, att.Name, string(data), fmt.Sprintf("Add attachment %s", att.Name))
		} else {
			err = p.host.CommitBinaryFile(ctx, repo, att.Name, data, fmt.Sprintf("Add binary attachment %s", att.Name))
		}
		if err != nil {
			logger.Error("Failed to commit attachment %s: %v", att.Name, err)
		}
	}
}

// PriorContext fetches the previously published documents for round 2+
// generation. Absence of either is tolerated and yields empty strings.
func (p *Pipeline) PriorContext(ctx context.Context, task string, brief string) (readme string, markup string) {
	repo, err := p.host.GetOrCreateRepo(ctx, task, "Auto-generated for: "+truncate(brief, 100))
	if err != nil {
		logger.Error("Could not open repository for prior context: %v", err)
		return "", ""
	}

	readme, err = p.host.FileContent(ctx, repo, "README.md")
	if err != nil {
		if !errors.Is(err, repohost.ErrNotFound) {
			logger.Error("Could not load previous README.md: %v", err)
		}
		readme = ""
	} else {
		logger.Info("Loaded previous README for context (%d chars)", len(readme))
	}

	markup, err = p.host.FileContent(ctx, repo, "index.html")
	if err != nil {
		if !errors.Is(err, repohost.ErrNotFound) {
			logger.Error("Could not load previous index.html: %v", err)
		}
		markup = ""
	} else {
		logger.Info("Loaded previous HTML for context (%d chars)", len(markup))
	}
	return readme, markup
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
