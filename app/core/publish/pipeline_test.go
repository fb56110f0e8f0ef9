package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pagesmith/app/core/repohost"
	"pagesmith/app/pkg/types"
)

type fakeHost struct {
	ops []string

	failCommits  map[string]bool
	pagesOK      bool
	deployOK     bool
	fileContents map[string]string
	sha          string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		failCommits:  map[string]bool{},
		pagesOK:      true,
		deployOK:     true,
		fileContents: map[string]string{},
		sha:          "deadbeef",
	}
}

func (f *fakeHost) Username() string { return "octo" }

func (f *fakeHost) PagesURL(task string) string { return "https://octo.github.io/" + task + "/" }

func (f *fakeHost) GetOrCreateRepo(ctx context.Context, name string, description string) (repohost.Repo, error) {
	f.ops = append(f.ops, "repo:"+name)
	return repohost.Repo{
		Name:          name,
		FullName:      "octo/" + name,
		HTMLURL:       "https://github.com/octo/" + name,
		DefaultBranch: "main",
	}, nil
}

func (f *fakeHost) CommitFile(ctx context.Context, repo repohost.Repo, path string, content string, message string) error {
	if f.failCommits[path] {
		f.ops = append(f.ops, "fail:"+path)
		return errors.New("commit rejected")
	}
	f.ops = append(f.ops, "commit:"+path)
	return nil
}

func (f *fakeHost) CommitBinaryFile(ctx context.Context, repo repohost.Repo, path string, content []byte, message string) error {
	f.ops = append(f.ops, "binary:"+path)
	return nil
}

func (f *fakeHost) EnablePages(ctx context.Context, repo repohost.Repo, branch string) bool {
	f.ops = append(f.ops, "pages:"+branch)
	return f.pagesOK
}

func (f *fakeHost) LatestCommitSHA(ctx context.Context, repo repohost.Repo) (string, error) {
	f.ops = append(f.ops, "sha")
	return f.sha, nil
}

func (f *fakeHost) FileContent(ctx context.Context, repo repohost.Repo, path string) (string, error) {
	if content, ok := f.fileContents[path]; ok {
		return content, nil
	}
	return "", repohost.ErrNotFound
}

func (f *fakeHost) WaitForDeployment(ctx context.Context, repo repohost.Repo, sha string) bool {
	f.ops = append(f.ops, "wait:"+sha)
	return f.deployOK
}

func artifacts() types.ArtifactSet {
	return types.ArtifactSet{Markup: "<html/>", Readme: "# App"}
}

func writeAttachment(t *testing.T, name string, data string) types.DecodedAttachment {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}
	mime := "application/octet-stream"
	if filepath.Ext(name) == ".csv" {
		mime = "text/csv"
	}
	return types.DecodedAttachment{Name: name, Path: path, MIME: mime, Size: len(data)}
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestPublishRoundOneOrdering(t *testing.T) {
	host := newFakeHost()
	p := New(host)

	atts := []types.DecodedAttachment{
		writeAttachment(t, "data.csv", "a,b"),
		writeAttachment(t, "logo.bin", "\x00\x01"),
	}

	res, err := p.Publish(context.Background(), "task-1", 1, artifacts(), atts, "a brief")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	want := []string{
		"repo:task-1",
		"commit:LICENSE",
		"commit:data.csv",
		"binary:logo.bin",
		"commit:README.md",
		"pages:main",
		"commit:index.html",
		"sha",
		"wait:deadbeef",
	}
	if len(host.ops) != len(want) {
		t.Fatalf("unexpected ops: %v", host.ops)
	}
	for i := range want {
		if host.ops[i] != want[i] {
			t.Fatalf("op %d: got %s want %s (all: %v)", i, host.ops[i], want[i], host.ops)
		}
	}

	if res.RepoURL != "https://github.com/octo/task-1" || res.CommitSHA != "deadbeef" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.PagesURL != "https://octo.github.io/task-1/" {
		t.Fatalf("unexpected pages url: %s", res.PagesURL)
	}
}

func TestPublishRoundTwoSkipsSetupSteps(t *testing.T) {
	host := newFakeHost()
	p := New(host)

	atts := []types.DecodedAttachment{writeAttachment(t, "data.csv", "a,b")}
	_, err := p.Publish(context.Background(), "task-1", 2, artifacts(), atts, "a brief")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for _, op := range host.ops {
		switch op {
		case "commit:LICENSE", "commit:data.csv", "pages:main":
			t.Fatalf("round 2 must skip setup step %s (ops: %v)", op, host.ops)
		}
	}
}

func TestPublishMarkupAlwaysAfterReadme(t *testing.T) {
	for _, round := range []int{1, 2} {
		host := newFakeHost()
		p := New(host)
		if _, err := p.Publish(context.Background(), "task-1", round, artifacts(), nil, "b"); err != nil {
			t.Fatalf("round %d publish failed: %v", round, err)
		}
		readmeAt := indexOf(host.ops, "commit:README.md")
		markupAt := indexOf(host.ops, "commit:index.html")
		if readmeAt < 0 || markupAt < 0 || markupAt <= readmeAt {
			t.Fatalf("round %d: markup must commit after readme (ops: %v)", round, host.ops)
		}
		if host.ops[markupAt+1] != "sha" {
			t.Fatalf("round %d: head sha must be read right after the markup commit (ops: %v)", round, host.ops)
		}
	}
}

func TestPublishAttachmentFailureIsSkipped(t *testing.T) {
	host := newFakeHost()
	host.failCommits["bad.csv"] = true
	p := New(host)

	atts := []types.DecodedAttachment{
		writeAttachment(t, "bad.csv", "x"),
		writeAttachment(t, "good.csv", "y"),
	}
	_, err := p.Publish(context.Background(), "task-1", 1, artifacts(), atts, "b")
	if err != nil {
		t.Fatalf("one bad attachment must not abort the pipeline: %v", err)
	}
	if indexOf(host.ops, "commit:good.csv") < 0 {
		t.Fatalf("remaining attachments must still commit (ops: %v)", host.ops)
	}
}

func TestPublishPagesFailureIsNonFatal(t *testing.T) {
	host := newFakeHost()
	host.pagesOK = false
	p := New(host)

	res, err := p.Publish(context.Background(), "task-1", 1, artifacts(), nil, "b")
	if err != nil {
		t.Fatalf("pages failure must be non-fatal: %v", err)
	}
	if res.PagesURL == "" {
		t.Fatal("expected derived pages url despite enable failure")
	}
}

func TestPublishUnconfirmedDeploymentStillReturnsResult(t *testing.T) {
	host := newFakeHost()
	host.deployOK = false
	p := New(host)

	res, err := p.Publish(context.Background(), "task-1", 1, artifacts(), nil, "b")
	if err != nil {
		t.Fatalf("unconfirmed deployment must be non-fatal: %v", err)
	}
	if res.CommitSHA != "deadbeef" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPublishReadmeCommitFailureIsFatal(t *testing.T) {
	host := newFakeHost()
	host.failCommits["README.md"] = true
	p := New(host)

	if _, err := p.Publish(context.Background(), "task-1", 1, artifacts(), nil, "b"); err == nil {
		t.Fatal("readme commit failure must abort the pipeline")
	}
}

func TestPriorContextFetchesStoredDocuments(t *testing.T) {
	host := newFakeHost()
	host.fileContents["README.md"] = "# Old"
	host.fileContents["index.html"] = "<html>old</html>"
	p := New(host)

	readme, markup := p.PriorContext(context.Background(), "task-1", "b")
	if readme != "# Old" || markup != "<html>old</html>" {
		t.Fatalf("unexpected prior context: %q %q", readme, markup)
	}
}

func TestPriorContextToleratesMissingFiles(t *testing.T) {
	host := newFakeHost()
	p := New(host)

	readme, markup := p.PriorContext(context.Background(), "task-1", "b")
	if readme != "" || markup != "" {
		t.Fatalf("missing prior files must yield empty context: %q %q", readme, markup)
	}
}
